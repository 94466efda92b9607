package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards/internal/core"
	"rewards/internal/rewards"
)

func sample() []*rewards.Transaction {
	return []*rewards.Transaction{
		{TransactionID: "t1", CustomerID: "c1", Amount: rewards.Number(120), Date: rewards.ParseDate("2025-01-15")},
		nil,
		{TransactionID: "t2", CustomerID: "c2", Amount: rewards.Number(75), Date: rewards.ParseDate("2025-01-20")},
		{TransactionID: "t3", CustomerID: "c1", Amount: rewards.NonNumeric("bad"), Date: rewards.ParseDate("2025-02-10")},
		{TransactionID: "t4", CustomerID: "c1", Amount: rewards.Number(60)},
	}
}

func TestFilter(t *testing.T) {
	got := Filter(sample(), "c1", core.DateRange{}, time.UTC)
	require.Len(t, got, 3)
	assert.Equal(t, "t1", got[0].TransactionID)
	assert.Equal(t, "t3", got[1].TransactionID)
	assert.Equal(t, "t4", got[2].TransactionID)

	feb := core.DateRange{From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 2, 28)}
	got = Filter(sample(), "c1", feb, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].TransactionID)
}

func TestFilter_ReturnsEmptyNotNil(t *testing.T) {
	got := Filter(nil, "nobody", core.DateRange{}, time.UTC)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_CopiesRecords(t *testing.T) {
	src := sample()
	got := Filter(src, "c1", core.DateRange{}, time.UTC)
	got[0].TransactionID = "changed"
	assert.Equal(t, "t1", src[0].TransactionID)
}

func TestCustomersOf(t *testing.T) {
	got := CustomersOf(sample(), map[string]string{"c2": "Bea"})
	assert.Equal(t, []core.Customer{{ID: "c1"}, {ID: "c2", Name: "Bea"}}, got)
	assert.Equal(t, "c1", got[0].Label())
	assert.Equal(t, "Bea", got[1].Label())
	assert.True(t, HasCustomer(got, "c2"))
	assert.False(t, HasCustomer(got, "c3"))
}
