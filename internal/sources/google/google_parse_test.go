package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards/internal/rewards"
)

func TestParseTransactions(t *testing.T) {
	values := [][]interface{}{
		{"TransactionID", "CustomerID", "Amount", "Date"},
		{"T1", "C1", 120.0, "2025-01-15"},
		{"T2", "C1", "75,50", "2025-01-20"},
		{"T3", "C1", "N/A", "2025-01-21"},
		{},
		{"", "C2", 80.0, 45672.0},
		{"T5", "C2"},
	}

	txs, err := parseTransactions(values)
	require.NoError(t, err)
	require.Len(t, txs, 5)

	assert.Equal(t, "T1", txs[0].TransactionID)
	pts, err := txs[0].Amount.Points()
	require.NoError(t, err)
	assert.Equal(t, 90, pts)

	v, ok := txs[1].Amount.Float64()
	assert.True(t, ok)
	assert.Equal(t, 75.5, v)

	assert.False(t, txs[2].Amount.Valid())
	assert.Equal(t, "N/A", txs[2].Amount.Value())

	assert.Equal(t, "row-6", txs[3].TransactionID)
	assert.Equal(t, "2025-01-15", txs[3].Date.String())

	assert.False(t, txs[4].Amount.Valid())
	assert.False(t, txs[4].Date.Valid())

	total, err := rewards.ComputeTotal(txs)
	require.NoError(t, err)
	assert.Equal(t, 90+25+30, total)
}

func TestParseTransactions_HeaderAliases(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Customer", "Importo", "Data"},
		{"a", "c", 100.0, "2025-05-01"},
	}
	txs, err := parseTransactions(values)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "c", txs[0].CustomerID)
}

func TestParseTransactions_BadHeader(t *testing.T) {
	_, err := parseTransactions([][]interface{}{{"Foo", "Bar"}})
	assert.ErrorContains(t, err, "unexpected transactions header")
}

func TestParseTransactions_Empty(t *testing.T) {
	txs, err := parseTransactions(nil)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestParseCustomerNames(t *testing.T) {
	names := parseCustomerNames([][]interface{}{
		{"ID", "Name"},
		{"C1", "Ada"},
		{"C2"},
		{"", "orphan"},
	})
	assert.Equal(t, map[string]string{"C1": "Ada"}, names)
}
