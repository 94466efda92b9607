package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
	"rewards/internal/sources/memory"
)

type fakePublisher struct {
	msgs []*amqp.TransactionRecordedMessage
	err  error
}

func (p *fakePublisher) PublishTransactionRecorded(_ context.Context, msg *amqp.TransactionRecordedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type failingWriter struct{}

func (failingWriter) Append(context.Context, rewards.Transaction) (string, error) {
	return "", errors.New("disk full")
}

type txCounter struct{ n int }

func (c *txCounter) TransactionRecorded() { c.n++ }

func TestTransactionService_Record(t *testing.T) {
	store := memory.New(nil, nil)
	pub := &fakePublisher{}
	counter := &txCounter{}
	svc := NewTransactionService(store, pub, nil, counter)
	svc.newID = func() string { return "fixed-id" }

	tx, ref, err := svc.Record(context.Background(), core.NewTransaction{
		CustomerID: " C7 ",
		Amount:     core.Money{Cents: 12050},
		Date:       core.NewDate(2025, 5, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, "mem:1", ref)
	assert.Equal(t, "fixed-id", tx.TransactionID)
	assert.Equal(t, "C7", tx.CustomerID)
	assert.Equal(t, 120.5, tx.Amount.Value())
	assert.Equal(t, "2025-05-20", tx.Date.String())
	assert.Equal(t, 1, counter.n)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "fixed-id", pub.msgs[0].TransactionID)
	assert.Equal(t, "C7", pub.msgs[0].CustomerID)
	assert.Equal(t, "2025-05", pub.msgs[0].Month)

	assert.Equal(t, 1, store.Len())
}

func TestTransactionService_RecordAssignsUUIDs(t *testing.T) {
	svc := NewTransactionService(memory.New(nil, nil), nil, nil, nil)
	nt := core.NewTransaction{CustomerID: "C1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)}

	a, _, err := svc.Record(context.Background(), nt)
	require.NoError(t, err)
	b, _, err := svc.Record(context.Background(), nt)
	require.NoError(t, err)

	assert.Len(t, a.TransactionID, 36)
	assert.NotEqual(t, a.TransactionID, b.TransactionID)
}

func TestTransactionService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(memory.New(nil, nil), pub, nil, nil)

	_, ref, err := svc.Record(context.Background(), core.NewTransaction{CustomerID: "C1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)})
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Len(t, pub.msgs, 1)
}

func TestTransactionService_PublishFailureLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{
		Component: "services",
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	ctx := log.WithContext(context.Background(), logger)

	svc := NewTransactionService(memory.New(nil, nil), &fakePublisher{err: errors.New("broker down")}, nil, nil)
	svc.newID = func() string { return "tx-42" }

	_, _, err := svc.Record(ctx, core.NewTransaction{CustomerID: "C1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)})
	require.NoError(t, err)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "Failed to publish transaction recorded message") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, "component=services")
	assert.Contains(t, line, "transaction_id=tx-42")
	assert.Contains(t, line, `error="broker down"`)
}

func TestTransactionService_RecordErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(nil, nil), nil, nil, nil)

	_, _, err := svc.Record(ctx, core.NewTransaction{Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrEmptyCustomer)

	_, _, err = svc.Record(ctx, core.NewTransaction{CustomerID: "C1", Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, _, err = svc.Record(ctx, core.NewTransaction{CustomerID: "C1", Amount: core.Money{Cents: 100}})
	assert.Error(t, err)

	failing := NewTransactionService(failingWriter{}, nil, nil, nil)
	_, _, err = failing.Record(ctx, core.NewTransaction{CustomerID: "C1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 1)})
	assert.ErrorContains(t, err, "disk full")
}
