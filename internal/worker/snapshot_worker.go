// Package worker keeps the monthly_rewards table in step with recorded
// transactions.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/rewards"
	"rewards/internal/services"
	"rewards/internal/sources"
)

// SnapshotStore is the persistence the worker needs; the SQLite repository
// implements it.
type SnapshotStore interface {
	sources.TransactionLister
	PendingCustomers(ctx context.Context, limit int) ([]string, error)
	LatestSeq(ctx context.Context, customerID string) (int64, error)
	MarkSnapshotDone(ctx context.Context, customerID string, seq int64) error
	ReplaceMonthlySnapshots(ctx context.Context, customerID string, months []core.MonthSummary, at time.Time) error
}

type SnapshotRecorder interface {
	SnapshotsWritten(n int)
}

// SnapshotWorker recomputes a customer's monthly breakdown whenever one of
// their transactions is recorded.
type SnapshotWorker struct {
	store     SnapshotStore
	recorder  SnapshotRecorder
	loc       *time.Location
	batchSize int
	now       func() time.Time
}

func NewSnapshotWorker(store SnapshotStore, recorder SnapshotRecorder, loc *time.Location, batchSize int) *SnapshotWorker {
	if loc == nil {
		loc = time.Local
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &SnapshotWorker{
		store:     store,
		recorder:  recorder,
		loc:       loc,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleTransactionRecorded processes a single message from AMQP. A customer
// the store does not know is acknowledged and ignored.
func (w *SnapshotWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction recorded message",
		"transaction_id", msg.TransactionID,
		"customer_id", msg.CustomerID,
		"month_key", msg.Month)

	if msg.CustomerID == "" {
		slog.WarnContext(ctx, "Dropping message without customer", "transaction_id", msg.TransactionID)
		return nil
	}

	err := w.Recompute(ctx, msg.CustomerID)
	if errors.Is(err, sources.ErrCustomerNotFound) {
		slog.WarnContext(ctx, "Dropping message for unknown customer", "customer_id", msg.CustomerID)
		return nil
	}
	return err
}

// Recompute rebuilds every monthly snapshot of customerID from its full
// history and clears the pending flag on the rows it covered.
func (w *SnapshotWorker) Recompute(ctx context.Context, customerID string) error {
	// Read the high-water mark first so rows appended meanwhile stay pending.
	seq, err := w.store.LatestSeq(ctx, customerID)
	if err != nil {
		return err
	}

	txs, err := w.store.ListTransactions(ctx, customerID, core.DateRange{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	breakdown, err := rewards.ComputeMonthlyBreakdownIn(txs, w.loc)
	if err != nil {
		return fmt.Errorf("compute monthly breakdown: %w", err)
	}
	months := services.SummarizeMonths(breakdown)

	if err := w.store.ReplaceMonthlySnapshots(ctx, customerID, months, w.now()); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	if err := w.store.MarkSnapshotDone(ctx, customerID, seq); err != nil {
		return err
	}
	if w.recorder != nil {
		w.recorder.SnapshotsWritten(len(months))
	}

	slog.InfoContext(ctx, "Monthly snapshots refreshed",
		"customer_id", customerID,
		"months", len(months))
	return nil
}

// ProcessPending refreshes customers whose transactions were never folded
// in, the backup path for lost AMQP messages. It returns how many customers
// were refreshed.
func (w *SnapshotWorker) ProcessPending(ctx context.Context) (int, error) {
	customers, err := w.store.PendingCustomers(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending customers: %w", err)
	}

	done := 0
	for _, id := range customers {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := w.Recompute(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh snapshots", "customer_id", id, "error", err)
			continue
		}
		done++
	}
	return done, nil
}
