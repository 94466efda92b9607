package backend

import (
	"context"

	"rewards/internal/core"
	"rewards/internal/services"
	"rewards/internal/sources"
)

// Backend is the data source the rewards service reads and writes.
type Backend interface {
	sources.CustomerLister
	sources.TransactionLister
	sources.TransactionWriter
}

// SnapshotReader serves persisted monthly snapshots.
type SnapshotReader interface {
	ListMonthlySnapshots(ctx context.Context, customerID string) ([]core.MonthlySnapshot, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and what came with it.
// Publisher, Snapshots, Ready and Cleanup may be nil.
type BackendResult struct {
	Backend   Backend
	Publisher services.Publisher
	Snapshots SnapshotReader
	Ready     func(ctx context.Context) error
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
