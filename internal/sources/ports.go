// Package sources defines the data-loading ports of the rewards service
// and helpers shared by their adapters.
package sources

import (
	"context"
	"errors"

	"rewards/internal/core"
	"rewards/internal/rewards"
)

// ErrCustomerNotFound is returned when a customer has no record in the source.
var ErrCustomerNotFound = errors.New("customer not found")

// Ports for outbound adapters.
type (
	CustomerLister interface {
		ListCustomers(ctx context.Context) ([]core.Customer, error)
	}

	// TransactionLister returns one customer's transactions inside a date
	// range. The slice is never nil on success, so an empty history is an
	// empty sequence rather than a missing one.
	TransactionLister interface {
		ListTransactions(ctx context.Context, customerID string, r core.DateRange) ([]*rewards.Transaction, error)
	}

	TransactionWriter interface {
		Append(ctx context.Context, tx rewards.Transaction) (rowRef string, err error)
	}
)
