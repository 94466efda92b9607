// Package memory is an in-process transaction source seeded from JSON files.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rewards/internal/core"
	"rewards/internal/rewards"
	"rewards/internal/sources"
)

var (
	_ sources.CustomerLister    = (*Store)(nil)
	_ sources.TransactionLister = (*Store)(nil)
	_ sources.TransactionWriter = (*Store)(nil)
)

type Store struct {
	mu    sync.RWMutex
	names map[string]string
	items []*rewards.Transaction
	loc   *time.Location
}

// New builds a store over txs. names maps customer IDs to display names
// and may be nil.
func New(txs []*rewards.Transaction, names map[string]string) *Store {
	if names == nil {
		names = map[string]string{}
	}
	items := make([]*rewards.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			items = append(items, nil)
			continue
		}
		cp := *tx
		items = append(items, &cp)
	}
	return &Store{names: names, items: items, loc: time.Local}
}

// NewFromFiles seeds a store from base/transactions.json (an array of
// transaction records) and the optional base/customers.json (an array of
// {"id","name"} objects). A missing transactions file yields the demo set.
func NewFromFiles(base string) (*Store, error) {
	var txs []*rewards.Transaction
	if err := readJSON(filepath.Join(base, "transactions.json"), &txs); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		txs = DemoTransactions()
	}

	var customers []core.Customer
	if err := readJSON(filepath.Join(base, "customers.json"), &customers); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[strings.TrimSpace(c.ID)] = strings.TrimSpace(c.Name)
	}
	return New(txs, names), nil
}

// InLocation sets the calendar used to apply date filters to instants.
func (s *Store) InLocation(loc *time.Location) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Store) ListCustomers(_ context.Context) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sources.CustomersOf(s.items, s.names), nil
}

func (s *Store) ListTransactions(_ context.Context, customerID string, r core.DateRange) ([]*rewards.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !sources.HasCustomer(sources.CustomersOf(s.items, nil), customerID) {
		return nil, fmt.Errorf("%w: %s", sources.ErrCustomerNotFound, customerID)
	}
	return sources.Filter(s.items, customerID, r, s.loc), nil
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx rewards.Transaction) (string, error) {
	if strings.TrimSpace(tx.CustomerID) == "" {
		return "", core.ErrEmptyCustomer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, &tx)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Len returns the number of stored records, bad ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
