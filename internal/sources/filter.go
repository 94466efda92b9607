package sources

import (
	"strings"
	"time"

	"rewards/internal/core"
	"rewards/internal/rewards"
)

// Filter returns copies of the records of customerID inside r. Nil records
// cannot be attributed to a customer and are dropped.
func Filter(txs []*rewards.Transaction, customerID string, r core.DateRange, loc *time.Location) []*rewards.Transaction {
	out := make([]*rewards.Transaction, 0)
	for _, tx := range txs {
		if tx == nil || tx.CustomerID != customerID {
			continue
		}
		if !r.Includes(tx.Date, loc) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out
}

// CustomersOf derives the customer list from transaction records in
// first-seen order. Name comes from names and stays empty when names has
// no entry; core.Customer.Label falls back to the ID for display.
func CustomersOf(txs []*rewards.Transaction, names map[string]string) []core.Customer {
	seen := make(map[string]struct{})
	out := make([]core.Customer, 0)
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		id := strings.TrimSpace(tx.CustomerID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, core.Customer{ID: id, Name: names[id]})
	}
	return out
}

// HasCustomer reports whether id appears in customers.
func HasCustomer(customers []core.Customer, id string) bool {
	for _, c := range customers {
		if c.ID == id {
			return true
		}
	}
	return false
}
