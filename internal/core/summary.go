package core

import "time"

// MonthSummary is one row of a customer's monthly rewards table.
type MonthSummary struct {
	Key              string  `json:"month"`
	Label            string  `json:"label"`
	Points           int     `json:"points"`
	TransactionCount int     `json:"transactionCount"`
	TotalAmount      float64 `json:"totalAmount"`
}

// MonthlySnapshot is a persisted MonthSummary for one customer.
type MonthlySnapshot struct {
	CustomerID string
	MonthSummary
	UpdatedAt time.Time
}
