// Package rewards computes loyalty reward points from purchase transactions.
//
// Points accrue per transaction in two tiers: every whole unit spent
// above HighThreshold earns HighMultiplier points, and every whole unit
// between LowThreshold and HighThreshold earns LowMultiplier points.
// Each tier is floored on its own before the two are added.
//
// All functions are pure and safe for concurrent use. Batch operations
// treat a nil slice as a caller error (ErrInvalidInput) and absorb bad
// records inside a valid slice: aggregates skip them, annotation
// zero-fills them.
package rewards

import (
	"math"
	"time"
)

// Accrual policy.
const (
	HighThreshold  = 100
	LowThreshold   = 50
	HighMultiplier = 2
	LowMultiplier  = 1
)

// PointsBreakdown splits a transaction's points by tier.
type PointsBreakdown struct {
	HighTier int `json:"highTier"`
	LowTier  int `json:"lowTier"`
}

// Total returns HighTier + LowTier.
func (b PointsBreakdown) Total() int {
	return b.HighTier + b.LowTier
}

// AnnotatedTransaction is a copy of a transaction with its points attached.
type AnnotatedTransaction struct {
	Transaction
	Points          int             `json:"points"`
	PointsBreakdown PointsBreakdown `json:"pointsBreakdown"`
}

// IsValidAmount reports whether v is a finite, non-negative number.
func IsValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ComputePoints returns the points earned by a single purchase amount.
// An invalid amount yields an *AmountError matching ErrInvalidAmount.
func ComputePoints(amount float64) (int, error) {
	if !IsValidAmount(amount) {
		return 0, &AmountError{Value: amount}
	}
	return split(amount).Total(), nil
}

// ComputeBreakdown returns the per-tier points for amount. It never
// fails: an invalid amount yields a zero breakdown.
func ComputeBreakdown(amount float64) PointsBreakdown {
	if !IsValidAmount(amount) {
		return PointsBreakdown{}
	}
	return split(amount)
}

func split(amount float64) PointsBreakdown {
	highPortion := math.Max(0, amount-HighThreshold)
	high := floorInt(highPortion * HighMultiplier)

	low := 0
	if lowPortion := math.Min(amount, HighThreshold) - LowThreshold; lowPortion > 0 {
		low = floorInt(lowPortion * LowMultiplier)
	}
	return PointsBreakdown{HighTier: high, LowTier: low}
}

func floorInt(v float64) int {
	f := math.Floor(v)
	if f >= math.MaxInt {
		return math.MaxInt
	}
	return int(f)
}

// ComputeTotal sums the points of every valid transaction. Nil entries
// and entries with an invalid amount are skipped.
func ComputeTotal(txs []*Transaction) (int, error) {
	if txs == nil {
		return 0, ErrInvalidInput
	}
	total := 0
	for _, tx := range txs {
		if tx == nil || !tx.Amount.Valid() {
			continue
		}
		pts, err := tx.Amount.Points()
		if err != nil {
			continue
		}
		total += pts
	}
	return total, nil
}

// ComputeMonthlyBreakdown groups valid transactions by calendar month,
// reading instants on the local calendar. See ComputeMonthlyBreakdownIn.
func ComputeMonthlyBreakdown(txs []*Transaction) (*MonthlyBreakdown, error) {
	return ComputeMonthlyBreakdownIn(txs, time.Local)
}

// ComputeMonthlyBreakdownIn groups valid transactions by "YYYY-MM" month
// key, with instants placed on the calendar of loc. Entries that are nil,
// carry an invalid amount, or lack a parseable date are skipped. Keys keep
// the order of their first occurrence.
func ComputeMonthlyBreakdownIn(txs []*Transaction, loc *time.Location) (*MonthlyBreakdown, error) {
	if txs == nil {
		return nil, ErrInvalidInput
	}
	out := newMonthlyBreakdown()
	for _, tx := range txs {
		if tx == nil || !tx.Amount.Valid() {
			continue
		}
		t, ok := tx.Date.In(loc)
		if !ok {
			continue
		}
		pts, err := tx.Amount.Points()
		if err != nil {
			continue
		}
		amount, _ := tx.Amount.Float64()
		out.add(MonthKey(t), pts, amount)
	}
	return out, nil
}

// AnnotateWithPoints returns one annotated copy per input entry, in input
// order. Nil entries and entries with an invalid amount are kept with zero
// points.
func AnnotateWithPoints(txs []*Transaction) ([]AnnotatedTransaction, error) {
	if txs == nil {
		return nil, ErrInvalidInput
	}
	out := make([]AnnotatedTransaction, len(txs))
	for i, tx := range txs {
		if tx == nil {
			continue
		}
		out[i].Transaction = *tx
		if !tx.Amount.Valid() {
			continue
		}
		amount, _ := tx.Amount.Float64()
		pts, err := ComputePoints(amount)
		if err != nil {
			continue
		}
		out[i].Points = pts
		out[i].PointsBreakdown = ComputeBreakdown(amount)
	}
	return out, nil
}
