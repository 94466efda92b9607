package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
	"rewards/internal/sources"
)

// ErrRewardsUnavailable marks failures of the engine itself, as opposed to
// failures to load data. The UI shows a generic message for it.
var ErrRewardsUnavailable = errors.New("unable to compute rewards")

// ReportRecorder is notified of every computed report.
type ReportRecorder interface {
	ReportComputed(totalPoints, skipped int)
}

// Report is everything the rewards page shows for one customer.
type Report struct {
	Customer    core.Customer
	Range       core.DateRange
	TotalPoints int
	// Months in chronological order.
	Months []core.MonthSummary
	// Transactions holds the annotated rows of the requested page.
	Transactions     []rewards.AnnotatedTransaction
	Page             core.Page
	TransactionCount int
	// Skipped counts records left out of the totals because of a bad amount.
	Skipped int
}

type RewardsService struct {
	customers sources.CustomerLister
	txs       sources.TransactionLister
	loader    *cache.Loader[[]*rewards.Transaction]
	recorder  ReportRecorder
	loc       *time.Location
	pageSize  int
}

// NewRewardsService wires the report pipeline. loader and recorder may be nil.
func NewRewardsService(
	customers sources.CustomerLister,
	txs sources.TransactionLister,
	loader *cache.Loader[[]*rewards.Transaction],
	recorder ReportRecorder,
	loc *time.Location,
	pageSize int,
) *RewardsService {
	if loc == nil {
		loc = time.Local
	}
	if pageSize < 1 {
		pageSize = core.DefaultPageSize
	}
	return &RewardsService{
		customers: customers,
		txs:       txs,
		loader:    loader,
		recorder:  recorder,
		loc:       loc,
		pageSize:  pageSize,
	}
}

// Customers lists the customers available for selection.
func (s *RewardsService) Customers(ctx context.Context) ([]core.Customer, error) {
	return s.customers.ListCustomers(ctx)
}

// CacheKey identifies a customer's transactions inside r. Every key of a
// customer starts with CachePrefix(customerID).
func CacheKey(customerID string, r core.DateRange) string {
	return CachePrefix(customerID) + r.Key()
}

func CachePrefix(customerID string) string {
	return customerID + "|"
}

// Report builds the rewards report of customerID for r, returning page
// number pageNum of the annotated transactions.
func (s *RewardsService) Report(ctx context.Context, customerID string, r core.DateRange, pageNum int) (*Report, error) {
	if customerID == "" {
		return nil, core.ErrEmptyCustomer
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var (
		customers []core.Customer
		txs       []*rewards.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.customers.ListCustomers(gctx)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = s.loadTransactions(gctx, customerID, r)
		if err != nil {
			return fmt.Errorf("list transactions of %s: %w", customerID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	customer := core.Customer{ID: customerID}
	found := false
	for _, c := range customers {
		if c.ID == customerID {
			customer, found = c, true
			break
		}
	}
	if !found {
		return nil, sources.ErrCustomerNotFound
	}

	report, err := s.compute(txs)
	if err != nil {
		return nil, err
	}
	report.Customer = customer
	report.Range = r
	report.Page = core.Paginate(len(report.Transactions), pageNum, s.pageSize)
	report.Transactions = core.Slice(report.Transactions, report.Page)

	if s.recorder != nil {
		s.recorder.ReportComputed(report.TotalPoints, report.Skipped)
	}
	log.NewEvents(log.FromContext(ctx)).
		RewardsComputed(ctx, customerID, report.TransactionCount, len(report.Months), report.TotalPoints)

	return report, nil
}

func (s *RewardsService) loadTransactions(ctx context.Context, customerID string, r core.DateRange) ([]*rewards.Transaction, error) {
	load := func(ctx context.Context) ([]*rewards.Transaction, error) {
		return s.txs.ListTransactions(ctx, customerID, r)
	}
	if s.loader == nil {
		return load(ctx)
	}
	return s.loader.Get(ctx, CacheKey(customerID, r), load)
}

// compute runs the engine over txs. Rows are not paginated yet.
func (s *RewardsService) compute(txs []*rewards.Transaction) (*Report, error) {
	total, err := rewards.ComputeTotal(txs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRewardsUnavailable, err)
	}
	breakdown, err := rewards.ComputeMonthlyBreakdownIn(txs, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRewardsUnavailable, err)
	}
	annotated, err := rewards.AnnotateWithPoints(txs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRewardsUnavailable, err)
	}

	skipped := 0
	for _, tx := range txs {
		if tx == nil || !tx.Amount.Valid() {
			skipped++
		}
	}

	return &Report{
		TotalPoints:      total,
		Months:           SummarizeMonths(breakdown),
		Transactions:     annotated,
		TransactionCount: len(txs),
		Skipped:          skipped,
	}, nil
}

// SummarizeMonths turns a breakdown into chronological, labelled rows.
func SummarizeMonths(b *rewards.MonthlyBreakdown) []core.MonthSummary {
	keys := b.SortedKeys()
	out := make([]core.MonthSummary, 0, len(keys))
	for _, k := range keys {
		bucket, _ := b.Get(k)
		out = append(out, core.MonthSummary{
			Key:              k,
			Label:            rewards.FormatMonthKey(k),
			Points:           bucket.Points,
			TransactionCount: bucket.TransactionCount,
			TotalAmount:      bucket.TotalAmount,
		})
	}
	return out
}
