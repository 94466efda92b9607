package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/rewards"
	"rewards/internal/services"
	"rewards/internal/sources/memory"
)

type reportOptions struct {
	customer string
	from     string
	to       string
	timezone string
	asJSON   bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "rewards-report <transactions.json>",
		Short: "Print reward points from a transactions file",
		Long: `Reads a JSON array of transactions and prints, per customer, the total
points, the monthly breakdown and every transaction with its points.

Records with a bad amount are listed but earn nothing; records with a bad
date count towards the total but not towards any month.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, out, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.customer, "customer", "", "only report this customer ID")
	cmd.Flags().StringVar(&opts.from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Local", "calendar used to read timestamps")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of tables")
	return cmd
}

func parseRange(from, to string) (core.DateRange, error) {
	f, err := core.ParseDate(from)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("--from: %w", err)
	}
	t, err := core.ParseDate(to)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("--to: %w", err)
	}
	r := core.DateRange{From: f, To: t}
	if err := r.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return r, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func readTransactions(path string) ([]*rewards.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	var txs []*rewards.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return txs, nil
}

func runReport(cmd *cobra.Command, out io.Writer, path string, opts reportOptions) error {
	ctx := cmd.Context()

	r, err := parseRange(opts.from, opts.to)
	if err != nil {
		return err
	}
	loc, err := loadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("--timezone: %w", err)
	}
	txs, err := readTransactions(path)
	if err != nil {
		return err
	}

	store := memory.New(txs, nil).InLocation(loc)
	svc := services.NewRewardsService(store, store, nil, nil, loc, max(len(txs), 1))

	ids := []string{opts.customer}
	if opts.customer == "" {
		customers, err := svc.Customers(ctx)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, c := range customers {
			ids = append(ids, c.ID)
		}
	}

	reports := make([]*services.Report, 0, len(ids))
	for _, id := range ids {
		rep, err := svc.Report(ctx, id, r, 1)
		if err != nil {
			return fmt.Errorf("customer %s: %w", id, err)
		}
		reports = append(reports, rep)
	}

	log.Default(log.ComponentRewards).DebugContext(ctx, "Report built",
		"file", path, "customers", len(reports), "records", len(txs))

	if opts.asJSON {
		return writeJSON(out, reports)
	}
	return writeTables(out, reports, loc)
}

type jsonReport struct {
	Customer     core.Customer                  `json:"customer"`
	TotalPoints  int                            `json:"totalPoints"`
	Months       []core.MonthSummary            `json:"months"`
	Transactions []rewards.AnnotatedTransaction `json:"transactions"`
	Skipped      int                            `json:"skipped"`
}

func writeJSON(out io.Writer, reports []*services.Report) error {
	rows := make([]jsonReport, 0, len(reports))
	for _, rep := range reports {
		rows = append(rows, jsonReport{
			Customer:     rep.Customer,
			TotalPoints:  rep.TotalPoints,
			Months:       rep.Months,
			Transactions: rep.Transactions,
			Skipped:      rep.Skipped,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeTables(out io.Writer, reports []*services.Report, loc *time.Location) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(out, "No transactions found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %d points\n", rep.Customer.Label(), rep.TotalPoints)
		if rep.Skipped > 0 {
			fmt.Fprintf(w, "(%d record(s) with an invalid amount not counted)\n", rep.Skipped)
		}

		fmt.Fprintln(w, "\nMONTH\tTRANSACTIONS\tSPENT\tPOINTS")
		for _, m := range rep.Months {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\n", m.Label, m.TransactionCount, m.TotalAmount, m.Points)
		}

		fmt.Fprintln(w, "\nID\tDATE\tAMOUNT\tPOINTS\tHIGH\tLOW")
		for _, row := range rep.Transactions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
				row.TransactionID,
				dateCell(row.Date, loc),
				amountCell(row.Amount),
				row.Points,
				row.PointsBreakdown.HighTier,
				row.PointsBreakdown.LowTier)
		}
	}
	return w.Flush()
}

func dateCell(d rewards.Date, loc *time.Location) string {
	if t, ok := d.In(loc); ok {
		return t.Format("2006-01-02")
	}
	if s := d.String(); s != "" {
		return s
	}
	return "-"
}

func amountCell(a rewards.Amount) string {
	if v, ok := a.Float64(); ok {
		return fmt.Sprintf("%.2f", v)
	}
	if a.Value() == nil {
		return "-"
	}
	return a.String()
}
