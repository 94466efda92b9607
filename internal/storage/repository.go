// Package storage persists customers, transactions and monthly reward
// snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rewards/internal/core"
	"rewards/internal/rewards"
	"rewards/internal/sources"

	_ "modernc.org/sqlite"
)

var (
	_ sources.CustomerLister    = (*SQLiteRepository)(nil)
	_ sources.TransactionLister = (*SQLiteRepository)(nil)
	_ sources.TransactionWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db     *sql.DB
	loc    *time.Location
	schema SchemaVersion
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &SQLiteRepository{db: db, loc: loc, schema: schema}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Schema reports the migration version applied when the repository opened.
func (r *SQLiteRepository) Schema() SchemaVersion {
	return r.schema
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveCustomer inserts a customer or renames an existing one.
func (r *SQLiteRepository) SaveCustomer(ctx context.Context, c core.Customer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("save customer %s: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM customers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := make([]core.Customer, 0)
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTransactions returns the customer's records in insertion order.
// Date filtering happens after decoding since stored dates keep their
// original, possibly malformed, form.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, customerID string, dr core.DateRange) ([]*rewards.Transaction, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, customerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sources.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", customerID, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT transaction_id, customer_id, amount_raw, date_raw
		 FROM transactions WHERE customer_id = ? ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*rewards.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return sources.Filter(txs, customerID, dr, r.loc), nil
}

func scanTransaction(rows *sql.Rows) (*rewards.Transaction, error) {
	var (
		tx                 rewards.Transaction
		amountRaw, dateRaw string
	)
	if err := rows.Scan(&tx.TransactionID, &tx.CustomerID, &amountRaw, &dateRaw); err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if err := json.Unmarshal([]byte(amountRaw), &tx.Amount); err != nil {
		return nil, fmt.Errorf("decode amount of %s: %w", tx.TransactionID, err)
	}
	if err := json.Unmarshal([]byte(dateRaw), &tx.Date); err != nil {
		return nil, fmt.Errorf("decode date of %s: %w", tx.TransactionID, err)
	}
	return &tx, nil
}

// Append stores tx, creating its customer on first sight, and flags it for
// the snapshot worker. The returned ref is the row id.
func (r *SQLiteRepository) Append(ctx context.Context, tx rewards.Transaction) (string, error) {
	amountRaw, err := json.Marshal(tx.Amount)
	if err != nil {
		return "", fmt.Errorf("encode amount: %w", err)
	}
	dateRaw, err := json.Marshal(tx.Date)
	if err != nil {
		return "", fmt.Errorf("encode date: %w", err)
	}
	var amount sql.NullFloat64
	if v, ok := tx.Amount.Float64(); ok && tx.Amount.Valid() {
		amount = sql.NullFloat64{Float64: v, Valid: true}
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx,
		`INSERT INTO customers (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, tx.CustomerID); err != nil {
		return "", fmt.Errorf("ensure customer: %w", err)
	}
	res, err := dbtx.ExecContext(ctx,
		`INSERT INTO transactions (transaction_id, customer_id, amount, amount_raw, date_raw)
		 VALUES (?, ?, ?, ?, ?)`,
		tx.TransactionID, tx.CustomerID, amount, string(amountRaw), string(dateRaw))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"transaction_id", tx.TransactionID,
		"customer_id", tx.CustomerID)

	return strconv.FormatInt(id, 10), nil
}

// PendingCustomers returns up to limit customers with transactions not yet
// folded into their monthly snapshots.
func (r *SQLiteRepository) PendingCustomers(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT customer_id FROM transactions WHERE snapshot_pending = 1
		 GROUP BY customer_id ORDER BY MIN(id) LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending customers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending customer: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestSeq returns the highest row id stored for the customer, 0 when none.
func (r *SQLiteRepository) LatestSeq(ctx context.Context, customerID string) (int64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(id) FROM transactions WHERE customer_id = ?`, customerID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest seq for %s: %w", customerID, err)
	}
	return seq.Int64, nil
}

// MarkSnapshotDone clears the pending flag on the customer's rows up to seq,
// leaving rows appended after the recomputation pending.
func (r *SQLiteRepository) MarkSnapshotDone(ctx context.Context, customerID string, seq int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET snapshot_pending = 0
		 WHERE customer_id = ? AND id <= ? AND snapshot_pending = 1`, customerID, seq)
	if err != nil {
		return fmt.Errorf("mark snapshot done: %w", err)
	}
	return nil
}

// ReplaceMonthlySnapshots swaps the customer's stored months for months.
func (r *SQLiteRepository) ReplaceMonthlySnapshots(ctx context.Context, customerID string, months []core.MonthSummary, at time.Time) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM monthly_rewards WHERE customer_id = ?`, customerID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	stamp := at.UTC().Format(time.RFC3339)
	for _, m := range months {
		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO monthly_rewards (customer_id, month, points, transaction_count, total_amount, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			customerID, m.Key, m.Points, m.TransactionCount, m.TotalAmount, stamp); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", m.Key, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListMonthlySnapshots returns the stored months in chronological order.
func (r *SQLiteRepository) ListMonthlySnapshots(ctx context.Context, customerID string) ([]core.MonthlySnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, points, transaction_count, total_amount, updated_at
		 FROM monthly_rewards WHERE customer_id = ? ORDER BY month`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]core.MonthlySnapshot, 0)
	for rows.Next() {
		s := core.MonthlySnapshot{CustomerID: customerID}
		var stamp string
		if err := rows.Scan(&s.Key, &s.Points, &s.TransactionCount, &s.TotalAmount, &stamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Label = rewards.FormatMonthKey(s.Key)
		if s.UpdatedAt, err = time.Parse(time.RFC3339, stamp); err != nil {
			return nil, fmt.Errorf("parse snapshot time: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
