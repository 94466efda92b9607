// Package google reads reward transactions from a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"rewards/internal/core"
	"rewards/internal/rewards"
	"rewards/internal/sources"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ sources.CustomerLister    = (*Client)(nil)
	_ sources.TransactionLister = (*Client)(nil)
	_ sources.TransactionWriter = (*Client)(nil)
)

type Config struct {
	SpreadsheetID string
	// TransactionsSheet holds a header row (TransactionID, CustomerID,
	// Amount, Date) followed by one transaction per row.
	TransactionsSheet string
	// CustomersSheet optionally maps IDs (column A) to names (column B).
	CustomersSheet string

	ServiceAccountJSON string
	ServiceAccountFile string

	// OAuthTokenFile, when set, authenticates as the user who authorized
	// it with cmd/rewards-sheets-auth instead of a service account. The
	// OAuth client secret comes from OAuthClientJSON or OAuthClientFile.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string

	Location *time.Location
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	customersSheet    string
	loc               *time.Location
}

// New creates a Sheets client. Without extra options it authenticates with
// the configured service account; opts replace that (tests point the client
// at a fake endpoint).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.TransactionsSheet == "" {
		cfg.TransactionsSheet = "Transactions"
	}
	if cfg.CustomersSheet == "" {
		cfg.CustomersSheet = "Customers"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if len(opts) == 0 {
		var err error
		if opts, err = credentialOptions(ctx, cfg); err != nil {
			return nil, err
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		transactionsSheet: cfg.TransactionsSheet,
		customersSheet:    cfg.CustomersSheet,
		loc:               cfg.Location,
	}, nil
}

func credentialOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials", "token_file", cfg.OAuthTokenFile)
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	}

	creds, err := serviceAccountCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func serviceAccountCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", cfg.ServiceAccountFile)
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_TOKEN_FILE)")
	}
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) readTransactions(ctx context.Context) ([]*rewards.Transaction, error) {
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:D", c.transactionsSheet))
	if err != nil {
		return nil, err
	}
	return parseTransactions(values)
}

// ListCustomers derives customers from the transactions sheet, naming them
// from the customers sheet when it exists.
func (c *Client) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	txs, err := c.readTransactions(ctx)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	values, err := c.readRange(ctx, fmt.Sprintf("%s!A:B", c.customersSheet))
	if err != nil {
		slog.WarnContext(ctx, "Customers sheet unavailable, using IDs as names", "sheet", c.customersSheet, "error", err)
	} else {
		names = parseCustomerNames(values)
	}
	return sources.CustomersOf(txs, names), nil
}

func (c *Client) ListTransactions(ctx context.Context, customerID string, r core.DateRange) ([]*rewards.Transaction, error) {
	txs, err := c.readTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if !sources.HasCustomer(sources.CustomersOf(txs, nil), customerID) {
		return nil, fmt.Errorf("%w: %s", sources.ErrCustomerNotFound, customerID)
	}
	return sources.Filter(txs, customerID, r, c.loc), nil
}

// Append adds the transaction as a new row and returns the updated range.
func (c *Client) Append(ctx context.Context, tx rewards.Transaction) (string, error) {
	if strings.TrimSpace(tx.CustomerID) == "" {
		return "", core.ErrEmptyCustomer
	}
	amount, ok := tx.Amount.Float64()
	if !ok || !tx.Amount.Valid() {
		return "", fmt.Errorf("append %s: %w", tx.TransactionID, rewards.ErrInvalidAmount)
	}
	rng := fmt.Sprintf("%s!A:D", c.transactionsSheet)
	vr := &gsheet.ValueRange{Values: [][]interface{}{{tx.TransactionID, tx.CustomerID, amount, tx.Date.String()}}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.transactionsSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
