// Package remote loads transactions from an HTTP transactions API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"rewards/internal/core"
	"rewards/internal/resilience"
	"rewards/internal/rewards"
	"rewards/internal/sources"
)

var (
	_ sources.CustomerLister    = (*Client)(nil)
	_ sources.TransactionLister = (*Client)(nil)
	_ sources.TransactionWriter = (*Client)(nil)
)

// ErrExternalService wraps every failure of the remote API.
var ErrExternalService = errors.New("transactions service unavailable")

// ErrorReporter is told about each failed call; metrics implement it.
type ErrorReporter interface {
	IncrExternalError(service string)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Location   *time.Location
}

// Client fetches customers and transactions with retry and a circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	retry      resilience.Config
	loc        *time.Location
	reporter   ErrorReporter
}

func New(cfg Config, httpClient *http.Client, reporter ErrorReporter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cb:         resilience.NewCircuitBreaker("transactions-api"),
		retry:      resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.Backoff},
		loc:        cfg.Location,
		reporter:   reporter,
	}
}

func (c *Client) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	var out []core.Customer
	if err := c.do(ctx, http.MethodGet, "/customers", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Customer{}
	}
	return out, nil
}

// ListTransactions asks the API for the range and filters the answer again
// locally, so a server that ignores the query still yields only matching rows.
func (c *Client) ListTransactions(ctx context.Context, customerID string, r core.DateRange) ([]*rewards.Transaction, error) {
	q := url.Values{}
	if !r.From.IsEmpty() {
		q.Set("from", r.From.String())
	}
	if !r.To.IsEmpty() {
		q.Set("to", r.To.String())
	}
	path := "/customers/" + url.PathEscape(customerID) + "/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var txs []*rewards.Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &txs); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx != nil && tx.CustomerID == "" {
			tx.CustomerID = customerID
		}
	}
	return sources.Filter(txs, customerID, r, c.loc), nil
}

func (c *Client) Append(ctx context.Context, tx rewards.Transaction) (string, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	var resp struct {
		Ref string `json:"ref"`
	}
	if err := c.do(ctx, http.MethodPost, "/transactions", body, &resp); err != nil {
		return "", err
	}
	if resp.Ref == "" {
		resp.Ref = "remote:" + tx.TransactionID
	}
	return resp.Ref, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.retry, func() error {
			return c.once(ctx, method, path, body, out)
		})
	})
	if err == nil {
		return nil
	}
	if c.reporter != nil {
		c.reporter.IncrExternalError("transactions-api")
	}
	if errors.Is(err, sources.ErrCustomerNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrExternalService, method, path, err)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(sources.ErrCustomerNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return resilience.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
