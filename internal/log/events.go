package log

import (
	"context"
	"log/slog"
	"net/http"
)

// Events writes the records emitted at fixed points of a request or a
// transaction's life, so they carry the same keys wherever they come from.
type Events struct {
	logger *Logger
}

func NewEvents(logger *Logger) *Events {
	return &Events{logger: logger}
}

func (e *Events) HTTPStarted(ctx context.Context, r *http.Request, clientIP string) {
	f := NewFields().
		withRequest(r.Method, r.URL.Path, r.URL.RawQuery, clientIP).
		Add(FieldUserAgent, r.UserAgent()).
		Add(FieldReferer, r.Referer())
	e.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started", f.Args()...)
}

// HTTPFinished logs at warn for 4xx and error for 5xx statuses.
func (e *Events) HTTPFinished(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}
	f := NewFields().
		withRequest(r.Method, r.URL.Path, r.URL.RawQuery, clientIP).
		Add(FieldStatusCode, status).
		Add(FieldDuration, durationMs).
		Add(FieldSuccess, status < http.StatusBadRequest)
	e.logger.WithComponent(ComponentHTTP).LogLevel(ctx, level, "HTTP request completed", f.Args()...)
}

func (e *Events) TransactionRecorded(ctx context.Context, transactionID, customerID string, amount float64, ref string) {
	f := NewFields().
		WithTransaction(transactionID, customerID, amount).
		WithOperation(OpRecord).
		Add(FieldRef, ref)
	e.logger.WithComponent(ComponentTransaction).InfoContext(ctx, "Transaction recorded", f.Args()...)
}

func (e *Events) RewardsComputed(ctx context.Context, customerID string, transactions, months, points int) {
	f := NewFields().
		WithCustomer(customerID).
		WithOperation(OpCompute).
		Add(FieldTransactionCount, transactions).
		Add(FieldMonths, months).
		Add(FieldPoints, points)
	e.logger.WithComponent(ComponentRewards).DebugContext(ctx, "Rewards computed", f.Args()...)
}

// Failure logs err under component and operation with any extra fields.
func (e *Events) Failure(ctx context.Context, msg string, err error, component, operation string, extra Fields) {
	f := append(NewFields().WithError(err).WithOperation(operation), extra...)
	e.logger.WithComponent(component).ErrorContext(ctx, msg, f.Args()...)
}
