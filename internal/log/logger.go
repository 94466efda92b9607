// Package log is the service's slog front end: component-tagged loggers,
// the logger carried in request contexts, and helpers for the recurring
// rewards events.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by LOG_FORMAT.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger is a slog.Logger that stamps every record with its component.
type Logger struct {
	*slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	// Format is FormatText or FormatJSON; Output defaults to stdout.
	Format string
	Output io.Writer
	// Handler, when set, overrides Format and Output.
	Handler slog.Handler
}

// NewHandler builds the handler for format, writing records at level or above.
func NewHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func New(cfg Config) *Logger {
	h := cfg.Handler
	if h == nil {
		h = NewHandler(cfg.Format, cfg.Output, cfg.Level)
	}
	return &Logger{Logger: slog.New(h), component: cfg.Component}
}

// Default returns a component logger backed by the process default handler.
func Default(component string) *Logger {
	return &Logger{Logger: slog.Default(), component: component}
}

// SetDefault installs logger's handler as the slog default, so package-level
// slog calls share its format and level.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a logger for another component sharing l's attributes.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger, component: component}
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args)
}
func (l *Logger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args)
}
func (l *Logger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args)
}
func (l *Logger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

// LogLevel writes at an explicit level, e.g. one chosen from a status code.
func (l *Logger) LogLevel(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.log(ctx, level, msg, args)
}
