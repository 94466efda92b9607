// Package cli holds the start-up steps shared by cmd/rewards and
// cmd/rewards-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rewards/internal/config"
	"rewards/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. An unknown level falls back to info with
// a warning; an unknown format falls back to text.
func SetupLogger(component string) *log.Logger {
	return setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout, component)
}

func setupLogger(level, format string, w io.Writer, component string) *log.Logger {
	lvl, err := config.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Format:    format,
		Output:    w,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Using info log level", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoadConfig is LoadAndValidateConfig for main functions: it exits the
// process on failure.
func MustLoadConfig(logger *log.Logger) *config.Config {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// MustLocation resolves the configured time zone or exits.
func MustLocation(logger *log.Logger, cfg *config.Config) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid TIMEZONE", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}
	return loc
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunShutdown calls each step with a context bounded by timeout, logging
// failures, and reports whether all steps finished in time.
func RunShutdown(logger *log.Logger, timeout time.Duration, steps ...func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok := true
	for _, step := range steps {
		if step == nil {
			continue
		}
		if err := step(ctx); err != nil {
			logger.Error("Shutdown step failed", log.FieldError, err)
			ok = false
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached")
		return false
	}
	return ok
}
