package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DataBackend)

	t.Setenv("DATA_BACKEND", "postgres")
	_, err = LoadAndValidateConfig()
	assert.Error(t, err)
}

func TestSetupLogger_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("verbose", "text", &buf, "test")
	assert.Equal(t, "test", logger.Component())
	assert.Contains(t, buf.String(), "Using info log level")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("debug", "json", &buf, "test")
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestRunShutdown(t *testing.T) {
	logger := setupLogger("error", "text", io.Discard, "test")

	var order []string
	ok := RunShutdown(logger, time.Second,
		func(context.Context) error { order = append(order, "server"); return nil },
		nil,
		func(context.Context) error { order = append(order, "backend"); return nil },
	)
	assert.True(t, ok)
	assert.Equal(t, []string{"server", "backend"}, order)

	ok = RunShutdown(logger, time.Second, func(context.Context) error { return errors.New("close failed") })
	assert.False(t, ok)

	ok = RunShutdown(logger, 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.False(t, ok)
}
