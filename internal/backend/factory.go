package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rewards/internal/amqp"
	gsheet "rewards/internal/sources/google"
	"rewards/internal/sources/memory"
	"rewards/internal/sources/remote"
	"rewards/internal/storage"
)

type builder func(ctx context.Context, cfg Config) (*BackendResult, error)

// DefaultFactory builds the backend named by Config.Type.
type DefaultFactory struct {
	logger   *slog.Logger
	builders map[BackendType]builder
}

// NewFactory returns a Factory for every BackendType; logger may be nil.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &DefaultFactory{logger: logger}
	f.builders = map[BackendType]builder{
		MemoryBackend: f.newMemory,
		SQLiteBackend: f.newSQLite,
		SheetsBackend: f.newSheets,
		RemoteBackend: f.newRemote,
	}
	return f
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	build, ok := f.builders[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
	res, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Type, err)
	}
	return res, nil
}

func (f *DefaultFactory) newMemory(_ context.Context, cfg Config) (*BackendResult, error) {
	dir := cfg.MemoryDir
	if dir == "" {
		dir = "data"
	}
	store, err := memory.NewFromFiles(dir)
	if err != nil {
		return nil, err
	}
	store.InLocation(cfg.Location)

	f.logger.Info("Initialized memory backend", "data_directory", dir, "records", store.Len())
	return &BackendResult{Backend: store}, nil
}

// newSQLite opens the repository and, when configured, an AMQP publisher.
// A broker that cannot be reached is logged and skipped: the worker's
// periodic pass still picks the rows up.
func (f *DefaultFactory) newSQLite(_ context.Context, cfg Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLitePath, cfg.Location)
	if err != nil {
		return nil, err
	}
	res := &BackendResult{
		Backend:   repo,
		Snapshots: repo,
		Ready:     repo.Ping,
		Cleanup:   repo.Close,
	}

	if cfg.AMQP.URL != "" {
		client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			f.logger.Warn("AMQP unavailable, continuing without events", "error", err)
		} else {
			res.Publisher = client
			res.Cleanup = func() error {
				return errors.Join(wrapErr("amqp", client.Close()), wrapErr("storage", repo.Close()))
			}
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", cfg.SQLitePath,
		"schema_version", repo.Schema().Version,
		"amqp_enabled", res.Publisher != nil)
	return res, nil
}

func (f *DefaultFactory) newSheets(ctx context.Context, cfg Config) (*BackendResult, error) {
	sc := cfg.Sheets
	if sc.Location == nil {
		sc.Location = cfg.Location
	}
	client, err := gsheet.New(ctx, sc)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", sc.TransactionsSheet)
	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) newRemote(_ context.Context, cfg Config) (*BackendResult, error) {
	rc := cfg.Remote
	if rc.Location == nil {
		rc.Location = cfg.Location
	}
	client := remote.New(rc, nil, cfg.ErrorReporter)
	f.logger.Info("Initialized remote backend", "base_url", rc.BaseURL)
	return &BackendResult{Backend: client}, nil
}

func wrapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
