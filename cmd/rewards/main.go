package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rewards/internal/backend"
	"rewards/internal/cache"
	"rewards/internal/cli"
	apphttp "rewards/internal/http"
	"rewards/internal/log"
	"rewards/internal/metrics"
	"rewards/internal/rewards"
	"rewards/internal/services"
)

const transactionsCache = "transactions"

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.MustLoadConfig(logger)
	loc := cli.MustLocation(logger, cfg)

	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.ErrorReporter = m

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	lru := cache.NewLRUCache[[]*rewards.Transaction](1000, cfg.CacheTTL)
	janitor := cache.NewJanitor(logger.Logger, lru)
	janitor.Start(time.Minute)
	loader := cache.NewLoader[[]*rewards.Transaction](transactionsCache, lru, m)

	rewardsSvc := services.NewRewardsService(result.Backend, result.Backend, loader, m, loc, cfg.PageSize)

	txSvc := services.NewTransactionService(result.Backend, result.Publisher, loader, m)

	opts := []apphttp.Option{
		apphttp.WithMetrics(m, transactionsCache),
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
		apphttp.WithLocation(loc),
	}
	if result.Snapshots != nil {
		opts = append(opts, apphttp.WithSnapshots(result.Snapshots))
	}
	if result.Ready != nil {
		opts = append(opts, apphttp.WithReadiness(result.Ready))
	}
	srv := apphttp.NewServer(":"+cfg.Port, rewardsSvc, txSvc, opts...)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting rewards server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok && err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			exitCode = 1
		}
	}

	cli.RunShutdown(logger, 30*time.Second,
		srv.Shutdown,
		janitor.Stop,
		func(context.Context) error {
			if result.Cleanup == nil {
				return nil
			}
			return result.Cleanup()
		},
	)
	logger.Info("Server stopped gracefully")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}
