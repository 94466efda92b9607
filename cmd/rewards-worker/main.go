package main

import (
	"context"
	"errors"
	"os"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/cli"
	"rewards/internal/log"
	"rewards/internal/metrics"
	"rewards/internal/services"
	"rewards/internal/storage"
	"rewards/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting rewards-worker")

	cfg := cli.MustLoadConfig(logger)
	loc := cli.MustLocation(logger, cfg)

	// Snapshots live next to the transactions they summarize
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, loc)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("SQLite schema ready", "path", cfg.SQLiteDBPath, "version", repo.Schema().Version)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	snapshots := worker.NewSnapshotWorker(repo, metrics.New(), loc, cfg.SnapshotBatchSize)

	// The periodic pass catches transactions whose message never arrived
	processor := services.NewSnapshotProcessor(snapshots, services.SnapshotProcessorConfig{
		PollInterval: cfg.SnapshotInterval,
		PassTimeout:  time.Minute,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start snapshot processor", log.FieldError, err)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		go func() {
			if err := amqpClient.ConsumeTransactionRecorded(ctx, snapshots.HandleTransactionRecorded); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP_URL not set, relying on the periodic snapshot pass only",
			"interval", cfg.SnapshotInterval)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	cli.RunShutdown(logger, 30*time.Second,
		processor.Stop,
		func(context.Context) error {
			if amqpClient == nil {
				return nil
			}
			return amqpClient.Close()
		},
	)
	logger.Info("Worker shutdown complete")
}
