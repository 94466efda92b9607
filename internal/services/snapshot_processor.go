package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingProcessor folds outstanding transactions into monthly snapshots,
// returning how many customers it refreshed.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// SnapshotProcessorConfig holds configuration for the snapshot processor
type SnapshotProcessorConfig struct {
	// PollInterval is how often to look for pending customers (default: 30s)
	PollInterval time.Duration

	// PassTimeout bounds a single pass (default: 1m)
	PassTimeout time.Duration
}

func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		PollInterval: 30 * time.Second,
		PassTimeout:  time.Minute,
	}
}

// SnapshotProcessor periodically runs a PendingProcessor. It is the backup
// path for transactions whose AMQP message was lost.
type SnapshotProcessor struct {
	pending PendingProcessor
	config  SnapshotProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSnapshotProcessor(pending PendingProcessor, config SnapshotProcessorConfig) *SnapshotProcessor {
	return &SnapshotProcessor{
		pending: pending,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Snapshot processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Snapshot processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Catch up on startup
	p.runPass(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runPass(ctx)
		}
	}
}

func (p *SnapshotProcessor) runPass(ctx context.Context) {
	if p.config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.PassTimeout)
		defer cancel()
	}

	n, err := p.pending.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Pending snapshot pass failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending snapshots refreshed", "customers", n)
	}
}
