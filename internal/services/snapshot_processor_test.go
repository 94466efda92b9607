package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPending struct {
	calls atomic.Int32
	err   error
}

func (c *countingPending) ProcessPending(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestDefaultSnapshotProcessorConfig(t *testing.T) {
	config := DefaultSnapshotProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.PassTimeout != time.Minute {
		t.Errorf("expected PassTimeout 1m, got %v", config.PassTimeout)
	}
}

func TestSnapshotProcessor_RunsPasses(t *testing.T) {
	pending := &countingPending{}
	processor := NewSnapshotProcessor(pending, SnapshotProcessorConfig{PollInterval: 10 * time.Millisecond})

	if processor.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for pending.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := pending.calls.Load(); got < 3 {
		t.Errorf("expected at least 3 passes, got %d", got)
	}

	if err := processor.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestSnapshotProcessor_SurvivesFailingPass(t *testing.T) {
	pending := &countingPending{err: errors.New("db locked")}
	processor := NewSnapshotProcessor(pending, SnapshotProcessorConfig{PollInterval: 5 * time.Millisecond, PassTimeout: time.Second})

	if err := processor.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for pending.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := processor.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := pending.calls.Load(); got < 2 {
		t.Errorf("a failing pass should not stop the loop, got %d passes", got)
	}
}

func TestSnapshotProcessor_StopNotRunning(t *testing.T) {
	processor := NewSnapshotProcessor(&countingPending{}, DefaultSnapshotProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
