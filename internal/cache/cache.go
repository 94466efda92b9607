// Package cache holds the in-process caches of the rewards service: a
// generic LRU with TTL and a loader that collapses concurrent misses.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is what Loader needs from a store. Keys are strings so whole
// customers can be invalidated by prefix.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix removes every key starting with prefix and returns how many went.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is a cache whose expired entries must be swept explicitly.
type Cleaner interface {
	CleanExpired() int
}

// Janitor sweeps expired entries out of its caches on a fixed interval.
type Janitor struct {
	caches []Cleaner
	logger *slog.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor watches caches; logger may be nil.
func NewJanitor(logger *slog.Logger, caches ...Cleaner) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{caches: caches, logger: logger, done: make(chan struct{})}
}

// Start launches the sweep loop. Later calls are no-ops.
func (j *Janitor) Start(interval time.Duration) {
	j.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		j.cancel = cancel
		go j.run(ctx, interval)
	})
}

func (j *Janitor) run(ctx context.Context, interval time.Duration) {
	defer close(j.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Expired cache entries removed", "component", "cache", "count", n)
			}
		}
	}
}

// Sweep runs one pass over every cache and returns the entries removed.
func (j *Janitor) Sweep() int {
	n := 0
	for _, c := range j.caches {
		n += c.CleanExpired()
	}
	return n
}

// Stop ends the loop and waits for it, or for ctx. A janitor stopped
// before Start never runs.
func (j *Janitor) Stop(ctx context.Context) error {
	j.once.Do(func() { close(j.done) })
	if j.cancel != nil {
		j.cancel()
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
