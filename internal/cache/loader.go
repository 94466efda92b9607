package cache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Observer receives hit/miss notifications, typically a metrics sink.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// Loader reads through a Cache, calling load on a miss. Concurrent misses
// for the same key share a single load. A load that overlaps an
// Invalidate of its key's prefix returns its value but does not cache it.
type Loader[T any] struct {
	name     string
	cache    Cache[T]
	group    singleflight.Group
	observer Observer

	mu       sync.Mutex
	epoch    uint64
	dropped  map[string]uint64 // prefix -> epoch of its last Invalidate
	inflight map[string]int
}

// NewLoader wraps c. observer may be nil.
func NewLoader[T any](name string, c Cache[T], observer Observer) *Loader[T] {
	return &Loader[T]{
		name:     name,
		cache:    c,
		observer: observer,
		dropped:  make(map[string]uint64),
		inflight: make(map[string]int),
	}
}

// Get returns the cached value for key or loads, stores and returns it.
// Failed loads are not cached.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		if l.observer != nil {
			l.observer.CacheHit(l.name)
		}
		return v, nil
	}
	if l.observer != nil {
		l.observer.CacheMiss(l.name)
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		started := l.begin(key)
		v, err := load(ctx)
		l.finish(key, started, v, err)
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (l *Loader[T]) begin(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[key]++
	return l.epoch
}

// finish stores v unless a matching prefix was invalidated after started.
// It runs under mu so it cannot interleave with Invalidate.
func (l *Loader[T]) finish(key string, started uint64, v T, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[key]--; l.inflight[key] <= 0 {
		delete(l.inflight, key)
	}
	if err != nil {
		return
	}
	for prefix, at := range l.dropped {
		if at > started && strings.HasPrefix(key, prefix) {
			return
		}
	}
	l.cache.Set(key, v)
}

// Invalidate drops every cached key with the given prefix. Loads already
// running for such keys are forgotten, so later callers start a fresh one.
func (l *Loader[T]) Invalidate(prefix string) int {
	l.mu.Lock()
	l.epoch++
	l.dropped[prefix] = l.epoch
	for key := range l.inflight {
		if strings.HasPrefix(key, prefix) {
			l.group.Forget(key)
		}
	}
	l.mu.Unlock()
	return l.cache.DeletePrefix(prefix)
}
