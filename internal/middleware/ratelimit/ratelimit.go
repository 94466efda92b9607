// Package ratelimit throttles write requests per client IP.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// idleAfter is how long a client may stay quiet before its bucket is dropped.
const idleAfter = 10 * time.Minute

type Config struct {
	// RequestsPerMinute is both the burst size and the refill rate.
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods limits throttling to these HTTP methods. Empty means all.
	Methods []string
}

// DefaultConfig throttles recording endpoints to 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost},
	}
}

// bucket refills continuously; tokens are topped up when the client is
// next seen rather than by a ticker.
type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter keeps a token bucket per client.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	perSec   float64
	now      func() time.Time
	denied   atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter and the goroutine that forgets idle clients.
// Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	rl := &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(cfg.RequestsPerMinute),
		perSec:   float64(cfg.RequestsPerMinute) / 60,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.janitor(cfg.CleanupInterval)
	return rl
}

// Allow spends one token for client and reports whether one was available.
func (rl *Limiter) Allow(client string) bool {
	ok, _ := rl.take(client)
	return ok
}

// take returns, on refusal, how long until the client's next token.
func (rl *Limiter) take(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.capacity, seen: now}
		rl.buckets[client] = b
	}
	b.tokens = min(rl.capacity, b.tokens+now.Sub(b.seen).Seconds()*rl.perSec)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	rl.denied.Add(1)
	wait := time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
	return false, wait
}

func (rl *Limiter) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.cleanupStaleEntries()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleAfter)
	n := 0
	for client, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, client)
			n++
		}
	}
	return n
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	TotalHits   int64 `json:"totalHits"`
	ClientCount int64 `json:"clientCount"`
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{TotalHits: rl.denied.Load(), ClientCount: int64(rl.ActiveClients())}
}

// Middleware answers 429 with a Retry-After once a client's bucket is
// empty. Requests whose method is not in methods pass through uncounted;
// an empty list limits every request. onLimit may be nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, methods []string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) > 0 && !slices.Contains(methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.take(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
