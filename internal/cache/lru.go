package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[T any] struct {
	key        string
	value      T
	expiresAt  time.Time
	prev, next *entry[T]
}

// LRUCache holds at most capacity entries, dropping the least recently used
// one when full. Entries also expire ttl after they were last set; a
// non-positive ttl keeps them until evicted.
type LRUCache[T any] struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	now       func() time.Time
	index     map[string]*entry[T]
	root      entry[T] // root.next is the most recent, root.prev the least
	evictions int
}

var (
	_ Cache[int] = (*LRUCache[int])(nil)
	_ Cleaner    = (*LRUCache[int])(nil)
)

func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	c := &LRUCache[T]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[string]*entry[T]),
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return c
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok || c.stale(e, c.now()) {
		if ok {
			c.unlink(e)
		}
		var zero T
		return zero, false
	}
	c.toFront(e)
	return e.value, true
}

// Set stores value under key and marks it most recently used.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if e, ok := c.index[key]; ok {
		e.value, e.expiresAt = value, expires
		c.toFront(e)
		return
	}
	e := &entry[T]{key: key, value: value, expiresAt: expires}
	c.index[key] = e
	c.link(e)
	for len(c.index) > c.capacity {
		c.unlink(c.root.prev)
		c.evictions++
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.index[key]; ok {
		c.unlink(e)
	}
}

func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeWhere(func(e *entry[T]) bool { return strings.HasPrefix(e.key, prefix) })
}

// CleanExpired drops every stale entry and reports how many it dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	return c.removeWhere(func(e *entry[T]) bool { return c.stale(e, now) })
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Evictions counts entries dropped to make room, not expired ones.
func (c *LRUCache[T]) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

func (c *LRUCache[T]) stale(e *entry[T], now time.Time) bool {
	return c.ttl > 0 && now.After(e.expiresAt)
}

func (c *LRUCache[T]) removeWhere(match func(*entry[T]) bool) int {
	n := 0
	for e := c.root.next; e != &c.root; {
		next := e.next
		if match(e) {
			c.unlink(e)
			n++
		}
		e = next
	}
	return n
}

func (c *LRUCache[T]) link(e *entry[T]) {
	e.prev = &c.root
	e.next = c.root.next
	c.root.next.prev = e
	c.root.next = e
}

func (c *LRUCache[T]) toFront(e *entry[T]) {
	if c.root.next == e {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	c.link(e)
}

func (c *LRUCache[T]) unlink(e *entry[T]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(c.index, e.key)
}
