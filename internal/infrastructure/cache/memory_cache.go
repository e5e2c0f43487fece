package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultCleanupInterval = 30 * time.Second

// entry wraps a cached value with its expiry. A nil value records a known miss.
type entry[T any] struct {
	value     *T
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache. It is the L1 tier in front of Redis.
type MemoryCache[T any] struct {
	items   sync.Map // map[string]*entry[T]
	ttl     time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stopped atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache whose entries live for ttl and starts its sweeper.
// Call Stop to end the sweeper.
func NewMemoryCache[T any](ttl time.Duration) *MemoryCache[T] {
	c := &MemoryCache[T]{
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go c.sweep(defaultCleanupInterval)
	return c
}

// Get returns the cached value and whether the key was present.
// A present key may hold nil when a miss was cached.
func (c *MemoryCache[T]) Get(key string) (*T, bool) {
	raw, ok := c.items.Load(key)
	if ok {
		e := raw.(*entry[T])
		if c.now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.value, true
		}
		c.items.CompareAndDelete(key, raw)
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores value under key; nil caches a miss
func (c *MemoryCache[T]) Set(key string, value *T) {
	c.items.Store(key, &entry[T]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes key
func (c *MemoryCache[T]) Delete(key string) {
	c.items.Delete(key)
}

// Clear removes every key
func (c *MemoryCache[T]) Clear() {
	c.items.Range(func(k, _ any) bool {
		c.items.Delete(k)
		return true
	})
}

// Stats returns hit and miss counts since creation
func (c *MemoryCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Stop ends the background sweeper. It is safe to call more than once.
func (c *MemoryCache[T]) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
}

func (c *MemoryCache[T]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := c.now()
			c.items.Range(func(k, v any) bool {
				if !now.Before(v.(*entry[T]).expiresAt) {
					c.items.CompareAndDelete(k, v)
				}
				return true
			})
		}
	}
}
