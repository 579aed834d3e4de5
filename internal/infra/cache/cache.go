// Package cache is a small generic TTL cache. The admin service uses
// it to keep the dashboard snapshot off the hot path.
package cache

import (
	"sync"
	"time"
)

// minSweep bounds how often the janitor runs for very short TTLs.
const minSweep = time.Second

type item[T any] struct {
	value    T
	deadline time.Time
}

// InMemory caches values of one type under string keys, each expiring
// a fixed TTL after it was stored. Safe for concurrent use.
type InMemory[T any] struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]item[T]
}

// New returns a cache whose entries live for ttl. A janitor goroutine
// sweeps expired entries for the lifetime of the process.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		ttl:   ttl,
		items: make(map[string]item[T]),
	}
	go c.janitor()
	return c
}

// Set stores value under key, resetting its lifetime.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	c.items[key] = item[T]{value: value, deadline: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Get returns the live value for key. Expired entries count as
// misses even before the janitor collects them.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !time.Now().Before(it.deadline) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Delete drops key immediately. Deleting an absent key is a no-op.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *InMemory[T]) janitor() {
	interval := c.ttl
	if interval < minSweep {
		interval = minSweep
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for now := range ticker.C {
		c.mu.Lock()
		for key, it := range c.items {
			if now.After(it.deadline) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
