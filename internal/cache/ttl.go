// Package cache holds small in-process caches.
package cache

import (
	"sync"
	"time"
)

// TTL keeps one value per key until it is older than the configured ttl.
// Expired entries are dropped lazily on Get.
type TTL[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[T]
	now     func() time.Time
}

type entry[T any] struct {
	value    T
	storedAt time.Time
}

func NewTTL[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

// Get returns the value stored under key and its age, if still fresh.
func (c *TTL[T]) Get(key string) (T, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, 0, false
	}
	age := c.now().Sub(e.storedAt)
	if age >= c.ttl {
		delete(c.entries, key)
		return zero, 0, false
	}
	return e.value, age, true
}

func (c *TTL[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, storedAt: c.now()}
}

func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
