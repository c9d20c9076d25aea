// Package cache holds a small TTL map used in front of read-only fetches.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	val     V
	created time.Time
}

type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
	// gen counts invalidations; a value read before one must not be stored after it.
	gen uint64
}

// New creates a cache whose entries expire ttl after they were set.
// A ttl of zero or less disables caching: every Get misses.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]entry[V]{},
	}
}

// WithClock replaces the time source. Used by tests.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.created) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{val: v, created: c.now()}
}

// Gen returns the current generation, to be passed to SetIfGen.
func (c *TTL[V]) Gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGen stores v only if no Invalidate ran since gen was taken.
func (c *TTL[V]) SetIfGen(key string, gen uint64, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = entry[V]{val: v, created: c.now()}
	return true
}

// Invalidate drops every key that starts with prefix; "" drops everything.
// It always starts a new generation, even when nothing matched.
func (c *TTL[V]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if prefix == "" {
		n := len(c.entries)
		c.entries = map[string]entry[V]{}
		return n
	}
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[V]) TTL() time.Duration { return c.ttl }
