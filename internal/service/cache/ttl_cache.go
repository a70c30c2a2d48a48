package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is an in-process map with per-entry expiry and a size cap.
// Values are kept as-is, so it fits things that cannot round-trip through bytes.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	m       map[string]entry[V]
	maxSize int
	now     func() time.Time
}

// NewTTLCache creates a cache; maxSize <= 0 means unbounded.
func NewTTLCache[V any](maxSize int) *TTLCache[V] {
	return &TTLCache[V]{m: make(map[string]entry[V]), maxSize: maxSize, now: time.Now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxSize > 0 && len(c.m) >= c.maxSize {
		c.evict(now)
	}
	c.m[key] = entry[V]{v: v, exp: exp}
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// evict drops expired entries, or the soonest-expiring one when none are.
// Caller holds the write lock.
func (c *TTLCache[V]) evict(now time.Time) {
	var (
		victim string
		soon   time.Time
	)
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
			continue
		}
		if victim == "" || (!e.exp.IsZero() && (soon.IsZero() || e.exp.Before(soon))) {
			victim, soon = k, e.exp
		}
	}
	if len(c.m) >= c.maxSize && victim != "" {
		delete(c.m, victim)
	}
}
