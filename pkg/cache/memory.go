package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// fallbackTTL applies when Set is called without an expiration.
const fallbackTTL = 7 * 24 * time.Hour

type entry struct {
	key      string
	data     []byte
	deadline time.Time
}

func (e *entry) live(now time.Time) bool { return now.Before(e.deadline) }

// MemoryCache is a bounded in-process Service. The list keeps entries in
// recency order, front is most recent. Values are held encoded so reads
// behave like the Redis backend and callers cannot alias stored state.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	limit int

	quit      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{maxSize: 1000, cleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	mc := &MemoryCache{
		items: make(map[string]*list.Element, cfg.maxSize),
		order: list.New(),
		limit: cfg.maxSize,
		quit:  make(chan struct{}),
	}
	go mc.sweep(cfg.cleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = fallbackTTL
	}
	mc.mu.Lock()
	mc.put(key, data, time.Now().Add(expiration))
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e := mc.lookup(key, time.Now())
	if e == nil {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	data := e.data
	mc.mu.Unlock()
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok && el.Value.(*entry).live(now) {
			return true, nil
		}
	}
	return false, nil
}

// TryLock claims key for ttl unless a live entry already holds it.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if mc.lookup(key, now) != nil {
		return false, nil
	}
	mc.put(key, []byte("1"), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len counts stored entries, including expired ones not yet swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.quit) })
	return nil
}

// lookup returns the live entry for key and marks it recently used.
// Expired entries are dropped on the way. mu must be held.
func (mc *MemoryCache) lookup(key string, now time.Time) *entry {
	el, ok := mc.items[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if !e.live(now) {
		mc.remove(el)
		return nil
	}
	mc.order.MoveToFront(el)
	return e
}

func (mc *MemoryCache) put(key string, data []byte, deadline time.Time) {
	if el, ok := mc.items[key]; ok {
		e := el.Value.(*entry)
		e.data, e.deadline = data, deadline
		mc.order.MoveToFront(el)
		return
	}
	for mc.order.Len() >= mc.limit {
		mc.remove(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(&entry{key: key, data: data, deadline: deadline})
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*entry).key)
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.quit:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if !el.Value.(*entry).live(now) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}
