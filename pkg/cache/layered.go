package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"golang.org/x/sync/singleflight"
)

// LayeredCache is a write-through pair: an in-process L1 in front of L2.
// Locks and existence checks always go to L2, which is shared across replicas.
type LayeredCache struct {
	l1    *MemoryCache
	l2    Service
	l1TTL time.Duration
	fill  singleflight.Group
}

func NewLayeredCache(l2 Service, cfg LayeredConfig) (*LayeredCache, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("layered cache defaults: %w", err)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    l2,
		l1TTL: cfg.MemoryTTL,
	}, nil
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	ttl := lc.l1TTL
	if expiration > 0 && expiration < ttl {
		ttl = expiration
	}
	return lc.l1.Set(ctx, key, value, ttl)
}

// Get serves from L1, otherwise loads from L2 once per key however many
// callers are waiting, and backfills L1.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err, _ := lc.fill.Do(key, func() (interface{}, error) {
		var raw []byte
		if err := lc.l2.Get(ctx, key, &raw); err != nil {
			return nil, err
		}
		_ = lc.l1.Set(ctx, key, raw, lc.l1TTL)
		return raw, nil
	})
	if err != nil {
		return err
	}
	return decode(v.([]byte), dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.l2.Exists(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// Close releases L1 and then L2.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
