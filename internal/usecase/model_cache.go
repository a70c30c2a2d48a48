package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"StockPredictor/internal/domain/models"
	domsvc "StockPredictor/internal/domain/service"
	svccache "StockPredictor/internal/service/cache"
	"StockPredictor/pkg/cache"
)

const (
	PolicyPerCall = "per_call"
	PolicyCached  = "cached"

	DefaultModelTTL     = 10 * time.Minute
	DefaultModelEntries = 128
	// DefaultTrainTimeout caps a shared training once no caller bounds it.
	DefaultTrainTimeout = 2 * time.Minute
)

// lockedRegressor serialises Predict; go-deep writes activations into the network.
type lockedRegressor struct {
	mu sync.Mutex
	r  domsvc.Regressor
}

func (l *lockedRegressor) Predict(in []float64) []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Predict(in)
}

// ModelCache keeps trained models keyed by a hash of the input series.
// A training started for one caller is shared by every concurrent miss on
// the same series and is detached from the caller's cancellation.
type ModelCache struct {
	models       *svccache.TTLCache[domsvc.Regressor]
	group        singleflight.Group
	ttl          time.Duration
	trainTimeout time.Duration
}

func NewModelCache(ttl time.Duration, maxEntries int) *ModelCache {
	if ttl <= 0 {
		ttl = DefaultModelTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultModelEntries
	}
	return &ModelCache{
		models:       svccache.NewTTLCache[domsvc.Regressor](maxEntries),
		ttl:          ttl,
		trainTimeout: DefaultTrainTimeout,
	}
}

// WithTrainTimeout bounds shared trainings; d <= 0 is ignored.
func (c *ModelCache) WithTrainTimeout(d time.Duration) *ModelCache {
	if d > 0 {
		c.trainTimeout = d
	}
	return c
}

// SeriesKey hashes the canonical JSON form of series.
func SeriesKey(series []models.HistoricalPoint) (string, error) {
	b, err := json.Marshal(series)
	if err != nil {
		return "", fmt.Errorf("encode series: %w", err)
	}
	return cache.Key("model", cache.HashKey(b)), nil
}

// GetOrTrain returns a cached model or trains one; concurrent misses share one training.
func (c *ModelCache) GetOrTrain(ctx context.Context, series []models.HistoricalPoint, train func(context.Context) (domsvc.Regressor, error)) (domsvc.Regressor, error) {
	key, err := SeriesKey(series)
	if err != nil {
		return nil, err
	}
	if m, ok := c.models.Get(key); ok {
		return m, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if m, ok := c.models.Get(key); ok {
			return m, nil
		}
		// one caller giving up must not fail the others waiting on this key
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.trainTimeout)
		defer cancel()
		m, err := train(tctx)
		if err != nil {
			return nil, err
		}
		locked := &lockedRegressor{r: m}
		c.models.Set(key, locked, c.ttl)
		return locked, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domsvc.Regressor), nil
	}
}

func (c *ModelCache) Len() int { return c.models.Len() }
