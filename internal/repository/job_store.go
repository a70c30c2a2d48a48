package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	"StockPredictor/pkg/cache"
)

// ErrJobNotFound is returned when no record exists for the id.
var ErrJobNotFound = errors.New("job not found")

const (
	jobKeyPrefix  = "job"
	DefaultJobTTL = time.Hour
)

// CacheJobStore keeps job records in a cache.Service with a TTL.
type CacheJobStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheJobStore creates a job store; ttl <= 0 uses DefaultJobTTL.
func NewCacheJobStore(c cache.Service, ttl time.Duration) *CacheJobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &CacheJobStore{cache: c, ttl: ttl}
}

var _ domrepo.JobStore = (*CacheJobStore)(nil)

func (s *CacheJobStore) Put(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("put job: empty id")
	}
	return s.cache.Set(ctx, cache.Key(jobKeyPrefix, job.ID), job, s.ttl)
}

func (s *CacheJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.cache.Get(ctx, cache.Key(jobKeyPrefix, id), &job); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}
