package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"StockPredictor/internal/domain/models"
)

const (
	DefaultMaxConcurrent = 4
	DefaultRunTimeout    = 30 * time.Second
)

type runResult struct {
	res *models.PredictionResult
	err error
}

// Runner executes trainings off the caller goroutine with bounded concurrency.
type Runner struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewRunner creates a runner. Non-positive values fall back to defaults.
func NewRunner(maxConcurrent int, timeout time.Duration) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{sem: semaphore.NewWeighted(int64(maxConcurrent)), timeout: timeout}
}

// Run waits for fn or for ctx/timeout, whichever comes first. On timeout fn's
// context is cancelled and any late output is dropped.
func (r *Runner) Run(ctx context.Context, fn func(context.Context) (*models.PredictionResult, error)) (*models.PredictionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for runner slot: %w", err)
	}

	done := make(chan runResult, 1)
	go func() {
		defer r.sem.Release(1)
		res, err := fn(ctx)
		done <- runResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
