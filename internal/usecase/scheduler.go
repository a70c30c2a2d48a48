package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"StockPredictor/pkg/cache"
	"StockPredictor/pkg/logger"
)

// WatchEntry is one scheduled prediction.
type WatchEntry struct {
	Symbol string `yaml:"symbol"`
	Source string `yaml:"source" default:"sample"`
	Spec   string `yaml:"spec"`
}

// Scheduler runs watchlist predictions on cron specs with a seconds field.
// A cache lock keeps a run single across replicas sharing the cache.
type Scheduler struct {
	cron    *cron.Cron
	uc      *PredictionUseCase
	locks   cache.Service
	lockTTL time.Duration
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(uc *PredictionUseCase, locks cache.Service, lockTTL time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		uc:      uc,
		locks:   locks,
		lockTTL: lockTTL,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds every entry; the first invalid spec aborts.
func (s *Scheduler) Register(entries []WatchEntry) error {
	for _, e := range entries {
		e := e
		if _, err := s.cron.AddFunc(e.Spec, func() { s.RunNow(e) }); err != nil {
			return fmt.Errorf("register %s (%q): %w", e.Symbol, e.Spec, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("entries", len(s.cron.Entries())))
}

// Stop halts the cron and waits for running tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes e once, skipping if another run holds the lock.
func (s *Scheduler) RunNow(e WatchEntry) {
	symbol := NormalizeSymbol(e.Symbol)
	if s.locks != nil {
		key := cache.Key("schedule", symbol)
		ok, err := s.locks.TryLock(s.ctx, key, s.lockTTL)
		if err != nil {
			s.log.Warn("scheduler lock", logger.String("symbol", symbol), logger.Error(err))
			return
		}
		if !ok {
			s.log.Debug("scheduled run skipped, lock held", logger.String("symbol", symbol))
			return
		}
		defer func() { _ = s.locks.Unlock(context.WithoutCancel(s.ctx), key) }()
	}

	if _, err := s.uc.Predict(s.ctx, PredictParams{Symbol: symbol, Source: e.Source}); err != nil {
		s.log.Error("scheduled prediction", logger.String("symbol", symbol), logger.Error(err))
	}
}
