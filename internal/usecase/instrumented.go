package usecase

import (
	"context"
	"time"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	domsvc "StockPredictor/internal/domain/service"
)

// InstrumentedTrainer records duration and pair count of every training.
type InstrumentedTrainer struct {
	next    domsvc.Trainer
	metrics domrepo.Metrics
}

func NewInstrumentedTrainer(next domsvc.Trainer, metrics domrepo.Metrics) *InstrumentedTrainer {
	return &InstrumentedTrainer{next: next, metrics: metrics}
}

func (t *InstrumentedTrainer) Train(ctx context.Context, pairs []models.TrainingPair) (domsvc.Regressor, error) {
	start := time.Now()
	m, err := t.next.Train(ctx, pairs)
	if err != nil {
		t.metrics.RecordError("train")
		return nil, err
	}
	t.metrics.RecordTraining(time.Since(start), len(pairs))
	return m, nil
}
