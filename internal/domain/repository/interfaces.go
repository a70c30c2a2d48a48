package repository

import (
	"context"
	"time"

	"StockPredictor/internal/domain/models"
)

// SeriesStore provides access to stored daily series.
type SeriesStore interface {
	Init(ctx context.Context) error
	GetLatestN(ctx context.Context, symbol string, n int) ([]models.HistoricalPoint, error)
	Save(ctx context.Context, symbol string, points []models.HistoricalPoint) error
	Health(ctx context.Context) error
	Close() error
}

// ResultPublisher emits prediction events to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, ev *models.PredictionEvent) error
	Close() error
}

// JobStore keeps job records for the async API.
type JobStore interface {
	Put(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
}

type Metrics interface {
	RecordPrediction(symbol, outcome string)
	RecordTraining(d time.Duration, pairs int)
	RecordConfidence(symbol string, confidence float64)
	RecordJob(status models.JobStatus)
	RecordError(kind string)
}
