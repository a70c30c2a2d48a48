package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	domsvc "StockPredictor/internal/domain/service"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/pkg/logger"
)

var (
	ErrSymbolRequired = errors.New("symbol is required")
	ErrNoData         = errors.New("no data loaded")
)

// SeriesLoader resolves a data source into a series.
type SeriesLoader interface {
	Load(ctx context.Context, req dataload.Request) ([]models.HistoricalPoint, error)
}

// PredictParams selects the series and labels the result.
type PredictParams struct {
	Symbol string                   `json:"symbol"`
	Source string                   `json:"source"`
	Limit  int                      `json:"limit,omitempty"`
	Points []models.HistoricalPoint `json:"points,omitempty"`
	File   []byte                   `json:"file,omitempty"`
	Format string                   `json:"format,omitempty"`
	JobID  string                   `json:"jobId,omitempty"`
}

// PredictionUseCase validates input, loads data and runs the engine.
type PredictionUseCase struct {
	engine    domsvc.Predictor
	loader    SeriesLoader
	runner    *Runner
	publisher domrepo.ResultPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
}

// NewPredictionUseCase wires the use case; publisher may be nil.
func NewPredictionUseCase(
	engine domsvc.Predictor,
	loader SeriesLoader,
	runner *Runner,
	publisher domrepo.ResultPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *PredictionUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &PredictionUseCase{
		engine:    engine,
		loader:    loader,
		runner:    runner,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
	}
}

// NormalizeSymbol trims and upper-cases s.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (uc *PredictionUseCase) Predict(ctx context.Context, p PredictParams) (*models.PredictionResult, error) {
	symbol := NormalizeSymbol(p.Symbol)
	if symbol == "" {
		return nil, ErrSymbolRequired
	}

	start := time.Now()
	series, err := uc.loader.Load(ctx, dataload.Request{
		Source: p.Source,
		Symbol: symbol,
		Limit:  p.Limit,
		Points: p.Points,
		File:   p.File,
		Format: p.Format,
	})
	if err != nil {
		uc.metrics.RecordError("load")
		return nil, err
	}
	if len(series) == 0 {
		uc.metrics.RecordError("load")
		return nil, ErrNoData
	}

	res, err := uc.runner.Run(ctx, func(ctx context.Context) (*models.PredictionResult, error) {
		return uc.engine.Predict(ctx, series, symbol)
	})
	if err != nil {
		uc.metrics.RecordPrediction(symbol, "error")
		uc.log.Error("prediction failed",
			logger.String("symbol", symbol),
			logger.String("source", p.Source),
			logger.Int("points", len(series)),
			logger.Error(err))
		return nil, err
	}

	uc.metrics.RecordPrediction(symbol, "ok")
	uc.metrics.RecordConfidence(symbol, res.Confidence)
	uc.log.Info("prediction completed",
		logger.String("symbol", symbol),
		logger.String("source", p.Source),
		logger.Int("points", len(series)),
		logger.Float64("current", res.CurrentPrice),
		logger.Float64("predicted", res.PredictedPrice),
		logger.Float64("confidence", res.Confidence),
		logger.String("recommendation", string(res.Recommendation)),
		logger.Duration("elapsed_ms", time.Since(start)))

	uc.publish(ctx, p, res)
	return res, nil
}

func (uc *PredictionUseCase) publish(ctx context.Context, p PredictParams, res *models.PredictionResult) {
	if uc.publisher == nil {
		return
	}
	err := uc.publisher.Publish(ctx, &models.PredictionEvent{
		Symbol: res.Symbol,
		Source: p.Source,
		JobID:  p.JobID,
		Result: res,
	})
	if err != nil {
		uc.metrics.RecordError("publish")
		uc.log.Warn("publish prediction event", logger.String("symbol", res.Symbol), logger.Error(err))
	}
}

// Samples returns the bundled sample series.
func (uc *PredictionUseCase) Samples() []models.HistoricalPoint {
	return dataload.Sample()
}
