package service

import (
	"context"
	"time"

	"StockPredictor/internal/domain/models"
)

// Regressor is a trained network.
type Regressor interface {
	Predict(input []float64) []float64
}

// Trainer fits a fresh Regressor on labeled pairs.
type Trainer interface {
	Train(ctx context.Context, pairs []models.TrainingPair) (Regressor, error)
}

// FundamentalsSource produces the synthetic fundamentals overlay for one point.
type FundamentalsSource interface {
	Fundamentals(p models.HistoricalPoint) models.Fundamentals
}

// Clock supplies "today" for the forecast features and date labels.
type Clock interface {
	Now() time.Time
}

// Predictor runs a full prediction over a loaded series.
type Predictor interface {
	Predict(ctx context.Context, series []models.HistoricalPoint, symbol string) (*models.PredictionResult, error)
}
