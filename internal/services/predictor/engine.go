package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/domain/service"
	"StockPredictor/internal/services/features"
)

// ErrPredictionFailed is the single failure surfaced for training or runtime errors.
var ErrPredictionFailed = errors.New("prediction failed")

const (
	monthWindow        = 15
	dailyConfidenceDec = 2.0

	predictionDateLayout = "January 2, 2006"
	upcomingDateLayout   = "Jan 2"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ModelCache returns a model for the series, calling train on a miss.
type ModelCache interface {
	GetOrTrain(ctx context.Context, series []models.HistoricalPoint, train func(context.Context) (service.Regressor, error)) (service.Regressor, error)
}

// Engine derives features, trains a regressor and synthesises the result.
type Engine struct {
	trainer      service.Trainer
	fundamentals service.FundamentalsSource
	clock        service.Clock
	cache        ModelCache
}

type Option func(*Engine)

func WithFundamentals(src service.FundamentalsSource) Option {
	return func(e *Engine) { e.fundamentals = src }
}

func WithClock(c service.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithModelCache enables model reuse across calls; nil keeps per-call training.
func WithModelCache(c ModelCache) Option {
	return func(e *Engine) { e.cache = c }
}

func NewEngine(trainer service.Trainer, opts ...Option) *Engine {
	e := &Engine{
		trainer:      trainer,
		fundamentals: NewRandomFundamentals(),
		clock:        SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Train fits a fresh regressor on the enriched series.
func (e *Engine) Train(ctx context.Context, series []models.EnrichedPoint) (service.Regressor, error) {
	return e.trainer.Train(ctx, features.BuildTrainingSet(series))
}

// Predict runs the full pipeline. It trusts the caller for symbol and minimum length.
func (e *Engine) Predict(ctx context.Context, series []models.HistoricalPoint, symbol string) (res *models.PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrPredictionFailed, r)
		}
	}()

	enriched := features.Enrich(series, e.fundamentals)
	model, err := e.model(ctx, series, enriched)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}

	today := e.clock.Now()
	last := len(enriched) - 1
	row := features.EngineerFeaturesAt(enriched, last, today)
	out := model.Predict(row.Vector())
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty network output", ErrPredictionFailed)
	}

	current := enriched[last].Price
	predicted := features.Denormalize(out[0])
	confidence := Confidence(predicted, current)
	trend := TrendOf(predicted, current)

	history := make([]models.HistoricalPoint, len(series))
	copy(history, series)

	return &models.PredictionResult{
		Symbol:         symbol,
		CurrentPrice:   current,
		PredictedPrice: predicted,
		Confidence:     confidence,
		Trend:          trend,
		Recommendation: Recommend(trend, confidence),
		TechnicalIndicators: models.TechnicalIndicators{
			MA5Ratio:    row.MA5Ratio,
			MA10Ratio:   row.MA10Ratio,
			VolumeRatio: row.VolumeRatio,
			Volatility:  enriched[last].Volatility,
			Momentum:    enriched[last].Trend,
		},
		HistoricalData:      history,
		PredictionDate:      today.Format(predictionDateLayout),
		PastMonths:          PastMonths(series, current, int(today.Month())-1),
		UpcomingPredictions: Upcoming(current, predicted, confidence, today),
	}, nil
}

func (e *Engine) model(ctx context.Context, series []models.HistoricalPoint, enriched []models.EnrichedPoint) (service.Regressor, error) {
	train := func(ctx context.Context) (service.Regressor, error) { return e.Train(ctx, enriched) }
	if e.cache == nil {
		return train(ctx)
	}
	return e.cache.GetOrTrain(ctx, series, train)
}

// Confidence is 100 minus the relative error in percent, clamped to [60, 95].
func Confidence(predicted, current float64) float64 {
	c := 100 - math.Abs(predicted-current)/current*100
	return math.Min(models.MaxConfidence, math.Max(models.MinConfidence, c))
}

func TrendOf(predicted, current float64) models.Trend {
	switch {
	case predicted > current:
		return models.TrendUp
	case predicted < current:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func Recommend(trend models.Trend, confidence float64) models.Recommendation {
	switch {
	case trend == models.TrendUp && confidence > 80:
		return models.StrongBuy
	case trend == models.TrendUp && confidence > 70:
		return models.Buy
	case trend == models.TrendDown && confidence > 80:
		return models.StrongSell
	case trend == models.TrendDown && confidence > 70:
		return models.Sell
	default:
		return models.Hold
	}
}

// PastMonths rolls the series up into fixed 15-point windows from the start.
// Windows past the end are empty and average to NaN.
func PastMonths(series []models.HistoricalPoint, current float64, currentMonth int) []models.MonthSummary {
	out := make([]models.MonthSummary, models.PastMonthCount)
	for i := range out {
		from := min(i*monthWindow, len(series))
		to := min((i+1)*monthWindow, len(series))
		window := series[from:to]

		var price, volume float64
		for _, p := range window {
			price += p.Price
			volume += float64(p.Volume)
		}
		n := float64(len(window))
		avg := price / n
		out[i] = models.MonthSummary{
			Month:    monthNames[(currentMonth-(models.PastMonthCount-1-i)+12)%12],
			AvgPrice: avg,
			Change:   (avg - current) / current * 100,
			Volume:   volume / n,
		}
	}
	return out
}

// Upcoming interpolates linearly from current to predicted over seven days;
// confidence drops 2 points per day, floored at 50.
func Upcoming(current, predicted, confidence float64, today time.Time) []models.DailyForecast {
	out := make([]models.DailyForecast, models.UpcomingDayCount)
	step := (predicted - current) / models.UpcomingDayCount
	for i := range out {
		d := i + 1
		out[i] = models.DailyForecast{
			Date:       today.AddDate(0, 0, d).Format(upcomingDateLayout),
			Price:      current + step*float64(d),
			Confidence: math.Max(confidence-dailyConfidenceDec*float64(d), models.MinDailyConfidence),
		}
	}
	return out
}
