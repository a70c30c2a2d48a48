package predictor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/domain/service"
	"StockPredictor/internal/services/network"
)

type constRegressor []float64

func (c constRegressor) Predict([]float64) []float64 { return c }

type stubTrainer struct {
	out   constRegressor
	err   error
	panic bool
	pairs int
	calls int
}

func (s *stubTrainer) Train(ctx context.Context, pairs []models.TrainingPair) (service.Regressor, error) {
	s.calls++
	s.pairs = len(pairs)
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.out, nil
}

type countingCache struct{ calls int }

func (c *countingCache) GetOrTrain(ctx context.Context, _ []models.HistoricalPoint, train func(context.Context) (service.Regressor, error)) (service.Regressor, error) {
	c.calls++
	return train(ctx)
}

var today = time.Date(2024, 6, 14, 9, 30, 0, 0, time.UTC) // Friday

// ascending returns n daily points priced 150, 151, ...
func ascending(n int) []models.HistoricalPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.HistoricalPoint, n)
	for i := range out {
		out[i] = models.HistoricalPoint{
			Date:   start.AddDate(0, 0, i),
			Price:  150 + float64(i),
			Volume: 1_000_000 + int64(i)*1000,
		}
	}
	return out
}

func newTestEngine(tr service.Trainer, opts ...Option) *Engine {
	base := []Option{
		WithFundamentals(FixedFundamentals{MarketCap: 1e9, PE: 25, Dividend: 1.5}),
		WithClock(FixedClock(today)),
	}
	return NewEngine(tr, append(base, opts...)...)
}

func TestPredictSynthesis(t *testing.T) {
	tr := &stubTrainer{out: constRegressor{0.25}}
	series := ascending(90)

	res, err := newTestEngine(tr).Predict(context.Background(), series, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 79, tr.pairs)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 239.0, res.CurrentPrice)
	assert.InDelta(t, 250.0, res.PredictedPrice, 1e-9)
	assert.Equal(t, models.MaxConfidence, res.Confidence)
	assert.Equal(t, models.TrendUp, res.Trend)
	assert.Equal(t, models.StrongBuy, res.Recommendation)
	assert.Equal(t, "June 14, 2024", res.PredictionDate)
	assert.InDelta(t, 1.0/238, res.TechnicalIndicators.Momentum, 1e-12)
	assert.InDelta(t, 1.0/238, res.TechnicalIndicators.Volatility, 1e-12)
	assert.Len(t, res.HistoricalData, 90)

	require.Len(t, res.PastMonths, models.PastMonthCount)
	assert.Equal(t, "Jan", res.PastMonths[0].Month)
	assert.Equal(t, "Jun", res.PastMonths[5].Month)
	assert.InDelta(t, 232.0, res.PastMonths[5].AvgPrice, 1e-9)
	assert.InDelta(t, (232.0-239.0)/239.0*100, res.PastMonths[5].Change, 1e-9)

	require.Len(t, res.UpcomingPredictions, models.UpcomingDayCount)
	first := res.UpcomingPredictions[0]
	assert.Equal(t, "Jun 15", first.Date)
	assert.InDelta(t, 239+11.0/7, first.Price, 1e-9)
	assert.Equal(t, res.Confidence-2, first.Confidence)
	assert.InDelta(t, 250.0, res.UpcomingPredictions[6].Price, 1e-9)
}

func TestPredictDoesNotAliasInput(t *testing.T) {
	series := ascending(60)
	res, err := newTestEngine(&stubTrainer{out: constRegressor{0.2}}).Predict(context.Background(), series, "X")
	require.NoError(t, err)
	res.HistoricalData[0].Price = -1
	assert.Equal(t, 150.0, series[0].Price)
}

func TestPredictTrainerError(t *testing.T) {
	cause := errors.New("diverged")
	_, err := newTestEngine(&stubTrainer{err: cause}).Predict(context.Background(), ascending(60), "X")
	assert.ErrorIs(t, err, ErrPredictionFailed)
	assert.ErrorIs(t, err, cause)
}

func TestPredictRecoversPanic(t *testing.T) {
	res, err := newTestEngine(&stubTrainer{panic: true}).Predict(context.Background(), ascending(60), "X")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPredictionFailed)
}

func TestPredictEmptyOutput(t *testing.T) {
	_, err := newTestEngine(&stubTrainer{out: constRegressor{}}).Predict(context.Background(), ascending(60), "X")
	assert.ErrorIs(t, err, ErrPredictionFailed)
}

func TestPredictCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(&stubTrainer{out: constRegressor{0.2}}).Predict(ctx, ascending(60), "X")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPredictionFailed)
}

func TestPredictElevenPointsFails(t *testing.T) {
	_, err := newTestEngine(network.NewTrainer()).Predict(context.Background(), ascending(11), "X")
	assert.ErrorIs(t, err, ErrPredictionFailed)
	assert.ErrorIs(t, err, network.ErrNoTrainingData)
}

func TestPredictUsesModelCache(t *testing.T) {
	cache := &countingCache{}
	tr := &stubTrainer{out: constRegressor{0.2}}
	_, err := newTestEngine(tr, WithModelCache(cache)).Predict(context.Background(), ascending(60), "X")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.calls)
	assert.Equal(t, 1, tr.calls)
}

func TestPredictWithRealNetwork(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a full network")
	}
	series := ascending(90)
	res, err := NewEngine(network.NewTrainer(), WithClock(FixedClock(today))).Predict(context.Background(), series, "AAPL")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Confidence, models.MinConfidence)
	assert.LessOrEqual(t, res.Confidence, models.MaxConfidence)
	assert.False(t, math.IsNaN(res.PredictedPrice))
	assert.InDelta(t, res.CurrentPrice, res.PredictedPrice, res.CurrentPrice*0.5)
	assert.Equal(t, math.Max(res.Confidence-2, models.MinDailyConfidence), res.UpcomingPredictions[0].Confidence)
	assert.Len(t, res.PastMonths, models.PastMonthCount)
	assert.Len(t, res.UpcomingPredictions, models.UpcomingDayCount)
}

// An ascending series does not pin the direction of a real network's
// forecast, only how the result is derived from it.
func TestPredictAscendingSeriesIsConsistent(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a full network")
	}
	res, err := newTestEngine(network.NewTrainer()).Predict(context.Background(), ascending(90), "AAPL")
	require.NoError(t, err)

	require.False(t, math.IsNaN(res.PredictedPrice) || math.IsInf(res.PredictedPrice, 0))
	assert.Equal(t, 239.0, res.CurrentPrice)
	assert.Equal(t, TrendOf(res.PredictedPrice, res.CurrentPrice), res.Trend)
	assert.Equal(t, Recommend(res.Trend, res.Confidence), res.Recommendation)
	assert.Equal(t, Confidence(res.PredictedPrice, res.CurrentPrice), res.Confidence)
	assert.Len(t, res.PastMonths, models.PastMonthCount)
	require.Len(t, res.UpcomingPredictions, models.UpcomingDayCount)

	prev := res.CurrentPrice
	for _, d := range res.UpcomingPredictions {
		if res.PredictedPrice >= res.CurrentPrice {
			assert.GreaterOrEqual(t, d.Price, prev)
		} else {
			assert.LessOrEqual(t, d.Price, prev)
		}
		prev = d.Price
	}
	assert.InDelta(t, res.PredictedPrice, prev, 1e-6)
}

func TestConfidenceBounds(t *testing.T) {
	for _, predicted := range []float64{-1000, 0, 50, 99, 100, 101, 150, 1e6} {
		c := Confidence(predicted, 100)
		assert.GreaterOrEqual(t, c, models.MinConfidence)
		assert.LessOrEqual(t, c, models.MaxConfidence)
	}
	assert.InDelta(t, 90.0, Confidence(110, 100), 1e-9)
	assert.Equal(t, models.MaxConfidence, Confidence(100, 100))
	assert.Equal(t, models.MinConfidence, Confidence(150, 100))
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, models.TrendUp, TrendOf(101, 100))
	assert.Equal(t, models.TrendDown, TrendOf(99, 100))
	assert.Equal(t, models.TrendStable, TrendOf(100, 100))
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		trend      models.Trend
		confidence float64
		want       models.Recommendation
	}{
		{models.TrendUp, 95, models.StrongBuy},
		{models.TrendUp, 80.5, models.StrongBuy},
		{models.TrendUp, 80, models.Buy},
		{models.TrendUp, 70.5, models.Buy},
		{models.TrendUp, 70, models.Hold},
		{models.TrendUp, 60, models.Hold},
		{models.TrendDown, 95, models.StrongSell},
		{models.TrendDown, 80, models.Sell},
		{models.TrendDown, 71, models.Sell},
		{models.TrendDown, 70, models.Hold},
		{models.TrendStable, 95, models.Hold},
		{models.TrendStable, 75, models.Hold},
		{models.TrendStable, 60, models.Hold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.trend, tt.confidence), "%s/%v", tt.trend, tt.confidence)
	}
}

func TestPastMonthsShortSeries(t *testing.T) {
	months := PastMonths(ascending(20), 169, 0)
	require.Len(t, months, models.PastMonthCount)
	assert.Equal(t, "Aug", months[0].Month)
	assert.Equal(t, "Jan", months[5].Month)
	assert.InDelta(t, 157.0, months[0].AvgPrice, 1e-9)
	assert.InDelta(t, 167.0, months[1].AvgPrice, 1e-9)
	for _, m := range months[2:] {
		assert.True(t, math.IsNaN(m.AvgPrice))
	}
}

func TestUpcomingFloor(t *testing.T) {
	days := Upcoming(100, 93, 60, today)
	require.Len(t, days, models.UpcomingDayCount)
	assert.Equal(t, 58.0, days[0].Confidence)
	assert.Equal(t, models.MinDailyConfidence, days[6].Confidence)
	assert.Equal(t, "Jun 21", days[6].Date)
	assert.InDelta(t, 93.0, days[6].Price, 1e-9)
}

func TestSeededFundamentals(t *testing.T) {
	p := models.HistoricalPoint{Price: 100}
	a := NewSeededFundamentals(42)
	b := NewSeededFundamentals(42)
	for range 20 {
		fa, fb := a.Fundamentals(p), b.Fundamentals(p)
		assert.Equal(t, fa, fb)
		assert.GreaterOrEqual(t, fa.PE, 10.0)
		assert.Less(t, fa.PE, 60.0)
		assert.GreaterOrEqual(t, fa.Dividend, 0.0)
		assert.Less(t, fa.Dividend, 5.0)
		assert.GreaterOrEqual(t, fa.MarketCap, 100*5e5)
	}
}
