package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/internal/domain/models"
)

type fixedSource models.Fundamentals

func (f fixedSource) Fundamentals(models.HistoricalPoint) models.Fundamentals {
	return models.Fundamentals(f)
}

// linear returns n daily points from 2024-01-01 priced 100, 101, ...
func linear(n int) []models.HistoricalPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.HistoricalPoint, n)
	for i := range out {
		out[i] = models.HistoricalPoint{
			Date:   start.AddDate(0, 0, i),
			Price:  100 + float64(i),
			Volume: 1000,
		}
	}
	return out
}

var fundamentals = fixedSource{MarketCap: 1e8, PE: 20, Dividend: 2}

func TestEnrich(t *testing.T) {
	enriched := Enrich(linear(3), fundamentals)
	require.Len(t, enriched, 3)

	assert.Zero(t, enriched[0].Trend)
	assert.Zero(t, enriched[0].Volatility)
	assert.InDelta(t, 1.0/100, enriched[1].Trend, 1e-12)
	assert.InDelta(t, 1.0/101, enriched[2].Volatility, 1e-12)
	assert.Equal(t, int(time.Monday), enriched[0].DayOfWeek)
	assert.Equal(t, 0, enriched[0].Month)
	assert.Equal(t, 20.0, enriched[2].PE)
}

func TestEngineerFeatures(t *testing.T) {
	enriched := Enrich(linear(12), fundamentals)
	row := EngineerFeatures(enriched, 10)

	assert.InDelta(t, 0.110, row.NormalizedPrice, 1e-12)
	assert.InDelta(t, 1.0/109, row.PriceChangePct, 1e-12)
	assert.InDelta(t, 1.0, row.VolumeRatio, 1e-12)
	assert.InDelta(t, 0.2, row.NormalizedPE, 1e-12)
	assert.InDelta(t, 0.2, row.NormalizedDividend, 1e-12)
	assert.Equal(t, row.PriceChangePct, row.CumulativeTrend)
	assert.Equal(t, math.Abs(row.PriceChangePct), row.Volatility)
	// window excludes index i
	assert.InDelta(t, 110.0/107, row.MA5Ratio, 1e-12)
	assert.InDelta(t, 110.0/104.5, row.MA10Ratio, 1e-12)
	// 2024-01-11 is a Thursday
	assert.InDelta(t, 4.0/7, row.DayOfWeekFraction, 1e-12)
	assert.Zero(t, row.MonthFraction)
	assert.InDelta(t, math.Sin(4*math.Pi/3.5), row.CyclicalDayEncoding, 1e-12)

	assert.Len(t, row.Vector(), models.FeatureCount)
}

func TestEngineerFeaturesIsPure(t *testing.T) {
	enriched := Enrich(linear(30), fundamentals)
	a := EngineerFeatures(enriched, 20).Vector()
	b := EngineerFeatures(enriched, 20).Vector()
	assert.Equal(t, a, b)
}

func TestEngineerFeaturesAtUsesGivenDate(t *testing.T) {
	enriched := Enrich(linear(12), fundamentals)
	at := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC) // Sunday
	row := EngineerFeaturesAt(enriched, 11, at)
	stored := EngineerFeatures(enriched, 11)

	assert.Zero(t, row.DayOfWeekFraction)
	assert.InDelta(t, 5.0/12, row.MonthFraction, 1e-12)
	assert.Zero(t, row.CyclicalDayEncoding)
	assert.Equal(t, stored.MA10Ratio, row.MA10Ratio)
	assert.Equal(t, stored.PriceChangePct, row.PriceChangePct)
}

func TestEngineerFeaturesZeroVolumePropagatesNaN(t *testing.T) {
	series := linear(12)
	for i := range series {
		series[i].Volume = 0
	}
	row := EngineerFeatures(Enrich(series, fundamentals), 10)
	assert.True(t, math.IsNaN(row.VolumeRatio))
}

func TestBuildTrainingSet(t *testing.T) {
	for _, n := range []int{12, 13, 50, 90} {
		pairs := BuildTrainingSet(Enrich(linear(n), fundamentals))
		assert.Len(t, pairs, n-11, "length %d", n)
	}

	pairs := BuildTrainingSet(Enrich(linear(12), fundamentals))
	require.Len(t, pairs, 1)
	assert.InDelta(t, 0.111, pairs[0].Label, 1e-12)
	assert.Len(t, pairs[0].Input, models.FeatureCount)
}

func TestBuildTrainingSetTooShort(t *testing.T) {
	assert.Empty(t, BuildTrainingSet(Enrich(linear(11), fundamentals)))
	assert.Empty(t, BuildTrainingSet(nil))
}

func TestDenormalize(t *testing.T) {
	assert.InDelta(t, 250.0, Denormalize(0.25), 1e-9)
}
