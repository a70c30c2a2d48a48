package features

import (
	"math"
	"time"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/domain/service"
)

// Lookback is the oldest offset a feature row reads; rows exist only for i >= Lookback.
const Lookback = 10

const (
	shortWindow = 5
	longWindow  = 10

	priceScale    = 1000.0
	peScale       = 100.0
	dividendScale = 10.0
)

// Enrich overlays fundamentals, calendar fields and per-step change on every point.
func Enrich(series []models.HistoricalPoint, src service.FundamentalsSource) []models.EnrichedPoint {
	out := make([]models.EnrichedPoint, len(series))
	for i, p := range series {
		ep := models.EnrichedPoint{
			HistoricalPoint: p,
			Fundamentals:    src.Fundamentals(p),
			DayOfWeek:       int(p.Date.Weekday()),
			Month:           int(p.Date.Month()) - 1,
		}
		if i > 0 {
			prev := series[i-1].Price
			ep.Trend = (p.Price - prev) / prev
			ep.Volatility = math.Abs(ep.Trend)
		}
		out[i] = ep
	}
	return out
}

// EngineerFeatures builds the row for index i from the stored calendar fields of point i.
// Callers guarantee Lookback <= i < len(series).
func EngineerFeatures(series []models.EnrichedPoint, i int) models.FeatureRow {
	return engineer(series, i, series[i].DayOfWeek, series[i].Month)
}

// EngineerFeaturesAt is EngineerFeatures with the calendar fields taken from at.
func EngineerFeaturesAt(series []models.EnrichedPoint, i int, at time.Time) models.FeatureRow {
	return engineer(series, i, int(at.Weekday()), int(at.Month())-1)
}

func engineer(series []models.EnrichedPoint, i, dow, month int) models.FeatureRow {
	cur := series[i]
	price := cur.Price
	prev := series[i-1].Price

	avgVolume := meanVolume(series, i-shortWindow, i)
	ma5 := meanPrice(series, i-shortWindow, i)
	ma10 := meanPrice(series, i-longWindow, i)

	return models.FeatureRow{
		NormalizedPrice:     price / priceScale,
		PriceChangePct:      (price - prev) / prev,
		VolumeRatio:         float64(cur.Volume) / avgVolume,
		NormalizedPE:        cur.PE / peScale,
		NormalizedDividend:  cur.Dividend / dividendScale,
		CumulativeTrend:     cur.Trend,
		Volatility:          cur.Volatility,
		MA5Ratio:            price / ma5,
		MA10Ratio:           price / ma10,
		DayOfWeekFraction:   float64(dow) / 7,
		MonthFraction:       float64(month) / 12,
		CyclicalDayEncoding: math.Sin(float64(dow) * math.Pi / 3.5),
	}
}

// BuildTrainingSet returns one pair per i in [Lookback, len-2], labeled with the next normalized price.
func BuildTrainingSet(series []models.EnrichedPoint) []models.TrainingPair {
	if len(series) < Lookback+2 {
		return nil
	}
	pairs := make([]models.TrainingPair, 0, len(series)-Lookback-1)
	for i := Lookback; i < len(series)-1; i++ {
		pairs = append(pairs, models.TrainingPair{
			Input: EngineerFeatures(series, i).Vector(),
			Label: series[i+1].Price / priceScale,
		})
	}
	return pairs
}

// Denormalize maps a network output back to a price.
func Denormalize(v float64) float64 { return v * priceScale }

func meanPrice(series []models.EnrichedPoint, from, to int) float64 {
	from = max(from, 0)
	sum := 0.0
	for j := from; j < to; j++ {
		sum += series[j].Price
	}
	return sum / float64(to-from)
}

func meanVolume(series []models.EnrichedPoint, from, to int) float64 {
	from = max(from, 0)
	sum := 0.0
	for j := from; j < to; j++ {
		sum += float64(series[j].Volume)
	}
	return sum / float64(to-from)
}
