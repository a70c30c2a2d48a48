package models

import "time"

// HistoricalPoint is one trading day of the input series, chronological ascending.
type HistoricalPoint struct {
	Date   time.Time
	Price  float64
	Volume int64
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
}

// Fundamentals are the synthetic per-point placeholders (no real fundamentals feed exists).
type Fundamentals struct {
	MarketCap float64
	PE        float64
	Dividend  float64
}

// EnrichedPoint is a HistoricalPoint overlaid with fundamentals and per-step change.
type EnrichedPoint struct {
	HistoricalPoint
	Fundamentals
	DayOfWeek  int // 0 = Sunday
	Month      int // 0 = January
	Trend      float64
	Volatility float64
}

// FeatureRow is the 12-dimensional network input derived for one index.
type FeatureRow struct {
	NormalizedPrice     float64
	PriceChangePct      float64
	VolumeRatio         float64
	NormalizedPE        float64
	NormalizedDividend  float64
	CumulativeTrend     float64
	Volatility          float64
	MA5Ratio            float64
	MA10Ratio           float64
	DayOfWeekFraction   float64
	MonthFraction       float64
	CyclicalDayEncoding float64
}

// FeatureCount is the length of FeatureRow.Vector.
const FeatureCount = 12

// Vector returns the row in network input order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.NormalizedPrice,
		r.PriceChangePct,
		r.VolumeRatio,
		r.NormalizedPE,
		r.NormalizedDividend,
		r.CumulativeTrend,
		r.Volatility,
		r.MA5Ratio,
		r.MA10Ratio,
		r.DayOfWeekFraction,
		r.MonthFraction,
		r.CyclicalDayEncoding,
	}
}

// TrainingPair is one labeled example: features at i, normalized price at i+1.
type TrainingPair struct {
	Input []float64
	Label float64
}

// Float64 returns a pointer to v, for the optional OHLC fields.
func Float64(v float64) *float64 { return &v }
