package models

// Trend is the direction of the forecast relative to the current price.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Recommendation is the buy/sell call derived from trend and confidence.
type Recommendation string

const (
	StrongBuy  Recommendation = "Strong Buy"
	Buy        Recommendation = "Buy"
	Hold       Recommendation = "Hold"
	Sell       Recommendation = "Sell"
	StrongSell Recommendation = "Strong Sell"
)

const (
	PastMonthCount     = 6
	UpcomingDayCount   = 7
	MinConfidence      = 60.0
	MaxConfidence      = 95.0
	MinDailyConfidence = 50.0
)

type TechnicalIndicators struct {
	MA5Ratio    float64
	MA10Ratio   float64
	VolumeRatio float64
	Volatility  float64
	Momentum    float64
}

// MonthSummary is one 15-point rollup of the input series.
type MonthSummary struct {
	Month    string
	AvgPrice float64
	Change   float64 // percent vs current price
	Volume   float64
}

// DailyForecast is one rung of the 7-day ladder.
type DailyForecast struct {
	Date       string // "Jan 2"
	Price      float64
	Confidence float64
}

// PredictionResult is created fresh per prediction and never mutated after return.
type PredictionResult struct {
	Symbol              string
	CurrentPrice        float64
	PredictedPrice      float64
	Confidence          float64
	Trend               Trend
	Recommendation      Recommendation
	TechnicalIndicators TechnicalIndicators
	HistoricalData      []HistoricalPoint
	PredictionDate      string // "January 2, 2006"
	PastMonths          []MonthSummary
	UpcomingPredictions []DailyForecast
}
