package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"StockPredictor/pkg/util"
)

// jsonFloat encodes NaN and ±Inf as null; encoding/json rejects them otherwise.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type historicalPointJSON struct {
	Date   string     `json:"date"`
	Price  jsonFloat  `json:"price"`
	Volume int64      `json:"volume"`
	Open   *jsonFloat `json:"open,omitempty"`
	High   *jsonFloat `json:"high,omitempty"`
	Low    *jsonFloat `json:"low,omitempty"`
	Close  *jsonFloat `json:"close,omitempty"`
}

func toJSONPtr(p *float64) *jsonFloat {
	if p == nil {
		return nil
	}
	v := jsonFloat(*p)
	return &v
}

func fromJSONPtr(p *jsonFloat) *float64 {
	if p == nil {
		return nil
	}
	v := float64(*p)
	return &v
}

func (p HistoricalPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(historicalPointJSON{
		Date:   p.Date.Format(util.DateLayout),
		Price:  jsonFloat(p.Price),
		Volume: p.Volume,
		Open:   toJSONPtr(p.Open),
		High:   toJSONPtr(p.High),
		Low:    toJSONPtr(p.Low),
		Close:  toJSONPtr(p.Close),
	})
}

func (p *HistoricalPoint) UnmarshalJSON(b []byte) error {
	var w historicalPointJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	date, err := parsePointDate(w.Date)
	if err != nil {
		return err
	}
	*p = HistoricalPoint{
		Date:   date,
		Price:  float64(w.Price),
		Volume: w.Volume,
		Open:   fromJSONPtr(w.Open),
		High:   fromJSONPtr(w.High),
		Low:    fromJSONPtr(w.Low),
		Close:  fromJSONPtr(w.Close),
	}
	return nil
}

func parsePointDate(s string) (time.Time, error) {
	t, ok := util.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

type technicalIndicatorsJSON struct {
	MA5Ratio    jsonFloat `json:"ma5Ratio"`
	MA10Ratio   jsonFloat `json:"ma10Ratio"`
	VolumeRatio jsonFloat `json:"volumeRatio"`
	Volatility  jsonFloat `json:"volatility"`
	Momentum    jsonFloat `json:"momentum"`
}

type monthSummaryJSON struct {
	Month    string    `json:"month"`
	AvgPrice jsonFloat `json:"avgPrice"`
	Change   jsonFloat `json:"change"`
	Volume   jsonFloat `json:"volume"`
}

type dailyForecastJSON struct {
	Date       string    `json:"date"`
	Price      jsonFloat `json:"price"`
	Confidence jsonFloat `json:"confidence"`
}

type predictionResultJSON struct {
	Symbol              string                  `json:"symbol"`
	CurrentPrice        jsonFloat               `json:"currentPrice"`
	PredictedPrice      jsonFloat               `json:"predictedPrice"`
	Confidence          jsonFloat               `json:"confidence"`
	Trend               Trend                   `json:"trend"`
	Recommendation      Recommendation          `json:"recommendation"`
	TechnicalIndicators technicalIndicatorsJSON `json:"technicalIndicators"`
	HistoricalData      []HistoricalPoint       `json:"historicalData"`
	PredictionDate      string                  `json:"predictionDate"`
	PastMonths          []monthSummaryJSON      `json:"pastMonths"`
	UpcomingPredictions []dailyForecastJSON     `json:"upcomingPredictions"`
}

func (r PredictionResult) MarshalJSON() ([]byte, error) {
	w := predictionResultJSON{
		Symbol:         r.Symbol,
		CurrentPrice:   jsonFloat(r.CurrentPrice),
		PredictedPrice: jsonFloat(r.PredictedPrice),
		Confidence:     jsonFloat(r.Confidence),
		Trend:          r.Trend,
		Recommendation: r.Recommendation,
		TechnicalIndicators: technicalIndicatorsJSON{
			MA5Ratio:    jsonFloat(r.TechnicalIndicators.MA5Ratio),
			MA10Ratio:   jsonFloat(r.TechnicalIndicators.MA10Ratio),
			VolumeRatio: jsonFloat(r.TechnicalIndicators.VolumeRatio),
			Volatility:  jsonFloat(r.TechnicalIndicators.Volatility),
			Momentum:    jsonFloat(r.TechnicalIndicators.Momentum),
		},
		HistoricalData:      r.HistoricalData,
		PredictionDate:      r.PredictionDate,
		PastMonths:          make([]monthSummaryJSON, len(r.PastMonths)),
		UpcomingPredictions: make([]dailyForecastJSON, len(r.UpcomingPredictions)),
	}
	for i, m := range r.PastMonths {
		w.PastMonths[i] = monthSummaryJSON{
			Month:    m.Month,
			AvgPrice: jsonFloat(m.AvgPrice),
			Change:   jsonFloat(m.Change),
			Volume:   jsonFloat(m.Volume),
		}
	}
	for i, d := range r.UpcomingPredictions {
		w.UpcomingPredictions[i] = dailyForecastJSON{
			Date:       d.Date,
			Price:      jsonFloat(d.Price),
			Confidence: jsonFloat(d.Confidence),
		}
	}
	return json.Marshal(w)
}

func (r *PredictionResult) UnmarshalJSON(b []byte) error {
	var w predictionResultJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := PredictionResult{
		Symbol:         w.Symbol,
		CurrentPrice:   float64(w.CurrentPrice),
		PredictedPrice: float64(w.PredictedPrice),
		Confidence:     float64(w.Confidence),
		Trend:          w.Trend,
		Recommendation: w.Recommendation,
		TechnicalIndicators: TechnicalIndicators{
			MA5Ratio:    float64(w.TechnicalIndicators.MA5Ratio),
			MA10Ratio:   float64(w.TechnicalIndicators.MA10Ratio),
			VolumeRatio: float64(w.TechnicalIndicators.VolumeRatio),
			Volatility:  float64(w.TechnicalIndicators.Volatility),
			Momentum:    float64(w.TechnicalIndicators.Momentum),
		},
		HistoricalData:      w.HistoricalData,
		PredictionDate:      w.PredictionDate,
		PastMonths:          make([]MonthSummary, len(w.PastMonths)),
		UpcomingPredictions: make([]DailyForecast, len(w.UpcomingPredictions)),
	}
	for i, m := range w.PastMonths {
		out.PastMonths[i] = MonthSummary{
			Month:    m.Month,
			AvgPrice: float64(m.AvgPrice),
			Change:   float64(m.Change),
			Volume:   float64(m.Volume),
		}
	}
	for i, d := range w.UpcomingPredictions {
		out.UpcomingPredictions[i] = DailyForecast{
			Date:       d.Date,
			Price:      float64(d.Price),
			Confidence: float64(d.Confidence),
		}
	}
	*r = out
	return nil
}
