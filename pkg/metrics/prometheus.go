package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"StockPredictor/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	confidence  *prometheus.GaugeVec
	training    prometheus.Histogram
	pairs       prometheus.Histogram
	jobs        *prometheus.CounterVec
}

// New creates a recorder on the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; nil leaves metrics unregistered.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpredictor_predictions_total",
				Help: "Predictions by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpredictor_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpredictor_last_confidence",
				Help: "Confidence of the last prediction for a symbol",
			},
			[]string{"symbol"},
		),
		training: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockpredictor_training_duration_seconds",
				Help:    "Duration of network training in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		pairs: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockpredictor_training_pairs",
				Help:    "Training pairs per trained network",
				Buckets: prometheus.ExponentialBuckets(16, 2, 10),
			},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpredictor_jobs_total",
				Help: "Job status transitions",
			},
			[]string{"status"},
		),
	}
}

// RecordPrediction counts a prediction outcome ("ok", "error", ...).
func (r *Recorder) RecordPrediction(symbol, outcome string) {
	r.predictions.WithLabelValues(symbol, outcome).Inc()
}

// RecordTraining observes one training run.
func (r *Recorder) RecordTraining(d time.Duration, pairs int) {
	r.training.Observe(d.Seconds())
	r.pairs.Observe(float64(pairs))
}

// RecordConfidence records the last confidence for a symbol.
func (r *Recorder) RecordConfidence(symbol string, confidence float64) {
	r.confidence.WithLabelValues(symbol).Set(confidence)
}

func (r *Recorder) RecordJob(status models.JobStatus) {
	r.jobs.WithLabelValues(string(status)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPrediction(string, string)   {}
func (Nop) RecordTraining(time.Duration, int) {}
func (Nop) RecordConfidence(string, float64)  {}
func (Nop) RecordJob(models.JobStatus)        {}
func (Nop) RecordError(string)                {}
