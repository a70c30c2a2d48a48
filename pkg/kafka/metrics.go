package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockpredictor",
		Subsystem: "kafka_producer",
		Name:      "messages_total",
		Help:      "Messages written to Kafka by topic and result.",
	}, []string{"topic", "result"})
	producedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockpredictor",
		Subsystem: "kafka_producer",
		Name:      "bytes_total",
		Help:      "Encoded payload bytes written to Kafka.",
	}, []string{"topic"})
	produceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stockpredictor",
		Subsystem: "kafka_producer",
		Name:      "write_seconds",
		Help:      "Time spent in WriteMessages.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})

	consumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockpredictor",
		Subsystem: "kafka_consumer",
		Name:      "messages_total",
		Help:      "Messages handled by topic and outcome (ok, retried, dead, dropped).",
	}, []string{"topic", "outcome"})
	consumeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stockpredictor",
		Subsystem: "kafka_consumer",
		Name:      "handle_seconds",
		Help:      "Handling time per message including retries.",
		Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"topic"})
)
