package repository

import (
	"context"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	pkgkafka "StockPredictor/pkg/kafka"
)

// KafkaResultPublisher implements ResultPublisher for Kafka.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaResultPublisher creates a publisher keyed by symbol.
func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) domrepo.ResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, ev *models.PredictionEvent) error {
	if ev == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
