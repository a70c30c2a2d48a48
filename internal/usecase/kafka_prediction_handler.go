package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	"StockPredictor/internal/services/dataload"
	pkgkafka "StockPredictor/pkg/kafka"
)

// KafkaPredictionHandler runs prediction commands consumed from a topic.
// Results go out through the use case publisher.
type KafkaPredictionHandler struct {
	topic   string
	uc      *PredictionUseCase
	metrics domrepo.Metrics
}

func NewKafkaPredictionHandler(topic string, uc *PredictionUseCase, metrics domrepo.Metrics) *KafkaPredictionHandler {
	return &KafkaPredictionHandler{topic: topic, uc: uc, metrics: metrics}
}

func (h *KafkaPredictionHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, source, limit, points}
func (h *KafkaPredictionHandler) Handle(ctx context.Context, b []byte) error {
	var cmd models.PredictionCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		// a malformed command fails the same way on every redelivery
		h.metrics.RecordError("consumer_unmarshal")
		return nil
	}
	if cmd.Source == "" && len(cmd.Points) > 0 {
		cmd.Source = models.SourceInline
	}
	_, err := h.uc.Predict(ctx, PredictParams{
		Symbol: cmd.Symbol,
		Source: cmd.Source,
		Limit:  cmd.Limit,
		Points: cmd.Points,
	})
	if isInputError(err) {
		// bad commands are not retryable
		h.metrics.RecordError("consumer_invalid")
		return nil
	}
	return err
}

func isInputError(err error) bool {
	return errors.Is(err, ErrSymbolRequired) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, dataload.ErrTooFewPoints) ||
		errors.Is(err, dataload.ErrParse) ||
		errors.Is(err, dataload.ErrUnknownSource) ||
		errors.Is(err, dataload.ErrNotConfigured)
}

var _ pkgkafka.MessageHandler = (*KafkaPredictionHandler)(nil)
