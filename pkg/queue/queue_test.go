package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/pkg/logger"
)

type predictPayload struct {
	JobID  string `json:"jobId"`
	Symbol string `json:"symbol"`
}

func TestParsePayload(t *testing.T) {
	raw, err := json.Marshal(predictPayload{JobID: "j1", Symbol: "AAPL"})
	require.NoError(t, err)

	got, err := ParsePayload[predictPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)

	_, err = ParsePayload[predictPayload](nil)
	assert.Error(t, err)
	_, err = ParsePayload[predictPayload](json.RawMessage(`{"symbol":`))
	assert.Error(t, err)
}

func TestEnqueueRequiresStart(t *testing.T) {
	q := NewRedisQueue(logger.NewNop(), nil, nil, ModeProducerOnly)
	err := q.Enqueue(context.Background(), "predict", predictPayload{})
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, "stockpredictor:queue:pending", q.pendingKey())
	assert.Equal(t, "producer-only", ModeProducerOnly.String())

	q = NewRedisQueue(nil, &Config{}, nil, ModeProducerConsumer, WithKeyPrefix("p"))
	assert.Equal(t, "p:retry", q.retryKey())
	assert.Contains(t, q.processingKey(), "p:processing:")
	assert.Equal(t, 1, q.cfg.Workers)
}

func TestBackoffDoubles(t *testing.T) {
	c := Config{RetryDelay: time.Second}
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 8*time.Second, c.backoff(4))
}
