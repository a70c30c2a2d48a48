package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) Close() error { return nil }

type flakyHandler struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int // value -> failures before success
}

func (h *flakyHandler) Topic() string { return "requests" }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := string(data)
	h.calls[k]++
	if h.calls[k] <= h.fail[k] {
		return errors.New("not yet")
	}
	return nil
}

func TestConsumer_RetriesAndDeadLetters(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Partition: 0, Offset: 1, Value: []byte("ok")},
		kafka.Message{Partition: 1, Offset: 7, Value: []byte("flaky")},
		kafka.Message{Partition: 0, Offset: 2, Value: []byte("poison"),
			Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("t-1")}}},
	)
	dlq := &captureWriter{}
	h := &flakyHandler{calls: map[string]int{}, fail: map[string]int{"flaky": 1, "poison": 99}}

	c, err := NewConsumer(ConsumerConfig{
		Brokers:    []string{"unused:9092"},
		Workers:    2,
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
		DLQTopic:   "requests.dlq",
	}, nil, WithReaderFactory(func(string) Reader { return reader }), WithDLQWriter(dlq))
	require.NoError(t, err)
	c.RegisterHandler(h)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2, 7}, reader.commits())
	h.mu.Lock()
	assert.Equal(t, 2, h.calls["flaky"])
	assert.Equal(t, 3, h.calls["poison"])
	h.mu.Unlock()

	require.Len(t, dlq.msgs, 1)
	dead := dlq.msgs[0]
	assert.Equal(t, "requests.dlq", dead.Topic)
	assert.Equal(t, "poison", string(dead.Value))
	assert.Equal(t, "t-1", ExtractTraceID(dead))
}

func TestConsumer_RequiresHandlersAndBrokers(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{}, nil)
	assert.Error(t, err)

	c, err := NewConsumer(ConsumerConfig{Brokers: []string{"b:9092"}}, nil, WithReaderFactory(func(string) Reader { return newFakeReader() }))
	require.NoError(t, err)
	assert.Error(t, c.Start())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoff(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
