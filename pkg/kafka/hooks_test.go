package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/pkg/logger"
)

func TestHooksOrderAndPanic(t *testing.T) {
	var order []string
	mk := func(name string) Hook {
		return HookFunc{
			OnBefore: func(*Delivery) error { order = append(order, "before:"+name); return nil },
			OnAfter:  func(*Delivery, error) { order = append(order, "after:"+name) },
		}
	}
	hs := Chain(mk("a"), nil, mk("b"))
	require.Len(t, hs, 2)
	err := hs.run(&Delivery{Ctx: context.Background()}, func(*Delivery) error {
		order = append(order, "handle")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"before:a", "before:b", "handle", "after:b", "after:a"}, order)

	order = nil
	panicky := HookFunc{OnBefore: func(*Delivery) error { panic("boom") }}
	called := false
	err = Chain(mk("a"), panicky, mk("c")).run(&Delivery{Ctx: context.Background()}, func(*Delivery) error {
		called = true
		return nil
	})
	var hp *ErrHookPanic
	require.True(t, errors.As(err, &hp))
	assert.Equal(t, 1, hp.Hook)
	assert.False(t, called)
	assert.Equal(t, []string{"before:a", "after:a"}, order)
}

func TestTraceHookExtractsTraceID(t *testing.T) {
	h := TraceHook(logger.NewNop())
	d := &Delivery{
		Ctx: context.Background(),
		Msg: kafka.Message{Headers: []kafka.Header{{Key: TraceHeader, Value: []byte("abc")}}},
	}
	require.NoError(t, h.Before(d))
	assert.Equal(t, "abc", TraceIDFromContext(d.Ctx))
	h.After(d, errors.New("x"))
	assert.Empty(t, TraceIDFromContext(WithTraceID(context.Background(), "")))
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestProducerEncodesValues(t *testing.T) {
	w := &captureWriter{}
	p, err := NewProducer(ProducerConfig{Writer: w})
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "trace-9")
	require.NoError(t, p.Publish(ctx, "results", []byte("AAPL"), map[string]int{"n": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "results", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "trace-9", ExtractTraceID(w.msgs[0]))
	assert.Equal(t, "plain", string(w.msgs[1].Value))
	assert.Empty(t, w.msgs[1].Headers)

	w.err = errors.New("broker down")
	assert.ErrorContains(t, p.PublishMessage(context.Background(), "logs", "x"), "broker down")

	_, err = NewProducer(ProducerConfig{})
	assert.Error(t, err)
}
