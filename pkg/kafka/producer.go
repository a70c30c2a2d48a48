package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer used by Producer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is one record to publish. Value is JSON encoded unless it is
// already []byte or string.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer writes JSON records and propagates the trace id found on ctx.
type Producer struct {
	w Writer
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if cfg.Writer != nil {
		return &Producer{w: cfg.Writer}, nil
	}
	return &Producer{w: cfg.newWriter()}, nil
}

// Publish sends one keyed record to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, Message{Key: key, Value: value})
}

// PublishMessage sends an unkeyed record. It satisfies logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.PublishBatch(ctx, topic, Message{Value: payload})
}

// PublishBatch writes all messages to topic in one call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now()
	traceID := TraceIDFromContext(ctx)

	out := make([]kafka.Message, len(messages))
	var size int
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("encode %s message: %w", topic, err)
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now, Headers: headers(m.Headers, traceID)}
		size += len(v)
	}

	err := p.w.WriteMessages(ctx, out...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	producedMessages.WithLabelValues(topic, result).Add(float64(len(out)))
	producedBytes.WithLabelValues(topic).Add(float64(size))
	produceLatency.WithLabelValues(topic).Observe(time.Since(now).Seconds())
	if err != nil {
		return fmt.Errorf("write %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func headers(h map[string]string, traceID string) []kafka.Header {
	if len(h) == 0 && traceID == "" {
		return nil
	}
	out := make([]kafka.Header, 0, len(h)+1)
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	if _, set := h[TraceHeader]; traceID != "" && !set {
		out = append(out, kafka.Header{Key: TraceHeader, Value: []byte(traceID)})
	}
	return out
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}
