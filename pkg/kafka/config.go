package kafka

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/segmentio/kafka-go"
)

// ProducerConfig configures Producer. Zero fields take their `default` tag.
type ProducerConfig struct {
	Brokers      []string
	Compression  string        `default:"snappy"`
	RequiredAcks int           `default:"-1"`
	MaxAttempts  int           `default:"3"`
	WriteTimeout time.Duration `default:"10s"`
	BatchSize    int           `default:"100"`
	BatchBytes   int64         `default:"1048576"`
	BatchTimeout time.Duration `default:"50ms"`
	Async        bool
	// HashByKey keeps every message for one key (a symbol) on one partition.
	HashByKey        bool
	AutoCreateTopics bool

	// Writer replaces the broker connection, used in tests.
	Writer Writer `default:"-"`
}

func (c *ProducerConfig) normalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("producer defaults: %w", err)
	}
	if c.Writer == nil && len(c.Brokers) == 0 {
		return fmt.Errorf("kafka producer: brokers are required")
	}
	return nil
}

func (c *ProducerConfig) newWriter() *kafka.Writer {
	var bal kafka.Balancer = &kafka.LeastBytes{}
	if c.HashByKey {
		bal = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            compressionCodec(c.Compression),
		MaxAttempts:            c.MaxAttempts,
		WriteTimeout:           c.WriteTimeout,
		BatchSize:              c.BatchSize,
		BatchBytes:             c.BatchBytes,
		BatchTimeout:           c.BatchTimeout,
		Async:                  c.Async,
		AllowAutoTopicCreation: c.AutoCreateTopics,
	}
}

// ConsumerConfig configures Consumer. Zero fields take their `default` tag.
type ConsumerConfig struct {
	Brokers []string
	GroupID string `default:"stock-predictor"`
	// Workers handle messages concurrently; one partition always maps to
	// the same worker so per-partition order is kept.
	Workers    int           `default:"1"`
	BufferSize int           `default:"16"`
	RetryMax   int           `default:"3"`
	BackoffMin time.Duration `default:"50ms"`
	BackoffMax time.Duration `default:"2s"`
	// DLQTopic receives messages that exhausted their retries. When empty,
	// a failed message is not committed and will be redelivered.
	DLQTopic string
	MinBytes int `default:"1"`
	MaxBytes int `default:"10000000"`
}

func (c *ConsumerConfig) normalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("consumer defaults: %w", err)
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka consumer: brokers are required")
	}
	return nil
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}
