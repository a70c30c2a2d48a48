package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"StockPredictor/pkg/logger"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of *kafka.Reader used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOption overrides how Consumer reaches the brokers.
type ConsumerOption func(*Consumer)

// WithReaderFactory builds topic readers with fn instead of dialing brokers.
func WithReaderFactory(fn func(topic string) Reader) ConsumerOption {
	return func(c *Consumer) { c.newReader = fn }
}

// WithDLQWriter sends dead letters through w.
func WithDLQWriter(w Writer) ConsumerOption {
	return func(c *Consumer) { c.dlq = w }
}

// Consumer reads each registered topic in a consumer group. Messages are
// spread over Workers lanes by partition, retried with jittered backoff and
// committed once they succeed or have been dead-lettered.
type Consumer struct {
	cfg       ConsumerConfig
	log       *logger.Logger
	hooks     Hooks
	handlers  map[string]MessageHandler
	newReader func(topic string) Reader
	dlq       Writer

	readers  []Reader
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(cfg ConsumerConfig, log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
	}
	c.newReader = func(topic string) Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dlq == nil && cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// Use appends hooks around every handler call. Call before Start.
func (c *Consumer) Use(hs ...Hook) {
	c.hooks = append(c.hooks, Chain(hs...)...)
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for topic, h := range c.handlers {
		r := c.newReader(topic)
		c.readers = append(c.readers, r)

		lanes := make([]chan kafka.Message, c.cfg.Workers)
		for i := range lanes {
			lanes[i] = make(chan kafka.Message, max(1, c.cfg.BufferSize/c.cfg.Workers))
			c.wg.Add(1)
			go c.work(topic, h, r, lanes[i])
		}
		c.wg.Add(1)
		go c.fetch(topic, r, lanes)
	}
	c.log.Info("kafka consumer started",
		logger.Int("topics", len(c.handlers)),
		logger.Int("workers", c.cfg.Workers),
		logger.String("group", c.cfg.GroupID))
	return nil
}

// Stop abandons pending retries, waits for in-flight handlers and closes
// the readers. Uncommitted messages are redelivered to the group.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		case <-done:
		}

		var errs []error
		for _, r := range c.readers {
			errs = append(errs, r.Close())
		}
		if c.dlq != nil {
			errs = append(errs, c.dlq.Close())
		}
		if cerr := errors.Join(errs...); cerr != nil && err == nil {
			err = cerr
		}
		c.log.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) fetch(topic string, r Reader, lanes []chan kafka.Message) {
	defer c.wg.Done()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			if !c.sleep(c.cfg.BackoffMax) {
				return
			}
			continue
		}
		select {
		case lanes[km.Partition%len(lanes)] <- km:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(topic string, h MessageHandler, r Reader, lane <-chan kafka.Message) {
	defer c.wg.Done()
	for km := range lane {
		if c.ctx.Err() != nil {
			return
		}
		start := time.Now()
		outcome := c.process(topic, h, r, km)
		consumedMessages.WithLabelValues(topic, outcome).Inc()
		consumeLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}
}

func (c *Consumer) process(topic string, h MessageHandler, r Reader, km kafka.Message) string {
	var err error
	for attempt := 1; ; attempt++ {
		if err = c.attempt(topic, h, km, attempt); err == nil {
			c.commit(topic, r, km)
			if attempt > 1 {
				return "retried"
			}
			return "ok"
		}
		if attempt > c.cfg.RetryMax {
			break
		}
		if !c.sleep(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return "dropped"
		}
	}

	c.log.Error("kafka message exhausted retries",
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Int("attempts", c.cfg.RetryMax+1),
		logger.Error(err))
	if c.dlq != nil {
		if derr := c.deadLetter(topic, km, err); derr != nil {
			c.log.Error("kafka dead-letter write failed", logger.String("dlq", c.cfg.DLQTopic), logger.Error(derr))
			return "dropped"
		}
		c.commit(topic, r, km)
		return "dead"
	}
	// no DLQ: skip the poison message
	c.commit(topic, r, km)
	return "dropped"
}

func (c *Consumer) attempt(topic string, h MessageHandler, km kafka.Message, n int) error {
	d := &Delivery{Ctx: c.ctx, Topic: topic, Msg: km, Value: km.Value, Attempt: n, Started: time.Now()}
	return c.hooks.run(d, func(d *Delivery) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("handler panic: %v", p)
			}
		}()
		return h.Handle(d.Ctx, d.Value)
	})
}

func (c *Consumer) deadLetter(topic string, km kafka.Message, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hdrs := append([]kafka.Header{},
		kafka.Header{Key: "source_topic", Value: []byte(topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	if id := ExtractTraceID(km); id != "" {
		hdrs = append(hdrs, kafka.Header{Key: TraceHeader, Value: []byte(id)})
	}
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     km.Key,
		Value:   km.Value,
		Time:    time.Now(),
		Headers: hdrs,
	})
}

func (c *Consumer) commit(topic string, r Reader, km kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", logger.String("topic", topic), logger.Int64("offset", km.Offset), logger.Error(err))
}

// sleep waits d or until Stop; it reports whether the full wait elapsed.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// backoff doubles from lo per attempt, capped at hi, minus up to 50% jitter.
func backoff(lo, hi time.Duration, attempt int) time.Duration {
	if lo <= 0 {
		lo = 50 * time.Millisecond
	}
	hi = max(hi, lo)
	d := lo << min(attempt-1, 30)
	if d <= 0 || d > hi {
		d = hi
	}
	if half := int64(d / 2); half > 0 {
		d -= time.Duration(rand.Int64N(half))
	}
	return d
}
