package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"StockPredictor/pkg/logger"
)

// Mode selects which half of the queue runs in this process.
type Mode int

const (
	ModeProducerConsumer Mode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m Mode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

func (m Mode) consumes() bool { return m != ModeProducerOnly }

// promoteScript moves due retries back onto the pending list atomically so
// two replicas never promote the same message.
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 100)
for _, m in ipairs(due) do
	redis.call("ZREM", KEYS[1], m)
	redis.call("LPUSH", KEYS[2], m)
end
return #due`)

// RedisQueue is a reliable list queue. A message is moved to a per-instance
// processing list while its Job runs, and removed only after it finishes.
// Failed messages back off in a sorted set and land in a dead-letter list
// after RetryLimit retries.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client redis.UniversalClient
	mode   Mode
	prefix string
	node   string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix namespaces every key the queue touches.
func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) { q.prefix = prefix }
}

func NewRedisQueue(log *logger.Logger, cfg *Config, client redis.UniversalClient, mode Mode, opts ...Option) *RedisQueue {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	q := &RedisQueue{
		log:    log,
		cfg:    c,
		client: client,
		mode:   mode,
		prefix: "stockpredictor:queue",
		node:   uuid.NewString(),
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob routes messages of job.Type() to job. Producer-only queues ignore it.
func (q *RedisQueue) RegisterJob(job Job) {
	if !q.mode.consumes() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.jobs[job.Type()]; dup {
		q.log.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
	q.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis, requeues anything a previous run of this node left in
// flight and starts the workers.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = true
	if q.mode.consumes() {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.work(i)
		}
		q.wg.Add(1)
		go q.promoteLoop()
	}
	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.String("prefix", q.prefix),
		logger.String("mode", q.mode.String()))
	return nil
}

// Stop cancels in-flight handlers, waits for the workers and returns any
// messages still marked as processing to the pending list.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
	}

	n, err := q.requeueInFlight(ctx)
	if err != nil {
		return fmt.Errorf("requeue in-flight: %w", err)
	}
	q.log.Info("redis queue stopped", logger.Int("requeued", n))
	return nil
}

// Enqueue pushes payload as a new message of msgType.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if q.mode.consumes() && !known {
		return fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements Publisher.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

func (q *RedisQueue) work(id int) {
	defer q.wg.Done()
	for q.ctx.Err() == nil {
		raw, err := q.client.BLMove(q.ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", q.cfg.Poll).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case q.ctx.Err() != nil:
			return
		case err != nil:
			q.log.Error("queue pop failed", logger.Int("worker_id", id), logger.Error(err))
			q.sleep(q.cfg.Poll)
			continue
		}
		q.process(raw)
	}
}

func (q *RedisQueue) process(raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		q.log.Error("queue message undecodable", logger.Error(err))
		q.settle(raw, q.deadKey(), 0, raw)
		return
	}

	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.settle(raw, q.deadKey(), 0, raw)
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Duration("elapsed_ms", time.Since(start)),
	}
	switch {
	case err == nil:
		q.settle(raw, "", 0, "")
	case q.ctx.Err() != nil:
		// left in the processing list; Stop requeues it
		q.log.Warn("queue message interrupted", fields...)
	default:
		q.fail(raw, msg, err, fields)
	}
}

func (q *RedisQueue) fail(raw string, msg Message, err error, fields []logger.Field) {
	msg.Attempts++
	msg.LastError = err.Error()
	next, mErr := json.Marshal(msg)
	if mErr != nil {
		q.log.Error("marshal failed message", logger.Error(mErr))
		return
	}

	if msg.Attempts > q.cfg.RetryLimit {
		q.log.Error("queue message dead-lettered", append(fields, logger.Error(err))...)
		q.settle(raw, q.deadKey(), 0, string(next))
		return
	}
	due := time.Now().Add(q.cfg.backoff(msg.Attempts))
	q.log.Warn("queue message retry scheduled",
		append(fields, logger.Error(err), logger.String("retry_at", due.Format(time.RFC3339)))...)
	q.settle(raw, q.retryKey(), float64(due.UnixMilli()), string(next))
}

// settle removes raw from the processing list and, when dest is set, stores
// next there: the retry set scores it by score, any other key is a list.
func (q *RedisQueue) settle(raw, dest string, score float64, next string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, raw)
	switch dest {
	case "":
	case q.retryKey():
		pipe.ZAdd(ctx, dest, redis.Z{Score: score, Member: next})
	default:
		pipe.LPush(ctx, dest, next)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Error("queue settle failed", logger.String("dest", dest), logger.Error(err))
	}
}

func (q *RedisQueue) promoteLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.Poll * 5)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			n, err := promoteScript.Run(q.ctx, q.client, []string{q.retryKey(), q.pendingKey()}, now).Int()
			if err != nil && q.ctx.Err() == nil {
				q.log.Error("promote retries failed", logger.Error(err))
				continue
			}
			if n > 0 {
				q.log.Debug("retries promoted", logger.Int("count", n))
			}
		}
	}
}

func (q *RedisQueue) requeueInFlight(ctx context.Context) (int, error) {
	if !q.mode.consumes() {
		return 0, nil
	}
	n := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(), q.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.ctx.Done():
	case <-t.C:
	}
}

func (q *RedisQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing:" + q.node }
func (q *RedisQueue) retryKey() string      { return q.prefix + ":retry" }
func (q *RedisQueue) deadKey() string       { return q.prefix + ":dead" }
