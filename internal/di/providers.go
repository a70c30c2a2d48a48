package di

import (
	"context"
	"fmt"
	"time"

	"StockPredictor/internal/domain/repository"
	domsvc "StockPredictor/internal/domain/service"
	"StockPredictor/internal/handler/api"
	internalrepo "StockPredictor/internal/repository"
	"StockPredictor/internal/service/ratelimit"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/services/network"
	"StockPredictor/internal/services/predictor"
	"StockPredictor/internal/usecase"
	"StockPredictor/pkg/cache"
	pkgch "StockPredictor/pkg/clickhouse"
	"StockPredictor/pkg/config"
	xhttp "StockPredictor/pkg/http"
	pkgkafka "StockPredictor/pkg/kafka"
	applogger "StockPredictor/pkg/logger"
	"StockPredictor/pkg/metrics"
	"StockPredictor/pkg/queue"
	"StockPredictor/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(pkgch.Config{
		Host:         cfg.ClickHouse.Host,
		Port:         cfg.ClickHouse.Port,
		Database:     cfg.ClickHouse.Database,
		User:         cfg.ClickHouse.User,
		Password:     cfg.ClickHouse.Password,
		UseHTTP:      cfg.ClickHouse.UseHTTP,
		AsyncInsert:  cfg.ClickHouse.AsyncInsert,
		WaitForAsync: cfg.ClickHouse.WaitForAsync,
		DialTimeout:  cfg.ClickHouse.DialTimeout,
		ReadTimeout:  cfg.ClickHouse.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSeriesStore wraps the ClickHouse client and optionally applies the schema.
func ProvideSeriesStore(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) (repository.SeriesStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSeriesStore(ch, log)
	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Compression:  cfg.Kafka.Compression,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchTimeout: cfg.Kafka.Producer.BatchTimeout,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher publishes prediction events to the results topic.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil || cfg.Kafka.ResultsTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideRedisCache dials Redis when any backend needs it; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.NeedsRedis() {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache selects the cache backend for job records and schedule locks.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return rc, nil
	case "layered":
		return cache.NewLayeredCache(rc, cache.LayeredConfig{
			MemoryMaxSize: cfg.Cache.MemoryMaxSize,
			MemoryTTL:     cfg.Cache.MemoryTTL,
		})
	default:
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
}

// ProvideJobStore keeps job records in the cache for Cache.JobTTL.
func ProvideJobStore(cfg *config.Config, c cache.Service) repository.JobStore {
	return internalrepo.NewCacheJobStore(c, cfg.Cache.JobTTL)
}

// ProvideRedisQueue creates the job queue when jobs.backend is redis.
func ProvideRedisQueue(cfg *config.Config, rc *cache.RedisCache, log *applogger.Logger) *queue.RedisQueue {
	if cfg.Jobs.Backend != usecase.BackendRedis || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(log, &queue.Config{
		Workers:    cfg.Jobs.Workers,
		RetryLimit: cfg.Jobs.RetryLimit,
		RetryDelay: cfg.Jobs.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":jobs"))
}

// ProvideHTTPClient is the client used for remote datasets.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Data.RemoteTimeout))
}

// ProvideLoader resolves request sources into series.
func ProvideLoader(cfg *config.Config, store repository.SeriesStore, client *xhttp.Client, log *applogger.Logger) *dataload.Loader {
	opts := []dataload.Option{
		dataload.WithMinPoints(cfg.Predictor.MinPoints),
		dataload.WithSimulatedLatency(cfg.Predictor.SimulatedLatency),
		dataload.WithLogger(log),
	}
	if cfg.Data.RemoteURL != "" {
		opts = append(opts, dataload.WithRemote(cfg.Data.RemoteURL, client))
	}
	if store != nil {
		opts = append(opts, dataload.WithStore(store))
	}
	return dataload.NewLoader(opts...)
}

// ProvideTrainer returns the go-deep trainer with training metrics.
func ProvideTrainer(m repository.Metrics) domsvc.Trainer {
	return usecase.NewInstrumentedTrainer(network.NewTrainer(), m)
}

// ProvideEngine builds the prediction engine for the configured model policy.
func ProvideEngine(cfg *config.Config, trainer domsvc.Trainer) domsvc.Predictor {
	opts := []predictor.Option{}
	if cfg.Predictor.Seed != 0 {
		opts = append(opts, predictor.WithFundamentals(predictor.NewSeededFundamentals(cfg.Predictor.Seed)))
	}
	if cfg.Predictor.ModelPolicy == usecase.PolicyCached {
		opts = append(opts, predictor.WithModelCache(usecase.NewModelCache(cfg.Predictor.ModelTTL, cfg.Predictor.ModelEntries).WithTrainTimeout(cfg.Predictor.Timeout)))
	}
	return predictor.NewEngine(trainer, opts...)
}

// ProvideRunner bounds concurrent predictions and their duration.
func ProvideRunner(cfg *config.Config) *usecase.Runner {
	return usecase.NewRunner(cfg.Predictor.MaxConcurrent, cfg.Predictor.Timeout)
}

// ProvideJobManager dispatches through the Redis queue when one is configured.
func ProvideJobManager(
	uc *usecase.PredictionUseCase,
	store repository.JobStore,
	q *queue.RedisQueue,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.JobManager {
	var dispatch queue.Publisher
	if q != nil {
		dispatch = q
	}
	jm := usecase.NewJobManager(uc, store, dispatch, m, log)
	if q != nil {
		q.RegisterJob(jm.Job())
	}
	return jm
}

// ProvideScheduler registers the configured watchlist.
func ProvideScheduler(cfg *config.Config, uc *usecase.PredictionUseCase, c cache.Service, log *applogger.Logger) (*usecase.Scheduler, error) {
	s := usecase.NewScheduler(uc, c, cfg.Predictor.Timeout*2, log)
	entries := make([]usecase.WatchEntry, 0, len(cfg.Schedule))
	for _, e := range cfg.Schedule {
		entries = append(entries, usecase.WatchEntry{Symbol: e.Symbol, Source: e.Source, Spec: e.Spec})
	}
	if err := s.Register(entries); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return s, nil
}

// ProvideKafkaConsumer creates the prediction request consumer, or nil.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.RequestsTopic == "" {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    c.GroupID,
		Workers:    c.Workers,
		BufferSize: c.BufferSize,
		RetryMax:   c.RetryMax,
		BackoffMin: c.BackoffMin,
		BackoffMax: c.BackoffMax,
		DLQTopic:   c.DLQTopic,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.TraceHook(log))
	return consumer, nil
}

// ProvideKafkaPredictionHandler handles prediction commands from Kafka.
func ProvideKafkaPredictionHandler(cfg *config.Config, uc *usecase.PredictionUseCase, m repository.Metrics) *usecase.KafkaPredictionHandler {
	if cfg.Kafka.RequestsTopic == "" {
		return nil
	}
	return usecase.NewKafkaPredictionHandler(cfg.Kafka.RequestsTopic, uc, m)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
}

// ProvidePredictionHandler exposes the prediction and job API.
func ProvidePredictionHandler(
	log *applogger.Logger,
	uc *usecase.PredictionUseCase,
	jobs *usecase.JobManager,
	rl *ratelimit.Limiter,
) *api.PredictionEchoHandler {
	return api.NewPredictionEchoHandler(log, uc, jobs, rl)
}

// ProvideHealthHandler checks every configured backend on /readyz.
func ProvideHealthHandler(store repository.SeriesStore, rc *cache.RedisCache) *api.HealthHandler {
	checks := map[string]api.Check{}
	if store != nil {
		checks["clickhouse"] = store.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx)
		}
	}
	return api.NewHealthHandler(checks)
}

// ProvideHTTPServer mounts every handler on one Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	pred *api.PredictionEchoHandler,
	health *api.HealthHandler,
) *xhttp.Server {
	return xhttp.NewServer(api.Routes{pred, health},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.AllowOrigins...),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(log),
	)
}

// ProvideApp creates the application and attaches optional components.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	srv *xhttp.Server,
	jobs *usecase.JobManager,
	scheduler *usecase.Scheduler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaPredictionHandler,
	producer *pkgkafka.Producer,
	publisher repository.ResultPublisher,
	ch *pkgch.Client,
	c cache.Service,
	rc *cache.RedisCache,
) *server.App {
	opts := []server.Option{}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	if consumer != nil && kh != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}

	if cfg.Log.Collector.Enabled && producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.TimeInterval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Service:        "stock-predictor",
			Publisher:      producer,
		})
	}

	// The publisher owns the producer; close it exactly once.
	switch {
	case publisher != nil:
		opts = append(opts, server.WithCloser("kafka producer", publisher))
	case producer != nil:
		opts = append(opts, server.WithCloser("kafka producer", producer))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	opts = append(opts, server.WithCloser("cache", c))
	if rc != nil && cfg.Cache.Backend == "memory" {
		opts = append(opts, server.WithCloser("redis", rc))
	}

	return server.New(cfg, log, srv, jobs, scheduler, opts...)
}
