package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"stockpredictor.logs"`
			TimeInterval   time.Duration `yaml:"time_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
		CORS            bool          `yaml:"cors" default:"true"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Predictor struct {
		ModelPolicy      string        `yaml:"model_policy" default:"per_call"`
		ModelTTL         time.Duration `yaml:"model_ttl" default:"10m"`
		ModelEntries     int           `yaml:"model_entries" default:"128"`
		MaxConcurrent    int           `yaml:"max_concurrent" default:"4"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
		MinPoints        int           `yaml:"min_points" default:"50"`
		SimulatedLatency time.Duration `yaml:"simulated_latency" default:"1500ms"`
		// Seed fixes the synthetic fundamentals stream; 0 draws from the global source.
		Seed uint64 `yaml:"seed"`
	} `yaml:"predictor"`
	RateLimit struct {
		Enabled   bool          `yaml:"enabled" default:"true"`
		PerSecond float64       `yaml:"per_second" default:"2"`
		Burst     int           `yaml:"burst" default:"5"`
		IdleTTL   time.Duration `yaml:"idle_ttl" default:"10m"`
	} `yaml:"rate_limit"`
	Data struct {
		RemoteURL     string        `yaml:"remote_url"`
		RemoteTimeout time.Duration `yaml:"remote_timeout" default:"10s"`
		StoreLimit    int           `yaml:"store_limit" default:"90"`
	} `yaml:"data"`
	Cache struct {
		Backend       string        `yaml:"backend" default:"memory"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"10000"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"30s"`
		JobTTL        time.Duration `yaml:"job_ttl" default:"1h"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"stockpredictor"`
	} `yaml:"redis"`
	Jobs struct {
		Backend    string        `yaml:"backend" default:"inproc"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	} `yaml:"jobs"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		Compression   string   `yaml:"compression" default:"snappy"`
		ResultsTopic  string   `yaml:"results_topic" default:"stockpredictor.results"`
		RequestsTopic string   `yaml:"requests_topic"`
		Producer      struct {
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"stock-predictor"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"stockpredictor"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		InitSchema   bool          `yaml:"init_schema" default:"true"`
	} `yaml:"clickhouse"`
	Schedule []WatchEntry `yaml:"schedule"`
}

// WatchEntry schedules one symbol on a six-field cron spec.
type WatchEntry struct {
	Symbol string `yaml:"symbol"`
	Source string `yaml:"source" default:"sample"`
	Spec   string `yaml:"spec"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables, then validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range c.Schedule {
		if err := defaults.Set(&c.Schedule[i]); err != nil {
			return nil, fmt.Errorf("schedule[%d] defaults: %w", i, err)
		}
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PREDICTOR_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("MODEL_POLICY"); v != "" {
		c.Predictor.ModelPolicy = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := getenv("JOBS_BACKEND"); v != "" {
		c.Jobs.Backend = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("REMOTE_DATA_URL"); v != "" {
		c.Data.RemoteURL = v
	}
	return nil
}

// NeedsRedis reports whether any component is configured against Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == "redis" || c.Cache.Backend == "layered" || c.Jobs.Backend == "redis"
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Predictor.ModelPolicy {
	case "per_call", "cached":
	default:
		return fmt.Errorf("predictor.model_policy must be 'per_call' or 'cached', got '%s'", c.Predictor.ModelPolicy)
	}
	if c.Predictor.MinPoints < 12 {
		return fmt.Errorf("predictor.min_points must be at least 12, got %d", c.Predictor.MinPoints)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	switch c.Jobs.Backend {
	case "inproc", "redis":
	default:
		return fmt.Errorf("jobs.backend must be 'inproc' or 'redis', got '%s'", c.Jobs.Backend)
	}
	if c.NeedsRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for cache.backend=%s jobs.backend=%s", c.Cache.Backend, c.Jobs.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	for i, e := range c.Schedule {
		if strings.TrimSpace(e.Symbol) == "" || strings.TrimSpace(e.Spec) == "" {
			return fmt.Errorf("schedule[%d]: symbol and spec are required", i)
		}
	}
	return nil
}
