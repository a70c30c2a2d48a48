package cache

import "time"

// RedisConfig is the connection shared by the job cache, schedule locks and
// the job queue. Zero fields take the `default` tag value.
type RedisConfig struct {
	Addr         string        `default:"localhost:6379"`
	Password     string
	DB           int
	PoolSize     int           `default:"10"`
	MinIdleConns int           `default:"2"`
	PoolTimeout  time.Duration `default:"30s"`
	DialTimeout  time.Duration `default:"5s"`
	Prefix       string        `default:"stockpredictor"`
}

// LayeredConfig sizes the in-process L1 in front of Redis.
type LayeredConfig struct {
	MemoryMaxSize int `default:"1000"`
	// MemoryTTL caps how long L1 may serve a value without asking L2.
	MemoryTTL time.Duration `default:"30s"`
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize         int
	cleanupInterval time.Duration
}

// WithMemoryMaxSize bounds the number of entries before LRU eviction.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *memoryConfig) {
		if size > 0 {
			c.maxSize = size
		}
	}
}
