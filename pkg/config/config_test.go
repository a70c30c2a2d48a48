package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "per_call", c.Predictor.ModelPolicy)
	assert.Equal(t, 50, c.Predictor.MinPoints)
	assert.Equal(t, 1500*time.Millisecond, c.Predictor.SimulatedLatency)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.True(t, c.RateLimit.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  port: 9090
predictor:
  model_policy: cached
  timeout: 45s
schedule:
  - symbol: AAPL
    spec: "0 30 16 * * 1-5"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "cached", c.Predictor.ModelPolicy)
	assert.Equal(t, 45*time.Second, c.Predictor.Timeout)
	assert.Equal(t, 4, c.Predictor.MaxConcurrent)
	require.Len(t, c.Schedule, 1)
	assert.Equal(t, "sample", c.Schedule[0].Source)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"PREDICTOR_ENV": "staging",
		"HTTP_PORT":     "7000",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"REDIS_ADDR":    "redis:6379",
		"MODEL_POLICY":  "cached",
		"JOBS_BACKEND":  "redis",
	}
	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 7000, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "cached", c.Predictor.ModelPolicy)
	assert.NoError(t, c.Validate())

	bad := Default()
	assert.Error(t, bad.applyEnv(func(k string) string {
		if k == "HTTP_PORT" {
			return "http"
		}
		return ""
	}))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"policy":     func(c *Config) { c.Predictor.ModelPolicy = "sometimes" },
		"cache":      func(c *Config) { c.Cache.Backend = "disk" },
		"redis addr": func(c *Config) { c.Jobs.Backend = "redis" },
		"kafka":      func(c *Config) { c.Kafka.Enabled = true },
		"clickhouse": func(c *Config) { c.ClickHouse.Enabled = true },
		"schedule":   func(c *Config) { c.Schedule = []WatchEntry{{Symbol: "AAPL"}} },
		"port":       func(c *Config) { c.Server.Port = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
