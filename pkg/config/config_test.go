package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("drivetime")
	require.NoError(t, err)

	assert.Equal(t, "drivetime", cfg.Server.ServiceName)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 25, cfg.Routing.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Routing.Timeout())
	assert.Equal(t, 200*time.Millisecond, cfg.Routing.BatchDelay())
	assert.Equal(t, 0, cfg.Routing.MaxBatches)
	assert.Equal(t, "driving", cfg.Routing.Profile)
}

func TestLoad_RoutingOverrides(t *testing.T) {
	t.Setenv("ROUTING_BASE_URL", "http://osrm.internal:5000")
	t.Setenv("ROUTING_BATCH_SIZE", "100")
	t.Setenv("ROUTING_TIMEOUT_MS", "1500")
	t.Setenv("ROUTING_BATCH_DELAY_MS", "-5")
	t.Setenv("ROUTING_MAX_BATCHES", "4")

	cfg, err := Load("drivetime")
	require.NoError(t, err)

	assert.Equal(t, "http://osrm.internal:5000", cfg.Routing.BaseURL)
	assert.Equal(t, 25, cfg.Routing.BatchSize, "batch size is capped")
	assert.Equal(t, 1500*time.Millisecond, cfg.Routing.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Routing.BatchDelay())
	assert.Equal(t, 4, cfg.Routing.MaxBatches)
}

func TestLoad_CacheBackend(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "Redis")
		cfg, err := Load("drivetime")
		require.NoError(t, err)
		assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "memcached")
		_, err := Load("drivetime")
		assert.Error(t, err)
	})

	t.Run("file without path", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "file")
		t.Setenv("CACHE_FILE_PATH", "")
		cfg, err := Load("drivetime")
		require.NoError(t, err, "empty env falls back to the default path")
		assert.NotEmpty(t, cfg.Cache.FilePath)
	})

	t.Run("cleanup disabled", func(t *testing.T) {
		t.Setenv("CACHE_CLEANUP_INTERVAL_MINUTES", "0")
		cfg, err := Load("drivetime")
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.Cache.CleanupInterval())
	})
}

func TestLoad_InvalidBreakerOverrides(t *testing.T) {
	t.Setenv("CB_SERVICE_OVERRIDES", "{not json")
	_, err := Load("drivetime")
	assert.Error(t, err)
}

func TestCircuitBreakerConfig_SettingsFor(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		TimeoutSeconds:   30,
		IntervalSeconds:  60,
		ServiceOverrides: map[string]CircuitBreakerSettings{
			"routing": {FailureThreshold: 3, TimeoutSeconds: 10},
		},
	}

	s := cfg.SettingsFor("routing")
	assert.Equal(t, 3, s.FailureThreshold)
	assert.Equal(t, 1, s.SuccessThreshold)
	assert.Equal(t, 10, s.TimeoutSeconds)
	assert.Equal(t, 60, s.IntervalSeconds)

	s = cfg.SettingsFor("other")
	assert.Equal(t, 5, s.FailureThreshold)

	s = CircuitBreakerConfig{}.SettingsFor("empty")
	assert.Equal(t, CircuitBreakerSettings{FailureThreshold: 5, SuccessThreshold: 1, TimeoutSeconds: 30, IntervalSeconds: 60}, s)
}

func TestDSNAndRedisAddr(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "drivetime", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=drivetime sslmode=disable", db.DSN())

	r := RedisConfig{Host: "cache", Port: "6380"}
	assert.Equal(t, "cache:6380", r.RedisAddr())
}
