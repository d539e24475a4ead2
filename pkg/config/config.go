package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends understood by the service
const (
	CacheBackendMemory   = "memory"
	CacheBackendFile     = "file"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Routing    RoutingConfig
	Cache      CacheConfig
	Resilience ResilienceConfig
	Tracing    TracingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	ServiceName    string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int    // seconds, applied per request by middleware
	CORSOrigins    string // Comma-separated list of allowed origins
}

// DatabaseConfig holds PostgreSQL connection settings for the SQL cache store
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis connection settings for the Redis cache store
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RoutingConfig points at an OSRM-compatible table service
type RoutingConfig struct {
	Enabled      bool
	BaseURL      string
	Profile      string
	BatchSize    int
	TimeoutMs    int
	BatchDelayMs int
	MaxBatches   int // 0 means unlimited
}

// CacheConfig selects and tunes the driving-time cache
type CacheConfig struct {
	Backend                string
	FilePath               string
	RedisKey               string
	TTLHours               int
	CleanupIntervalMinutes int
}

// ResilienceConfig holds circuit breaker settings
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig holds defaults plus per-service overrides
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings is the effective configuration for one breaker
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
	ServiceVer   string
}

// Load loads configuration from environment variables, reading .env first when present
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ServiceName:    serviceName,
			LogLevel:       getEnv("LOG_LEVEL", ""),
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 30),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 25),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "drivetime"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Routing: RoutingConfig{
			Enabled:      getEnvAsBool("ROUTING_ENABLED", true),
			BaseURL:      getEnv("ROUTING_BASE_URL", "https://router.project-osrm.org"),
			Profile:      getEnv("ROUTING_PROFILE", "driving"),
			BatchSize:    getEnvAsInt("ROUTING_BATCH_SIZE", 25),
			TimeoutMs:    getEnvAsInt("ROUTING_TIMEOUT_MS", 5000),
			BatchDelayMs: getEnvAsInt("ROUTING_BATCH_DELAY_MS", 200),
			MaxBatches:   getEnvAsInt("ROUTING_MAX_BATCHES", 0),
		},
		Cache: CacheConfig{
			Backend:                strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			FilePath:               getEnv("CACHE_FILE_PATH", "data/driving-time-cache.json"),
			RedisKey:               getEnv("CACHE_REDIS_KEY", "drivetime:cache"),
			TTLHours:               getEnvAsInt("CACHE_TTL_HOURS", 24),
			CleanupIntervalMinutes: getEnvAsInt("CACHE_CLEANUP_INTERVAL_MINUTES", 60),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_SAMPLE_RATE", 1.0),
			ServiceVer:   getEnv("SERVICE_VERSION", "dev"),
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendFile, CacheBackendRedis, CacheBackendPostgres:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.Cache.Backend)
	}

	if c.Cache.Backend == CacheBackendFile && c.Cache.FilePath == "" {
		return fmt.Errorf("CACHE_FILE_PATH is required for the file cache backend")
	}

	if c.Routing.Enabled && c.Routing.BaseURL == "" {
		return fmt.Errorf("ROUTING_BASE_URL is required when routing is enabled")
	}

	// The table service rejects more than 25 destinations per request
	if c.Routing.BatchSize <= 0 || c.Routing.BatchSize > 25 {
		c.Routing.BatchSize = 25
	}
	if c.Routing.TimeoutMs <= 0 {
		c.Routing.TimeoutMs = 5000
	}
	if c.Routing.BatchDelayMs < 0 {
		c.Routing.BatchDelayMs = 0
	}
	if c.Routing.MaxBatches < 0 {
		c.Routing.MaxBatches = 0
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}

	cb := &c.Resilience.CircuitBreaker
	if cb.TimeoutSeconds <= 0 {
		cb.TimeoutSeconds = 30
	}
	if cb.IntervalSeconds <= 0 {
		cb.IntervalSeconds = 60
	}
	if cb.FailureThreshold <= 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold <= 0 {
		cb.SuccessThreshold = 1
	}

	return nil
}

// SettingsFor returns breaker settings for a named service, applying any override
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// DSN returns a PostgreSQL keyword/value connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns host:port
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Timeout is the per-batch client timeout
func (c RoutingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BatchDelay is the pause between consecutive batches
func (c RoutingConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// TTL is the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// CleanupInterval is how often expired cache entries are purged. Zero disables the sweep.
func (c CacheConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
