package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/parking-drivetime/internal/drivetime"
	"github.com/richxcame/parking-drivetime/pkg/async"
	"github.com/richxcame/parking-drivetime/pkg/common"
	"github.com/richxcame/parking-drivetime/pkg/config"
	"github.com/richxcame/parking-drivetime/pkg/database"
	"github.com/richxcame/parking-drivetime/pkg/errors"
	"github.com/richxcame/parking-drivetime/pkg/health"
	"github.com/richxcame/parking-drivetime/pkg/httpclient"
	"github.com/richxcame/parking-drivetime/pkg/logger"
	"github.com/richxcame/parking-drivetime/pkg/middleware"
	redisClient "github.com/richxcame/parking-drivetime/pkg/redis"
	"github.com/richxcame/parking-drivetime/pkg/resilience"
	"github.com/richxcame/parking-drivetime/pkg/tracing"
	"github.com/richxcame/parking-drivetime/pkg/validation"
	"go.uber.org/zap"
)

const (
	serviceName = "drivetime-service"
	version     = "1.0.0"
)

// backend bundles the configured cache store with its readiness check and cleanup
type backend struct {
	store    drivetime.Store
	check    health.Checker
	close    func()
	retryErr func(error) bool
}

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.InitWithOptions(cfg.Server.Environment, logger.Options{
		Service: serviceName,
		Level:   cfg.Server.LogLevel,
	}); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting driving-time service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("routing_enabled", cfg.Routing.Enabled),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: cfg.Tracing.ServiceVer,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			Enabled:        true,
		}, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized successfully")
		}
	}

	be, err := openBackend(rootCtx, cfg)
	if err != nil {
		logger.Fatal("Failed to open cache backend", zap.Error(err))
	}
	defer be.close()

	cache := drivetime.NewCache(be.store, cfg.Cache.TTL())
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryableChecker = be.retryErr
	if _, err := resilience.Retry(rootCtx, retryCfg, "drivetime.cache.load", func(ctx context.Context) (interface{}, error) {
		return cache.Load(ctx)
	}); err != nil {
		logger.Warn("Starting with an empty driving-time cache", zap.Error(err))
	}

	estimator := drivetime.NewEstimator(nil)
	logger.Info("Zone model loaded",
		zap.Int("zones", len(estimator.Zones().Zones())),
		zap.Int("expressways", len(estimator.Zones().Expressways())),
	)

	var router drivetime.Router
	if cfg.Routing.Enabled {
		var breaker *resilience.CircuitBreaker
		if cfg.Resilience.CircuitBreaker.Enabled {
			breaker = resilience.NewCircuitBreaker(
				resilience.BuildSettings("routing-table", cfg.Resilience.CircuitBreaker.SettingsFor("routing")),
			)
			logger.Info("Circuit breaker enabled for routing API")
		}

		opts := []httpclient.Option{httpclient.WithUserAgent(serviceName + "/" + version)}
		if cfg.Tracing.Enabled {
			opts = append(opts, httpclient.WithTracing())
		}
		// The per-batch context deadline is the effective limit; this bounds a stuck connection.
		client := httpclient.NewClient(cfg.Routing.BaseURL, 2*cfg.Routing.Timeout(), opts...)
		logger.Info("Routing enabled",
			zap.String("base_url", client.BaseURL()),
			zap.String("profile", cfg.Routing.Profile),
		)

		router = drivetime.NewRoutingClient(client, drivetime.RoutingConfig{
			Profile: cfg.Routing.Profile,
			Policy: drivetime.BatchPolicy{
				BatchSize:  cfg.Routing.BatchSize,
				Timeout:    cfg.Routing.Timeout(),
				BatchDelay: cfg.Routing.BatchDelay(),
				MaxBatches: cfg.Routing.MaxBatches,
			},
		}, estimator, breaker)
	} else {
		logger.Warn("Routing disabled, answering with heuristic estimates only")
	}

	service := drivetime.NewService(estimator, router, cache)
	handler := drivetime.NewHandler(service)

	cleanupDone := async.Every(rootCtx, "drivetime.cache.cleanup", cfg.Cache.CleanupInterval(), func(ctx context.Context) error {
		removed, err := service.Cleanup(ctx)
		if removed > 0 {
			logger.Info("Driving-time cache cleaned up", zap.Int("removed", removed))
		}
		return err
	})

	if err := validation.RegisterGinValidators(); err != nil {
		logger.Fatal("Failed to register request validators", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SentryMiddleware())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.RequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	r.Use(middleware.RequestLogger(serviceName))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware(serviceName))
	}

	r.Use(middleware.ErrorHandler())

	// Health check endpoints
	r.GET("/healthz", common.HealthCheck(serviceName, version))
	r.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := map[string]common.Check{}
	if be.check != nil {
		healthChecks[cfg.Cache.Backend] = health.NewCachedChecker(be.check, 5*time.Second).Check
	}
	r.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRoot()
	<-cleanupDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// openBackend connects the store selected by CACHE_BACKEND
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendFile:
		logger.Info("Using file cache store", zap.String("path", cfg.Cache.FilePath))
		return &backend{store: drivetime.NewFileStore(cfg.Cache.FilePath), close: func() {}}, nil

	case config.CacheBackendRedis:
		rc, err := redisClient.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis")
		return &backend{
			store:    drivetime.NewRedisStore(rc, cfg.Cache.RedisKey, cfg.Cache.TTL()),
			check:    health.RedisChecker(rc, health.DefaultTimeout),
			close:    func() { _ = rc.Close() },
			retryErr: redisClient.IsRetryable,
		}, nil

	case config.CacheBackendPostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Database, serviceName)
		if err != nil {
			return nil, err
		}
		db := database.OpenSQL(pool)
		store := drivetime.NewSQLStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			database.Close(pool)
			return nil, err
		}
		logger.Info("Connected to PostgreSQL")
		return &backend{
			store: store,
			check: health.PingChecker("postgres", pool, health.DefaultTimeout),
			close: func() {
				_ = db.Close()
				database.Close(pool)
			},
		}, nil

	default:
		logger.Info("Using in-memory cache store")
		return &backend{store: drivetime.NewMemoryStore(), close: func() {}}, nil
	}
}
