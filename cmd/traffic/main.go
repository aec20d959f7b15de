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
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/internal/provider"
	"github.com/richxcame/route-traffic/internal/routing"
	"github.com/richxcame/route-traffic/internal/traffic"
	"github.com/richxcame/route-traffic/pkg/cache"
	"github.com/richxcame/route-traffic/pkg/common"
	"github.com/richxcame/route-traffic/pkg/config"
	"github.com/richxcame/route-traffic/pkg/errors"
	"github.com/richxcame/route-traffic/pkg/eventbus"
	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/middleware"
	redisClient "github.com/richxcame/route-traffic/pkg/redis"
	"github.com/richxcame/route-traffic/pkg/tracing"
)

const (
	serviceName = "traffic-service"
	version     = "1.0.0"

	cacheStatusInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting traffic service",
		zap.String("service", serviceName),
		zap.String("version", version),
	)

	// Initialize Sentry for error tracking
	if err := errors.InitSentry(errors.SentryConfigFrom(cfg)); err != nil {
		logger.Warn("Sentry disabled, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ConfigFrom(cfg), logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized successfully")
		}
	}

	healthChecks := make(map[string]common.CheckFunc)

	// The shared flow cache is optional; the service degrades to in-process caching only.
	var store *cache.Manager
	if cfg.Provider.SharedCacheEnabled {
		redis, err := redisClient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, shared flow cache disabled", zap.Error(err))
		} else {
			defer redis.Close()
			store = cache.NewManager(redis)
			healthChecks["redis"] = redis.Ping
			logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
		}
	}

	client := provider.NewFromConfig(cfg, store)
	clock := traffic.SystemClock{}
	fallback := traffic.NewFallbackPolicy(clock, cfg.Traffic.RushHourWindows(), cfg.Traffic.FallbackSeed)
	source := traffic.NewProviderSource(client, fallback, clock)

	service := traffic.NewService(cfg.Traffic, source, clock)
	if shared, ok := client.(traffic.SharedCache); ok {
		service.SetSharedCache(shared)
	}

	if cfg.Events.Enabled {
		bus, err := eventbus.New(eventbus.Config{URL: cfg.Events.NATSURL, Name: serviceName})
		if err != nil {
			logger.Warn("Event bus unavailable, events will not be published", zap.Error(err))
		} else {
			defer bus.Close()
			service.SetPublisher(bus)
			healthChecks["nats"] = func(context.Context) error {
				if !bus.Connected() {
					return fmt.Errorf("nats not connected")
				}
				return nil
			}
			logger.Info("Event publishing enabled", zap.String("url", cfg.Events.NATSURL))
		}
	}

	service.Start()
	defer service.Close()

	stopStatus := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cacheStatusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				service.LogCacheStatus()
			case <-stopStatus:
				return
			}
		}
	}()
	defer close(stopStatus)

	router := routing.NewFromConfig(cfg)
	handler := traffic.NewHandler(service, router, provider.Live(client))

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		common.ErrorResponse(c, http.StatusNotFound, "route not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		common.ErrorResponse(c, http.StatusMethodNotAllowed, "method not allowed")
	})
	engine.Use(middleware.RecoveryWithSentry())
	engine.Use(middleware.SentryMiddleware())
	engine.Use(middleware.CorrelationID())
	engine.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout()))
	engine.Use(middleware.RequestLogger(serviceName))
	engine.Use(middleware.CORS(cfg.Server.CORSOrigins))
	engine.Use(middleware.Metrics())

	if cfg.Tracing.Enabled {
		engine.Use(middleware.TracingMiddleware(serviceName))
	}

	engine.Use(middleware.ErrorHandler())

	// Health check endpoints
	engine.GET("/healthz", common.HealthCheck(serviceName, version))
	engine.GET("/health/live", common.LivenessProbe(serviceName, version))
	engine.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	service.LogCacheStatus()
	logger.Info("Server stopped")
}
