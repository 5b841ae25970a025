package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/gateway/internal/application/dashboard"
	apperp "github.com/erp/gateway/internal/application/erp"
	"github.com/erp/gateway/internal/infrastructure/cache"
	"github.com/erp/gateway/internal/infrastructure/config"
	"github.com/erp/gateway/internal/infrastructure/erpdb"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/infrastructure/persistence"
	"github.com/erp/gateway/internal/infrastructure/ratelimit"
	"github.com/erp/gateway/internal/infrastructure/telemetry"
	"github.com/erp/gateway/internal/interfaces/http/handler"
	"github.com/erp/gateway/internal/interfaces/http/middleware"
	"github.com/erp/gateway/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ERP gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry: both providers stay no-op unless enabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	gatewayMetrics, err := telemetry.NewGatewayMetrics(meterProvider.Meter("erp.gateway"), log)
	if err != nil {
		log.Fatal("Failed to register gateway metrics", zap.Error(err))
	}

	// Platform database (integration records)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithDatabaseLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBName:  cfg.Database.DBName,
		}),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Cache, with the Redis client shared by the distributed limiter
	erpCache, redisClient, err := cache.NewERPCacheFactory(cfg.Redis, cache.WithLogger(log)).
		Create(cfg.ERP.CacheBackend)
	if err != nil {
		log.Fatal("Failed to initialize ERP cache", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}
	if closer, ok := erpCache.(interface{ Close() error }); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	var limiterClient redis.UniversalClient
	if redisClient != nil {
		limiterClient = redisClient
	} else if cfg.ERP.LimiterBackend == ratelimit.BackendRedis {
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis for rate limiting", zap.Error(err))
		}
		defer func() {
			_ = client.Close()
		}()
		limiterClient = client
	}
	limiter := ratelimit.New(cfg.ERP.LimiterBackend, limiterClient,
		ratelimit.WithLimit(cfg.ERP.RateLimit),
		ratelimit.WithWindow(cfg.ERP.RateWindow),
		ratelimit.WithLogger(log),
	)

	// Tenant ERP pools and the read-only query repository
	registry := erpdb.NewRegistry(
		erpdb.WithDialectOptions(erpdb.DialectOptions{
			ApplicationName: cfg.ERP.ApplicationName,
			SearchPath:      cfg.ERP.SearchPath,
		}),
		erpdb.WithPoolOverflow(cfg.ERP.PoolOverflow),
		erpdb.WithRegistryLogger(log),
	)
	defer func() {
		if err := registry.DisposeAll(); err != nil {
			log.Error("Error closing ERP pools", zap.Error(err))
		}
	}()
	queries, err := erpdb.NewVerifiedQueryRepository(registry, erpdb.DefaultCatalog(),
		erpdb.WithQueryObserver(gatewayMetrics),
		erpdb.WithRepositoryLogger(log),
	)
	if err != nil {
		log.Fatal("Invalid query catalog", zap.Error(err))
	}

	gatewayMetrics.StartPoolStatsCollection(registry, cfg.Telemetry.MetricsInterval)
	defer gatewayMetrics.Stop()

	// Application services
	configs := apperp.NewConfigLoader(persistence.NewGormIntegrationRepository(db.DB), log)
	gateway := apperp.NewGatewayService(configs, queries, registry, limiter, erpCache,
		apperp.WithLogger(log),
		apperp.WithMetrics(gatewayMetrics),
	)
	dashboardOpts := []dashboard.Option{dashboard.WithLogger(log)}
	if cfg.ERP.DashboardRateLimited {
		dashboardOpts = append(dashboardOpts, dashboard.WithRateLimiter(limiter))
	}
	dashboards := dashboard.NewService(configs, queries, dashboardOpts...)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.CORSWithConfig(corsCfg),
		middleware.TenantWithConfig(middleware.TenantConfig{
			SkipPaths: middleware.DefaultTenantConfig().SkipPaths,
			Required:  true,
			Logger:    log,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meterProvider.Meter("http.server"), log),
	)

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.ERPRoutes(
		handler.NewERPHandler(gateway),
		handler.NewDashboardHandler(dashboards),
	))
	for _, route := range r.Setup() {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports the gateway's own health. Tenant ERPs are probed
// through /api/v1/erp/health instead.
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
