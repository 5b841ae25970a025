package main

import (
	"fmt"

	apperp "github.com/erp/gateway/internal/application/erp"
	"github.com/erp/gateway/internal/infrastructure/cache"
	"github.com/erp/gateway/internal/infrastructure/config"
	"github.com/erp/gateway/internal/infrastructure/erpdb"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/infrastructure/persistence"
	"github.com/erp/gateway/internal/infrastructure/ratelimit"
	"go.uber.org/zap"
)

// env holds the components a tenant-facing command needs. It mirrors the
// server's wiring without the HTTP layer or telemetry exporters.
type env struct {
	log      *zap.Logger
	configs  *apperp.ConfigLoader
	registry *erpdb.Registry
	queries  *erpdb.QueryRepository
	gateway  *apperp.GatewayService
	closers  []func() error
}

func openEnv(flags *globalFlags) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      flags.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	e := &env{log: log}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithDatabaseLogger(log, logger.MapGormLogLevel(flags.logLevel)))
	if err != nil {
		return nil, fmt.Errorf("connect platform database: %w", err)
	}
	e.closers = append(e.closers, db.Close)

	// The CLI never fails on a missing Redis; invalidation then reports 0.
	erpCache, client, err := cache.NewERPCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).Create(cfg.ERP.CacheBackend)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	if client != nil {
		e.closers = append(e.closers, client.Close)
	}
	if closer, ok := erpCache.(interface{ Close() error }); ok {
		e.closers = append(e.closers, closer.Close)
	}

	e.registry = erpdb.NewRegistry(
		erpdb.WithDialectOptions(erpdb.DialectOptions{
			ApplicationName: cfg.ERP.ApplicationName + "-cli",
			SearchPath:      cfg.ERP.SearchPath,
		}),
		erpdb.WithRegistryLogger(log),
	)
	e.closers = append(e.closers, e.registry.DisposeAll)

	e.queries, err = erpdb.NewVerifiedQueryRepository(e.registry, erpdb.DefaultCatalog(),
		erpdb.WithRepositoryLogger(log))
	if err != nil {
		e.Close()
		return nil, err
	}
	e.configs = apperp.NewConfigLoader(persistence.NewGormIntegrationRepository(db.DB), log)

	// Operator calls are not throttled.
	limiter := ratelimit.New(ratelimit.BackendMemory, nil,
		ratelimit.WithLimit(1<<20),
		ratelimit.WithLogger(log))

	e.gateway = apperp.NewGatewayService(e.configs, e.queries, e.registry, limiter, erpCache,
		apperp.WithLogger(log))
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("Failed to release resource", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}
