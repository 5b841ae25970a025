package cache

import (
	"fmt"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache backends
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ERPCacheFactory creates the ERP cache based on configuration
type ERPCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(config.RedisConfig) (*redis.Client, error)
}

// ERPCacheFactoryOption is a functional option for configuring the factory
type ERPCacheFactoryOption func(*ERPCacheFactory)

// WithLogger sets the logger for the factory and the caches it creates
func WithLogger(logger *zap.Logger) ERPCacheFactoryOption {
	return func(f *ERPCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) ERPCacheFactoryOption {
	return func(f *ERPCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewERPCacheFactory creates a new factory
func NewERPCacheFactory(cfg config.RedisConfig, opts ...ERPCacheFactoryOption) *ERPCacheFactory {
	f := &ERPCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the cache for the backend. For redis it connects first and,
// if Redis is unreachable and fallback is allowed, returns the in-memory
// cache with a warning. The returned client is nil unless Redis is used.
func (f *ERPCacheFactory) Create(backend string) (erp.Cache, *redis.Client, error) {
	if backend == BackendMemory {
		f.logger.Info("Using in-memory ERP cache")
		return NewInMemoryERPCache(0), nil, nil
	}

	client, err := f.dial(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis ERP cache", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisERPCache(client, WithRedisLogger(f.logger)), client, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for ERP cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory ERP cache. "+
		"Replicas will not share cached ERP data.",
		zap.Error(err),
	)
	return NewInMemoryERPCache(0), nil, nil
}
