package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scanBatch   = 200
	deleteBatch = 500
)

// RedisERPCache implements erp.Cache on Redis so every gateway replica
// shares one cache. Backend failures are logged and treated as misses.
type RedisERPCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// RedisERPCacheOption is a functional option for RedisERPCache
type RedisERPCacheOption func(*RedisERPCache)

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisERPCacheOption {
	return func(c *RedisERPCache) {
		c.logger = logger
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisERPCache creates a cache over an existing client
func NewRedisERPCache(client redis.UniversalClient, opts ...RedisERPCacheOption) *RedisERPCache {
	c := &RedisERPCache{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached payload, or false on a miss or backend failure
func (c *RedisERPCache) Get(ctx context.Context, tenantID uuid.UUID, domain erp.Domain, params erp.Params) ([]byte, bool) {
	key := erpKey(tenantID, domain, params)

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("ERP cache read failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("domain", domain.String()),
				zap.Error(err),
			)
		}
		return nil, false
	}
	return value, true
}

// Set stores the payload with the domain's TTL. Failures are logged and dropped.
func (c *RedisERPCache) Set(ctx context.Context, tenantID uuid.UUID, domain erp.Domain, params erp.Params, value []byte) {
	key := erpKey(tenantID, domain, params)

	if err := c.client.Set(ctx, key, value, domain.CacheTTL()).Err(); err != nil {
		c.logger.Warn("ERP cache write failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("domain", domain.String()),
			zap.Error(err),
		)
	}
}

// Invalidate deletes the tenant's entries for one domain, or all of them
// when domain is nil, and returns the number of keys removed
func (c *RedisERPCache) Invalidate(ctx context.Context, tenantID uuid.UUID, domain *erp.Domain) (int, error) {
	pattern := erpPattern(tenantID, domain)

	var (
		removed int
		pending []string
		cursor  uint64
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, pending...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		pending = pending[:0]
		return nil
	}

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan ERP cache keys: %w", err)
		}
		pending = append(pending, keys...)
		if len(pending) >= deleteBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("failed to delete ERP cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("failed to delete ERP cache keys: %w", err)
	}

	c.logger.Info("ERP cache invalidated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("pattern", pattern),
		zap.Int("removed", removed),
	)
	return removed, nil
}

var _ erp.Cache = (*RedisERPCache)(nil)
