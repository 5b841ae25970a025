package ratelimit

import (
	"context"
	"fmt"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:erp:"

// slidingWindowScript prunes the tenant's sorted set, then admits the call
// only while the set holds fewer than the limit. Returns 1 when admitted.
//
// KEYS[1] tenant key
// ARGV[1] now in ms, ARGV[2] window in ms, ARGV[3] limit, ARGV[4] member
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

// RedisSlidingWindow shares the sliding window across gateway replicas.
// When Redis cannot be reached it degrades to an in-process window.
type RedisSlidingWindow struct {
	client   redis.UniversalClient
	fallback *SlidingWindow
	opts     options
}

// NewRedisSlidingWindow creates a limiter over the given client.
func NewRedisSlidingWindow(client redis.UniversalClient, opts ...Option) *RedisSlidingWindow {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisSlidingWindow{
		client:   client,
		fallback: newSlidingWindow(o),
		opts:     o,
	}
}

// Allow records a call for the tenant, or returns a RateLimitError when the
// window is full.
func (r *RedisSlidingWindow) Allow(ctx context.Context, tenantID uuid.UUID) error {
	now := r.opts.now()
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())

	admitted, err := slidingWindowScript.Run(ctx, r.client,
		[]string{tenantKey(tenantID)},
		now.UnixMilli(), r.opts.window.Milliseconds(), r.opts.limit, member,
	).Int()
	if err != nil {
		if ctx.Err() != nil {
			return erp.NewQueryError("rate limit check cancelled", ctx.Err())
		}
		r.opts.logger.Warn("Redis rate limiter unavailable, using in-process window",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return r.fallback.Allow(ctx, tenantID)
	}

	if admitted == 0 {
		r.opts.logger.Warn("ERP rate limit exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("limit", r.opts.limit),
			zap.Duration("window", r.opts.window),
		)
		return erp.NewRateLimitError(tenantID, r.opts.limit, r.opts.window)
	}
	return nil
}

func tenantKey(tenantID uuid.UUID) string {
	return keyPrefix + tenantID.String()
}

var _ erp.RateLimiter = (*RedisSlidingWindow)(nil)
