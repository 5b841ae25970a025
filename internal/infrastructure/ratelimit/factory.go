package ratelimit

import (
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New returns the limiter for the configured backend. The Redis backend
// needs a client; without one the in-process window is used.
func New(backend string, client redis.UniversalClient, opts ...Option) erp.RateLimiter {
	if backend == BackendRedis && client != nil {
		return NewRedisSlidingWindow(client, opts...)
	}
	return NewSlidingWindow(opts...)
}
