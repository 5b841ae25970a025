package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time

// SlidingWindow admits at most limit calls per tenant within any window,
// keeping a timestamp log per tenant in process memory.
type SlidingWindow struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*tenantLog
	limit   int
	window  time.Duration
	now     Clock
	logger  *zap.Logger
}

type tenantLog struct {
	mu     sync.Mutex
	stamps []time.Time
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	limit  int
	window time.Duration
	now    Clock
	logger *zap.Logger
}

func defaultOptions() options {
	return options{
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// WithLimit sets the number of calls admitted per window.
func WithLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.limit = limit
		}
	}
}

// WithWindow sets the sliding window length.
func WithWindow(window time.Duration) Option {
	return func(o *options) {
		if window > 0 {
			o.window = window
		}
	}
}

// WithClock replaces the time source.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSlidingWindow creates an in-process limiter.
func NewSlidingWindow(opts ...Option) *SlidingWindow {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newSlidingWindow(o)
}

func newSlidingWindow(o options) *SlidingWindow {
	return &SlidingWindow{
		tenants: make(map[uuid.UUID]*tenantLog),
		limit:   o.limit,
		window:  o.window,
		now:     o.now,
		logger:  o.logger,
	}
}

// Allow records a call for the tenant, or returns a RateLimitError when the
// window is full. A rejected call leaves the log untouched.
func (s *SlidingWindow) Allow(_ context.Context, tenantID uuid.UUID) error {
	log := s.tenant(tenantID)

	log.mu.Lock()
	defer log.mu.Unlock()

	now := s.now()
	log.prune(now.Add(-s.window))

	if len(log.stamps) >= s.limit {
		s.logger.Warn("ERP rate limit exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("limit", s.limit),
			zap.Duration("window", s.window),
		)
		return erp.NewRateLimitError(tenantID, s.limit, s.window)
	}
	log.stamps = append(log.stamps, now)
	return nil
}

// Remaining returns how many calls the tenant may still make in the current window.
func (s *SlidingWindow) Remaining(tenantID uuid.UUID) int {
	log := s.tenant(tenantID)

	log.mu.Lock()
	defer log.mu.Unlock()

	log.prune(s.now().Add(-s.window))
	return s.limit - len(log.stamps)
}

// Limit returns the configured call limit.
func (s *SlidingWindow) Limit() int {
	return s.limit
}

func (s *SlidingWindow) tenant(tenantID uuid.UUID) *tenantLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.tenants[tenantID]
	if !ok {
		log = &tenantLog{}
		s.tenants[tenantID] = log
	}
	return log
}

// prune drops stamps at or before cutoff. Stamps are appended in order.
func (l *tenantLog) prune(cutoff time.Time) {
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

var _ erp.RateLimiter = (*SlidingWindow)(nil)
