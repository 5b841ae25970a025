package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Metrics receives gateway-level counters. *telemetry.GatewayMetrics
// satisfies it.
type Metrics interface {
	RecordCacheHit(ctx context.Context, tenantID string, domain erp.Domain)
	RecordCacheMiss(ctx context.Context, tenantID string, domain erp.Domain)
	RecordRateLimited(ctx context.Context, tenantID string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCacheHit(context.Context, string, erp.Domain)  {}
func (noopMetrics) RecordCacheMiss(context.Context, string, erp.Domain) {}
func (noopMetrics) RecordRateLimited(context.Context, string)           {}

// GatewayService serves per-domain ERP reads for a tenant. A fetch resolves
// the tenant config, then consults the cache; only a miss passes the rate
// limiter and reaches the ERP.
type GatewayService struct {
	loader   *ConfigLoader
	executor erp.QueryExecutor
	tester   erp.ConnectionTester
	limiter  erp.RateLimiter
	cache    erp.Cache
	metrics  Metrics
	logger   *zap.Logger
	flights  singleflight.Group
}

// GatewayOption configures a GatewayService.
type GatewayOption func(*GatewayService)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(s *GatewayService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) GatewayOption {
	return func(s *GatewayService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewGatewayService creates a new GatewayService
func NewGatewayService(
	loader *ConfigLoader,
	executor erp.QueryExecutor,
	tester erp.ConnectionTester,
	limiter erp.RateLimiter,
	cache erp.Cache,
	opts ...GatewayOption,
) *GatewayService {
	s := &GatewayService{
		loader:   loader,
		executor: executor,
		tester:   tester,
		limiter:  limiter,
		cache:    cache,
		metrics:  noopMetrics{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Domain fetches
// ---------------------------------------------------------------------------

// FetchDomain returns one page of a domain's mapped records as raw JSON
// objects. The cached value is the full filtered result, so every page of the
// same filters shares one cache entry and Total is exact.
func (s *GatewayService) FetchDomain(
	ctx context.Context,
	tenantID uuid.UUID,
	domain erp.Domain,
	filters Filters,
	paging Paging,
) (result *ListResult[json.RawMessage], err error) {
	ctx = logger.WithTenantID(ctx, tenantID.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "GatewayService", "FetchDomain",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDomain, domain.String()),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			logger.L(ctx, s.logger).Warn("ERP domain fetch failed",
				zap.String("domain", domain.String()),
				zap.Error(err),
			)
		}
		span.End()
	}()

	domain, err = erp.ParseDomain(domain.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	page, err := paging.Normalize()
	if err != nil {
		return nil, err
	}

	params, err := filters.paramsFor(domain)
	if err != nil {
		return nil, err
	}

	cfg, err := s.loader.Require(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items, err := s.load(ctx, cfg, domain, params)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrRows, len(items))

	start, end := page.window(len(items))
	return &ListResult[json.RawMessage]{
		Items:  items[start:end],
		Total:  len(items),
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

func (s *GatewayService) load(ctx context.Context, cfg erp.ConnectionConfig, domain erp.Domain, params erp.Params) ([]json.RawMessage, error) {
	tenant := cfg.TenantID.String()
	span := trace.SpanFromContext(ctx)

	if cached, ok := s.cache.Get(ctx, cfg.TenantID, domain, params); ok {
		items, err := decodeItems(cached)
		if err == nil {
			s.metrics.RecordCacheHit(ctx, tenant, domain)
			telemetry.SetAttribute(span, telemetry.SpanAttrCacheHit, true)
			return items, nil
		}
		logger.L(ctx, s.logger).Warn("Discarding undecodable cache entry",
			zap.String("domain", domain.String()),
			zap.Error(err),
		)
	}
	s.metrics.RecordCacheMiss(ctx, tenant, domain)
	telemetry.SetAttribute(span, telemetry.SpanAttrCacheHit, false)

	// The shared fetch outlives any single waiter; the per-tenant query
	// timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(flightKey(cfg.TenantID, domain, params), func() (any, error) {
		return s.fetch(flightCtx, cfg, domain, params)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &erp.Error{Kind: erp.KindTimeout, Message: fmt.Sprintf("%s fetch exceeded the request deadline", domain), Err: ctx.Err()}
		}
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		items, err := decodeItems(res.Val.([]byte))
		if err != nil {
			return nil, erp.NewMappingError(domain, "cannot decode records", err)
		}
		return items, nil
	}
}

func (s *GatewayService) fetch(ctx context.Context, cfg erp.ConnectionConfig, domain erp.Domain, params erp.Params) ([]byte, error) {
	if err := s.limiter.Allow(ctx, cfg.TenantID); err != nil {
		if errors.Is(err, erp.ErrRateLimit) {
			s.metrics.RecordRateLimited(ctx, cfg.TenantID.String())
		}
		return nil, err
	}

	rows, err := s.executor.Execute(ctx, cfg, domain.QueryID(), params)
	if err != nil {
		return nil, err
	}

	payload, err := encodeDomain(domain, rows)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cfg.TenantID, domain, params, payload)
	return payload, nil
}

// ListPatients returns a page of patients.
func (s *GatewayService) ListPatients(ctx context.Context, tenantID uuid.UUID, filters Filters, paging Paging) (*ListResult[erp.Patient], error) {
	return listTyped[erp.Patient](ctx, s, tenantID, erp.DomainPatients, filters, paging)
}

// ListEncounters returns a page of encounters.
func (s *GatewayService) ListEncounters(ctx context.Context, tenantID uuid.UUID, filters Filters, paging Paging) (*ListResult[erp.Encounter], error) {
	return listTyped[erp.Encounter](ctx, s, tenantID, erp.DomainEncounters, filters, paging)
}

// ListBilling returns a page of billing entries.
func (s *GatewayService) ListBilling(ctx context.Context, tenantID uuid.UUID, filters Filters, paging Paging) (*ListResult[erp.BillingEntry], error) {
	return listTyped[erp.BillingEntry](ctx, s, tenantID, erp.DomainBilling, filters, paging)
}

// ListInventory returns a page of inventory items.
func (s *GatewayService) ListInventory(ctx context.Context, tenantID uuid.UUID, filters Filters, paging Paging) (*ListResult[erp.InventoryItem], error) {
	return listTyped[erp.InventoryItem](ctx, s, tenantID, erp.DomainInventory, filters, paging)
}

// ListAdmissions returns a page of admissions.
func (s *GatewayService) ListAdmissions(ctx context.Context, tenantID uuid.UUID, filters Filters, paging Paging) (*ListResult[erp.Admission], error) {
	return listTyped[erp.Admission](ctx, s, tenantID, erp.DomainAdmissions, filters, paging)
}

func listTyped[T any](ctx context.Context, s *GatewayService, tenantID uuid.UUID, domain erp.Domain, filters Filters, paging Paging) (*ListResult[T], error) {
	raw, err := s.FetchDomain(ctx, tenantID, domain, filters, paging)
	if err != nil {
		return nil, err
	}
	items := make([]T, len(raw.Items))
	for i, item := range raw.Items {
		if err := json.Unmarshal(item, &items[i]); err != nil {
			return nil, erp.NewMappingError(domain, "cannot decode record", err)
		}
	}
	return &ListResult[T]{
		Items:  items,
		Total:  raw.Total,
		Limit:  raw.Limit,
		Offset: raw.Offset,
	}, nil
}

// ---------------------------------------------------------------------------
// Administration
// ---------------------------------------------------------------------------

// TestConnection probes the tenant's ERP. Failures are reported in the
// result, never as an error.
func (s *GatewayService) TestConnection(ctx context.Context, tenantID uuid.UUID) HealthResult {
	ctx = logger.WithTenantID(ctx, tenantID.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "GatewayService", "TestConnection",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()
	log := logger.L(ctx, s.logger)

	cfg, ok, err := s.loader.Load(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("ERP health check could not load config", zap.Error(err))
		if _, ok := erp.KindOf(err); !ok {
			return HealthResult{Message: "cannot read ERP integration"}
		}
		return HealthResult{Message: err.Error()}
	}
	if !ok {
		return HealthResult{Message: erp.ErrNotConfigured.Message}
	}

	result := HealthResult{Engine: string(cfg.Engine), Database: cfg.Database}
	if err := s.tester.Test(ctx, cfg); err != nil {
		telemetry.RecordError(span, err)
		log.Warn("ERP health check failed", zap.Stringer("erp", cfg), zap.Error(err))
		result.Message = err.Error()
		return result
	}
	result.Connected = true
	result.Message = "connection successful"
	return result
}

// InvalidateCache drops the tenant's cached fetches for one domain, or for
// every domain when domain is nil.
func (s *GatewayService) InvalidateCache(ctx context.Context, tenantID uuid.UUID, domain *erp.Domain) (int, error) {
	ctx = logger.WithTenantID(ctx, tenantID.String())
	scope := "all"
	if domain != nil {
		parsed, err := erp.ParseDomain(domain.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		domain = &parsed
		scope = parsed.String()
	}

	n, err := s.cache.Invalidate(ctx, tenantID, domain)
	if err != nil {
		logger.L(ctx, s.logger).Warn("ERP cache invalidation failed", zap.String("domain", scope), zap.Error(err))
		return 0, err
	}
	logger.L(ctx, s.logger).Info("ERP cache invalidated",
		zap.String("domain", scope),
		zap.Int("keys", n),
	)
	return n, nil
}
