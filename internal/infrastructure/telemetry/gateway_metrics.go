package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/erpdb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when GatewayMetrics is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// PoolStatsSource reports the per-tenant ERP pools currently open.
type PoolStatsSource interface {
	Stats() []erpdb.PoolStats
}

// GatewayMetrics holds the gateway's instruments. It satisfies
// erpdb.QueryObserver so the query repository reports into it directly.
type GatewayMetrics struct {
	queryTotal      *Counter
	queryDuration   *Histogram
	cacheHits       *Counter
	cacheMisses     *Counter
	rateLimited     *Counter
	poolConnections *Gauge
	poolsOpen       *Gauge

	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewGatewayMetrics registers the gateway instruments on meter.
func NewGatewayMetrics(meter metric.Meter, logger *zap.Logger) (*GatewayMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &GatewayMetrics{logger: logger, stopCh: make(chan struct{})}
	var err error

	if m.queryTotal, err = NewCounter(meter, "erp_query_total",
		"ERP catalog queries executed, by outcome", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, "erp_query_duration_seconds",
		"ERP query latency in seconds", "s", ERPQueryBuckets); err != nil {
		return nil, err
	}
	if m.cacheHits, err = NewCounter(meter, "erp_cache_hit_total",
		"ERP domain reads served from cache", "{request}"); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = NewCounter(meter, "erp_cache_miss_total",
		"ERP domain reads that missed the cache", "{request}"); err != nil {
		return nil, err
	}
	if m.rateLimited, err = NewCounter(meter, "erp_rate_limited_total",
		"ERP requests rejected by the per-tenant rate limiter", "{request}"); err != nil {
		return nil, err
	}
	if m.poolConnections, err = NewGauge(meter, "erp_pool_connections",
		"Connections in a tenant ERP pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolsOpen, err = NewGauge(meter, "erp_pools_open",
		"Tenant ERP pools currently open", "{pool}"); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveQuery records one catalog query execution.
func (m *GatewayMetrics) ObserveQuery(ctx context.Context, tenantID, queryID string, engine erp.Engine, elapsed time.Duration, err error) {
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID),
		AttrQueryID.String(queryID),
		AttrEngine.String(string(engine)),
	}
	m.queryDuration.RecordDuration(ctx, elapsed, attrs...)

	status := "ok"
	if err != nil {
		status = "error"
		kind, ok := erp.KindOf(err)
		if !ok {
			kind = erp.KindQuery
		}
		attrs = append(attrs, AttrErrorKind.String(string(kind)))
	}
	m.queryTotal.Inc(ctx, append(attrs, attribute.String("status", status))...)
}

// RecordCacheHit counts a domain read served from cache.
func (m *GatewayMetrics) RecordCacheHit(ctx context.Context, tenantID string, domain erp.Domain) {
	m.cacheHits.Inc(ctx, AttrTenantID.String(tenantID), AttrDomain.String(domain.String()))
}

// RecordCacheMiss counts a domain read that went to the ERP.
func (m *GatewayMetrics) RecordCacheMiss(ctx context.Context, tenantID string, domain erp.Domain) {
	m.cacheMisses.Inc(ctx, AttrTenantID.String(tenantID), AttrDomain.String(domain.String()))
}

// RecordRateLimited counts a rejected request.
func (m *GatewayMetrics) RecordRateLimited(ctx context.Context, tenantID string) {
	m.rateLimited.Inc(ctx, AttrTenantID.String(tenantID))
}

// StartPoolStatsCollection samples source every interval until Stop is called.
func (m *GatewayMetrics) StartPoolStatsCollection(source PoolStatsSource, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.CollectPoolStats(context.Background(), source)
		for {
			select {
			case <-ticker.C:
				m.CollectPoolStats(context.Background(), source)
			case <-m.stopCh:
				return
			}
		}
	}()

	m.logger.Info("ERP pool stats collection started", zap.Duration("interval", interval))
}

// CollectPoolStats records one sample of every open pool.
func (m *GatewayMetrics) CollectPoolStats(ctx context.Context, source PoolStatsSource) {
	stats := source.Stats()
	m.poolsOpen.Record(ctx, int64(len(stats)))

	for _, s := range stats {
		base := []attribute.KeyValue{
			AttrTenantID.String(s.TenantID.String()),
			AttrEngine.String(string(s.Engine)),
		}
		m.poolConnections.Record(ctx, int64(s.Idle), append(base, AttrPoolState.String("idle"))...)
		m.poolConnections.Record(ctx, int64(s.InUse), append(base, AttrPoolState.String("in_use"))...)
		m.poolConnections.Record(ctx, int64(s.OpenConnections), append(base, AttrPoolState.String("open"))...)
	}
}

// Stop ends pool stats collection. Safe to call more than once.
func (m *GatewayMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}
