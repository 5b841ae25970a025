package erpdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Pool lifetime settings shared by every tenant pool.
const (
	DefaultPoolOverflow    = 2
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// Opener opens a database handle for a tenant configuration.
type Opener func(ctx context.Context, cfg erp.ConnectionConfig, opts DialectOptions) (*sql.DB, error)

// Pool is a tenant's live connection pool.
type Pool struct {
	DB          *sql.DB
	TenantID    uuid.UUID
	Engine      erp.Engine
	Database    string
	Fingerprint string
	CreatedAt   time.Time
}

// PoolStats is a point-in-time view of one tenant pool.
type PoolStats struct {
	TenantID  uuid.UUID
	Engine    erp.Engine
	CreatedAt time.Time
	sql.DBStats
}

// Registry owns at most one pool per tenant. Pools are opened lazily on first
// use and live until Dispose or DisposeAll.
type Registry struct {
	mu       sync.Mutex
	pools    map[uuid.UUID]*Pool
	inflight singleflight.Group

	open     Opener
	dialect  DialectOptions
	overflow int
	logger   *zap.Logger
	now      func() time.Time
}

// RegistryOption is a functional option for configuring the registry
type RegistryOption func(*Registry)

// WithOpener replaces the driver opener, mainly for tests.
func WithOpener(open Opener) RegistryOption {
	return func(r *Registry) {
		r.open = open
	}
}

// WithDialectOptions sets the session settings applied to every pool.
func WithDialectOptions(opts DialectOptions) RegistryOption {
	return func(r *Registry) {
		r.dialect = opts
	}
}

// WithPoolOverflow sets how many connections a pool may open beyond the
// tenant's max_connections.
func WithPoolOverflow(n int) RegistryOption {
	return func(r *Registry) {
		if n >= 0 {
			r.overflow = n
		}
	}
}

// WithRegistryLogger sets the logger for the registry
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty pool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		pools:    make(map[uuid.UUID]*Pool),
		open:     OpenInstrumented,
		dialect:  DefaultDialectOptions(),
		overflow: DefaultPoolOverflow,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenInstrumented opens a pool through otelsql so every ERP statement is traced.
func OpenInstrumented(_ context.Context, cfg erp.ConnectionConfig, opts DialectOptions) (*sql.DB, error) {
	driverName, err := DriverName(cfg.Engine)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(cfg, opts)
	if err != nil {
		return nil, err
	}
	db, err := otelsql.Open(driverName, dsn,
		otelsql.WithDBSystem(cfg.Engine.String()),
		otelsql.WithDBName(cfg.Database),
		otelsql.WithAttributes(attribute.String("erp.tenant_id", cfg.TenantID.String())),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %s", driverName, redactDSN(err.Error(), cfg.Password))
	}
	return db, nil
}

// Get returns the tenant's pool, opening it on first use. Concurrent first
// calls for one tenant share a single open; other tenants are not blocked.
//
// Liveness of pooled connections is left to database/sql, which discards
// connections the driver reports as broken (driver.ErrBadConn) and retries on
// a fresh one. Use Test for an explicit probe.
func (r *Registry) Get(ctx context.Context, cfg erp.ConnectionConfig) (*Pool, error) {
	if p := r.lookup(cfg); p != nil {
		return p, nil
	}

	v, err, _ := r.inflight.Do(cfg.TenantID.String(), func() (any, error) {
		if p := r.lookup(cfg); p != nil {
			return p, nil
		}
		return r.create(context.WithoutCancel(ctx), cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pool), nil
}

func (r *Registry) lookup(cfg erp.ConnectionConfig) *Pool {
	r.mu.Lock()
	p, ok := r.pools[cfg.TenantID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if p.Fingerprint != cfg.Fingerprint() {
		// A changed integration keeps the healthy pool until an operator disposes it.
		r.logger.Warn("ERP config changed for tenant with a live pool; dispose the pool to apply it",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("pool", p.Engine.String()+"/"+p.Database),
		)
	}
	return p
}

func (r *Registry) create(ctx context.Context, cfg erp.ConnectionConfig) (*Pool, error) {
	if !cfg.Engine.IsValid() {
		return nil, erp.NewConfigurationError(fmt.Sprintf("unsupported ERP engine %q", cfg.Engine), nil)
	}

	db, err := r.open(ctx, cfg, r.dialect)
	if err != nil {
		r.logger.Error("Failed to open ERP pool",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("engine", cfg.Engine.String()),
			zap.String("host", cfg.Host),
			zap.Error(err))
		return nil, erp.NewConnectionError(cfg.Engine, cfg.Host, cfg.Port, err)
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = erp.DefaultMaxConnections
	}
	db.SetMaxOpenConns(maxConns + r.overflow)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	p := &Pool{
		DB:          db,
		TenantID:    cfg.TenantID,
		Engine:      cfg.Engine,
		Database:    cfg.Database,
		Fingerprint: cfg.Fingerprint(),
		CreatedAt:   r.now(),
	}

	r.mu.Lock()
	r.pools[cfg.TenantID] = p
	r.mu.Unlock()

	r.logger.Info("Opened ERP pool",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("engine", cfg.Engine.String()),
		zap.String("target", cfg.String()),
		zap.Int("max_open", maxConns+r.overflow),
	)
	return p, nil
}

// Test runs the engine's trivial query on the tenant's pool within the
// configured timeout. Every failure is reported as a connection error.
func (r *Registry) Test(ctx context.Context, cfg erp.ConnectionConfig) error {
	p, err := r.Get(ctx, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var one any
	if err := p.DB.QueryRowContext(ctx, cfg.Engine.PingQuery()).Scan(&one); err != nil {
		r.logger.Warn("ERP connection test failed",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("engine", cfg.Engine.String()),
			zap.Error(err))
		return erp.NewConnectionError(cfg.Engine, cfg.Host, cfg.Port, err)
	}
	return nil
}

// Dispose closes and forgets the tenant's pool. It reports whether a pool existed.
func (r *Registry) Dispose(tenantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	p, ok := r.pools[tenantID]
	delete(r.pools, tenantID)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	r.logger.Info("Disposing ERP pool", zap.String("tenant_id", tenantID.String()))
	if err := p.DB.Close(); err != nil {
		return true, fmt.Errorf("close ERP pool for tenant %s: %w", tenantID, err)
	}
	return true, nil
}

// DisposeAll closes every pool. Close errors are joined.
func (r *Registry) DisposeAll() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[uuid.UUID]*Pool)
	r.mu.Unlock()

	var errs []error
	for id, p := range pools {
		if err := p.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ERP pool for tenant %s: %w", id, err))
		}
	}
	if len(pools) > 0 {
		r.logger.Info("Disposed all ERP pools", zap.Int("count", len(pools)))
	}
	return errors.Join(errs...)
}

// Len returns the number of live pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Stats returns a snapshot of every live pool, ordered by tenant id.
func (r *Registry) Stats() []PoolStats {
	r.mu.Lock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.Unlock()

	sort.Slice(pools, func(i, j int) bool {
		return pools[i].TenantID.String() < pools[j].TenantID.String()
	})
	out := make([]PoolStats, 0, len(pools))
	for _, p := range pools {
		out = append(out, PoolStats{
			TenantID:  p.TenantID,
			Engine:    p.Engine,
			CreatedAt: p.CreatedAt,
			DBStats:   p.DB.Stats(),
		})
	}
	return out
}
