package erpdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"go.uber.org/zap"
)

// rawQueryID labels operator statements in logs and metrics.
const rawQueryID = "raw"

// QueryObserver receives the outcome of every ERP statement.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, tenantID, queryID string, engine erp.Engine, elapsed time.Duration, err error)
}

// QueryRepository executes catalog statements against tenant ERPs. Every
// statement passes the read-only validator before it reaches a pool.
type QueryRepository struct {
	registry *Registry
	catalog  *Catalog
	observer QueryObserver
	logger   *zap.Logger
}

// QueryRepositoryOption is a functional option for configuring the repository
type QueryRepositoryOption func(*QueryRepository)

// WithQueryObserver records statement durations and outcomes.
func WithQueryObserver(o QueryObserver) QueryRepositoryOption {
	return func(r *QueryRepository) {
		r.observer = o
	}
}

// WithRepositoryLogger sets the logger for the repository
func WithRepositoryLogger(logger *zap.Logger) QueryRepositoryOption {
	return func(r *QueryRepository) {
		r.logger = logger
	}
}

// NewQueryRepository creates a repository over registry and catalog.
func NewQueryRepository(registry *Registry, catalog *Catalog, opts ...QueryRepositoryOption) *QueryRepository {
	r := &QueryRepository{
		registry: registry,
		catalog:  catalog,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewVerifiedQueryRepository verifies catalog before building the
// repository, so a broken template fails at startup instead of per request.
func NewVerifiedQueryRepository(registry *Registry, catalog *Catalog, opts ...QueryRepositoryOption) (*QueryRepository, error) {
	if err := catalog.Verify(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", catalog.Version(), err)
	}
	return NewQueryRepository(registry, catalog, opts...), nil
}

// Catalog returns the catalog the repository resolves ids against.
func (r *QueryRepository) Catalog() *Catalog {
	return r.catalog
}

// Execute runs the named query for the tenant and returns every row.
func (r *QueryRepository) Execute(ctx context.Context, cfg erp.ConnectionConfig, queryID string, params erp.Params) ([]erp.Row, error) {
	q, err := r.catalog.Lookup(queryID)
	if err != nil {
		return nil, err
	}
	values, err := q.BindValues(params)
	if err != nil {
		return nil, err
	}
	text := q.Render(cfg.Engine)
	if err := erp.ValidateReadOnly(text); err != nil {
		return nil, err
	}
	return r.run(ctx, cfg, queryID, text, values)
}

// ExecuteRaw runs an operator-supplied statement. It is validated like any
// catalog query and always logged.
func (r *QueryRepository) ExecuteRaw(ctx context.Context, cfg erp.ConnectionConfig, query string, named map[string]any) ([]erp.Row, error) {
	if err := erp.ValidateReadOnly(query); err != nil {
		r.logger.Warn("Rejected raw ERP query",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.Error(err))
		return nil, err
	}
	r.logger.Warn("Executing raw ERP query",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("engine", cfg.Engine.String()))
	return r.run(ctx, cfg, rawQueryID, query, named)
}

func (r *QueryRepository) run(ctx context.Context, cfg erp.ConnectionConfig, queryID, text string, named map[string]any) (rows []erp.Row, err error) {
	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ObserveQuery(ctx, cfg.TenantID.String(), queryID, cfg.Engine, time.Since(start), err)
		}
		if err != nil {
			r.logger.Error("ERP query failed",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.String("query_id", queryID),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
	}()

	stmt, args, err := Bind(cfg.Engine, text, named)
	if err != nil {
		return nil, erp.NewQueryError(fmt.Sprintf("cannot bind query %q", queryID), err)
	}

	pool, err := r.registry.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	r.logger.Debug("Executing ERP query",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("query_id", queryID))

	result, err := pool.DB.QueryContext(qctx, stmt, args...)
	if err != nil {
		return nil, classify(ctx, qctx, cfg, queryID, err)
	}
	defer result.Close()

	rows, err = materialize(result)
	if err != nil {
		return nil, classify(ctx, qctx, cfg, queryID, err)
	}
	return rows, nil
}

// materialize reads every row into a map keyed by lower-cased column name.
func materialize(result *sql.Rows) ([]erp.Row, error) {
	cols, err := result.Columns()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = strings.ToLower(c)
	}

	out := make([]erp.Row, 0)
	for result.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := result.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(erp.Row, len(cols))
		for i, k := range keys {
			row[k] = values[i]
		}
		out = append(out, row)
	}
	return out, result.Err()
}

// classify maps a driver failure onto the gateway taxonomy. Only our own
// deadline is a timeout; a cancelled caller surfaces as a query error that
// still unwraps to context.Canceled.
func classify(parent, qctx context.Context, cfg erp.ConnectionConfig, queryID string, err error) error {
	var gw *erp.Error
	if errors.As(err, &gw) {
		return err
	}
	if parent.Err() == nil && errors.Is(qctx.Err(), context.DeadlineExceeded) {
		return erp.NewTimeoutError(queryID, cfg.Timeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, driver.ErrBadConn) {
		return erp.NewConnectionError(cfg.Engine, cfg.Host, cfg.Port, err)
	}
	return erp.NewQueryError(fmt.Sprintf("query %q failed", queryID), err)
}
