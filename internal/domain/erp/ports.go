package erp

import (
	"context"

	"github.com/google/uuid"
)

// Row is one materialized result row keyed by lower-cased column name.
type Row map[string]any

// Params are the named parameters bound into a catalog query.
type Params map[string]string

// Named parameters accepted by catalog queries.
const (
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
	ParamCategory  = "category"
)

// QueryExecutor runs catalog queries against a tenant's ERP.
type QueryExecutor interface {
	Execute(ctx context.Context, cfg ConnectionConfig, queryID string, params Params) ([]Row, error)
}

// ConnectionTester probes a tenant's ERP with a trivial query.
type ConnectionTester interface {
	Test(ctx context.Context, cfg ConnectionConfig) error
}

// RateLimiter admits or rejects ERP calls per tenant.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID uuid.UUID) error
}

// Cache stores serialized domain fetches. Implementations are fail-open: Get
// reports a miss and Set drops the value when the backend is unavailable.
type Cache interface {
	Get(ctx context.Context, tenantID uuid.UUID, domain Domain, params Params) ([]byte, bool)
	Set(ctx context.Context, tenantID uuid.UUID, domain Domain, params Params, value []byte)
	// Invalidate removes one domain's entries, or all of the tenant's entries
	// when domain is nil, and returns how many keys were removed.
	Invalidate(ctx context.Context, tenantID uuid.UUID, domain *Domain) (int, error)
}
