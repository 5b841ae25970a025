package erp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IntegrationTypeERP is the integration type the gateway reads.
const IntegrationTypeERP = "erp"

// IntegrationRecord is a tenant's stored integration, as kept by the platform.
// Config holds the raw JSON payload; parse it with ParseConnectionConfig.
type IntegrationRecord struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Type      string
	Config    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntegrationRepository reads integration records from the platform store.
type IntegrationRepository interface {
	// FindActive returns the tenant's active integration of the given type,
	// or nil without error when there is none.
	FindActive(ctx context.Context, tenantID uuid.UUID, integrationType string) (*IntegrationRecord, error)
}
