// Package erp orchestrates tenant ERP reads: configuration lookup, caching,
// rate limiting, catalog queries and row mapping.
package erp

import (
	"context"
	"fmt"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigLoader resolves a tenant's ERP connection settings from its stored
// integration record. Settings are read on every use so edits apply without
// a restart.
type ConfigLoader struct {
	repo   erp.IntegrationRepository
	logger *zap.Logger
}

// NewConfigLoader creates a ConfigLoader. A nil logger disables logging.
func NewConfigLoader(repo erp.IntegrationRepository, log *zap.Logger) *ConfigLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigLoader{repo: repo, logger: log}
}

// Load returns the tenant's validated connection config. A tenant with no
// active ERP integration yields ok=false and no error. A stored payload that
// is malformed, incomplete or disabled is a ConfigurationError.
func (l *ConfigLoader) Load(ctx context.Context, tenantID uuid.UUID) (erp.ConnectionConfig, bool, error) {
	record, err := l.repo.FindActive(ctx, tenantID, erp.IntegrationTypeERP)
	if err != nil {
		return erp.ConnectionConfig{}, false, fmt.Errorf("read ERP integration for tenant %s: %w", tenantID, err)
	}
	if record == nil || !record.Active {
		return erp.ConnectionConfig{}, false, nil
	}

	cfg, err := erp.ParseConnectionConfig(tenantID, []byte(record.Config))
	if err != nil {
		logger.L(ctx, l.logger).Warn("Invalid ERP integration config",
			zap.String("integration_id", record.ID.String()),
			zap.Error(err),
		)
		return erp.ConnectionConfig{}, false, fmt.Errorf("integration %s: %w", record.ID, err)
	}
	return cfg, true, nil
}

// Require is Load with the not-configured case turned into ErrNotConfigured.
func (l *ConfigLoader) Require(ctx context.Context, tenantID uuid.UUID) (erp.ConnectionConfig, error) {
	cfg, ok, err := l.Load(ctx, tenantID)
	if err != nil {
		return erp.ConnectionConfig{}, err
	}
	if !ok {
		return erp.ConnectionConfig{}, erp.ErrNotConfigured
	}
	return cfg, nil
}
