package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIntegrationRepository implements erp.IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// FindActive returns the tenant's active integration of integrationType, or
// nil when there is none. The most recently updated record wins.
func (r *GormIntegrationRepository) FindActive(ctx context.Context, tenantID uuid.UUID, integrationType string) (*erp.IntegrationRecord, error) {
	var model models.IntegrationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("type = ?", integrationType).
		Where("active = ?", true).
		Order("updated_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active %s integration: %w", integrationType, err)
	}
	return model.ToDomain(), nil
}

// Save inserts or updates record by id. Saving an active record deactivates
// the tenant's other active integrations of the same type in one transaction.
func (r *GormIntegrationRepository) Save(ctx context.Context, record *erp.IntegrationRecord) error {
	if record.TenantID == uuid.Nil {
		return errors.New("integration record requires a tenant id")
	}
	if record.Type == "" {
		return errors.New("integration record requires a type")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Config == "" {
		record.Config = "{}"
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	model := models.IntegrationModelFromDomain(record)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.Active {
			err := tx.Model(&models.IntegrationModel{}).
				Where("tenant_id = ?", record.TenantID).
				Where("type = ?", record.Type).
				Where("active = ?", true).
				Where("id <> ?", record.ID).
				Updates(map[string]any{"active": false, "updated_at": now}).Error
			if err != nil {
				return fmt.Errorf("deactivate previous integrations: %w", err)
			}
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "config", "active", "updated_at"}),
		}).Create(model).Error
		if err != nil {
			return fmt.Errorf("save integration: %w", err)
		}
		return nil
	})
}

// Deactivate turns off every active integration of integrationType for the
// tenant and reports how many were changed.
func (r *GormIntegrationRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, integrationType string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("tenant_id = ?", tenantID).
		Where("type = ?", integrationType).
		Where("active = ?", true).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("deactivate %s integration: %w", integrationType, result.Error)
	}
	return result.RowsAffected, nil
}
