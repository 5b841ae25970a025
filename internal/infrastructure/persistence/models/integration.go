package models

import (
	"github.com/erp/gateway/internal/domain/erp"
)

// IntegrationModel is the persistence model for a tenant integration record.
// Config holds the JSON payload as stored, including credentials.
type IntegrationModel struct {
	TenantModel
	Name   string `gorm:"type:varchar(100);not null"`
	Type   string `gorm:"type:varchar(32);not null"`
	Config string `gorm:"type:jsonb;not null"`
	Active bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the model to an erp.IntegrationRecord.
func (m *IntegrationModel) ToDomain() *erp.IntegrationRecord {
	return &erp.IntegrationRecord{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Type:      m.Type,
		Config:    m.Config,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// IntegrationModelFromDomain builds a model from a record.
func IntegrationModelFromDomain(r *erp.IntegrationRecord) *IntegrationModel {
	m := &IntegrationModel{
		Name:   r.Name,
		Type:   r.Type,
		Config: r.Config,
		Active: r.Active,
	}
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
	return m
}
