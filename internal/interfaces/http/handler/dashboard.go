package handler

import (
	"context"

	"github.com/erp/gateway/internal/application/dashboard"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Dashboards builds the composite dashboard payloads.
type Dashboards interface {
	GeneralIndicators(ctx context.Context, tenantID uuid.UUID) (*dashboard.GeneralIndicators, error)
	Admissions(ctx context.Context, tenantID uuid.UUID, period dashboard.Period) (*dashboard.Admissions, error)
	BedOccupancy(ctx context.Context, tenantID uuid.UUID, period dashboard.Period) (*dashboard.BedOccupancy, error)
	Encounters(ctx context.Context, tenantID uuid.UUID, period dashboard.Period) (*dashboard.Encounters, error)
}

// DashboardHandler serves the ERP-backed dashboards. Each payload is built
// whole or not at all.
type DashboardHandler struct {
	BaseHandler
	dashboards Dashboards
}

func NewDashboardHandler(dashboards Dashboards) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// General answers GET /api/v1/erp/dashboards/general
func (h *DashboardHandler) General(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	payload, err := h.dashboards.GeneralIndicators(c.Request.Context(), tenantID)
	h.write(c, payload, err)
}

// Admissions answers GET /api/v1/erp/dashboards/admissions?period=mes
func (h *DashboardHandler) Admissions(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	payload, err := h.dashboards.Admissions(c.Request.Context(), tenantID, period(c))
	h.write(c, payload, err)
}

// Beds answers GET /api/v1/erp/dashboards/beds?period=semana
func (h *DashboardHandler) Beds(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	payload, err := h.dashboards.BedOccupancy(c.Request.Context(), tenantID, period(c))
	h.write(c, payload, err)
}

// Encounters answers GET /api/v1/erp/dashboards/encounters?period=semana
func (h *DashboardHandler) Encounters(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	payload, err := h.dashboards.Encounters(c.Request.Context(), tenantID, period(c))
	h.write(c, payload, err)
}

func period(c *gin.Context) dashboard.Period {
	return dashboard.ParsePeriod(c.Query("period"))
}

// write sends either the payload or the mapped error.
func (h *DashboardHandler) write(c *gin.Context, payload any, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payload)
}
