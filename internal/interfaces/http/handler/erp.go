package handler

import (
	"context"
	"encoding/json"
	"strings"

	apperp "github.com/erp/gateway/internal/application/erp"
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Gateway is the part of the ERP gateway service used over HTTP.
type Gateway interface {
	FetchDomain(ctx context.Context, tenantID uuid.UUID, domain erp.Domain, filters apperp.Filters, paging apperp.Paging) (*apperp.ListResult[json.RawMessage], error)
	TestConnection(ctx context.Context, tenantID uuid.UUID) apperp.HealthResult
	InvalidateCache(ctx context.Context, tenantID uuid.UUID, domain *erp.Domain) (int, error)
}

// ERPHandler serves normalized ERP records, the connection probe and cache
// invalidation.
type ERPHandler struct {
	BaseHandler
	gateway Gateway
}

func NewERPHandler(gateway Gateway) *ERPHandler {
	return &ERPHandler{gateway: gateway}
}

// listQuery is the query string of a domain list request.
type listQuery struct {
	apperp.Filters
	apperp.Paging
}

// List returns the handler for one domain's records.
//
//	GET /api/v1/erp/patients?limit=20&offset=0&start_date=2024-01-01&end_date=2024-01-31
//	GET /api/v1/erp/inventory?category=MEDICAMENTOS
func (h *ERPHandler) List(domain erp.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := h.tenant(c)
		if !ok {
			return
		}

		var q listQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			h.BadRequest(c, "invalid query parameters: "+err.Error())
			return
		}

		result, err := h.gateway.FetchDomain(c.Request.Context(), tenantID, domain, q.Filters, q.Paging)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, result)
	}
}

// Health probes the tenant's ERP. A failed probe is still a 200 with
// connected=false so dashboards can render the status.
//
//	GET /api/v1/erp/health
func (h *ERPHandler) Health(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	h.Success(c, h.gateway.TestConnection(c.Request.Context(), tenantID))
}

// InvalidateCache drops cached records for one domain, or all of them.
//
//	DELETE /api/v1/erp/cache?domain=inventory
func (h *ERPHandler) InvalidateCache(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var domain *erp.Domain
	scope := "all"
	if raw := strings.TrimSpace(c.Query("domain")); raw != "" {
		d := erp.Domain(raw)
		domain = &d
		scope = strings.ToLower(raw)
	}

	n, err := h.gateway.InvalidateCache(c.Request.Context(), tenantID, domain)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.InvalidationResult{Domain: scope, Removed: n})
}
