package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/gateway/internal/application/dashboard"
	apperp "github.com/erp/gateway/internal/application/erp"
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/interfaces/http/handler"
	"github.com/erp/gateway/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	routes := NewRouter(engine).Register(group).Setup()
	assert.Equal(t, []Route{{Method: http.MethodGet, Path: "/api/v1/test/ping"}}, routes)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("lists paths including subgroups", func(t *testing.T) {
		g := NewDomainGroup("/erp")
		g.GET("/health", func(*gin.Context) {})
		g.Group("/dashboards").GET("/beds", func(*gin.Context) {})
		assert.Equal(t, []Route{
			{Method: http.MethodGet, Path: "/erp/health"},
			{Method: http.MethodGet, Path: "/erp/dashboards/beds"},
		}, g.Paths())
	})

	t.Run("registers DELETE route", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/test")
		g.DELETE("/items", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/test/items", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("applies middleware to subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("/test").Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		g.Group("/sub").GET("/leaf", func(c *gin.Context) {
			c.String(http.StatusOK, "leaf")
		})
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/sub/leaf", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "test", w.Header().Get("X-Group"))
	})
}

// stubGateway answers every call with an empty success.
type stubGateway struct{}

func (stubGateway) FetchDomain(_ context.Context, _ uuid.UUID, domain erp.Domain, _ apperp.Filters, paging apperp.Paging) (*apperp.ListResult[json.RawMessage], error) {
	return &apperp.ListResult[json.RawMessage]{Items: []json.RawMessage{}, Limit: paging.Limit}, nil
}

func (stubGateway) TestConnection(context.Context, uuid.UUID) apperp.HealthResult {
	return apperp.HealthResult{Connected: true, Message: "connection successful"}
}

func (stubGateway) InvalidateCache(context.Context, uuid.UUID, *erp.Domain) (int, error) {
	return 0, nil
}

type stubDashboards struct{}

func (stubDashboards) GeneralIndicators(context.Context, uuid.UUID) (*dashboard.GeneralIndicators, error) {
	return &dashboard.GeneralIndicators{}, nil
}

func (stubDashboards) Admissions(context.Context, uuid.UUID, dashboard.Period) (*dashboard.Admissions, error) {
	return &dashboard.Admissions{}, nil
}

func (stubDashboards) BedOccupancy(context.Context, uuid.UUID, dashboard.Period) (*dashboard.BedOccupancy, error) {
	return &dashboard.BedOccupancy{}, nil
}

func (stubDashboards) Encounters(context.Context, uuid.UUID, dashboard.Period) (*dashboard.Encounters, error) {
	return &dashboard.Encounters{}, nil
}

func TestERPRoutes(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Tenant())
	mounted := NewRouter(engine).
		Register(ERPRoutes(handler.NewERPHandler(stubGateway{}), handler.NewDashboardHandler(stubDashboards{}))).
		Setup()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/erp/patients"},
		{http.MethodGet, "/api/v1/erp/encounters"},
		{http.MethodGet, "/api/v1/erp/billing"},
		{http.MethodGet, "/api/v1/erp/inventory"},
		{http.MethodGet, "/api/v1/erp/admissions"},
		{http.MethodGet, "/api/v1/erp/health"},
		{http.MethodDelete, "/api/v1/erp/cache"},
		{http.MethodGet, "/api/v1/erp/dashboards/general"},
		{http.MethodGet, "/api/v1/erp/dashboards/admissions"},
		{http.MethodGet, "/api/v1/erp/dashboards/beds"},
		{http.MethodGet, "/api/v1/erp/dashboards/encounters"},
	}

	assert.Len(t, mounted, len(routes))

	tenantID := uuid.NewString()
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set(middleware.TenantHeaderKey, tenantID)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"success":true`)
		})
	}

	t.Run("unknown domain is not routed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/erp/pharmacy", nil)
		req.Header.Set(middleware.TenantHeaderKey, tenantID)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
