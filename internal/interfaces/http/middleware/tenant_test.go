package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenantRouter(cfg TenantConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), TenantWithConfig(cfg))
	handler := func(c *gin.Context) {
		id, ok := GetTenantID(c)
		c.JSON(http.StatusOK, gin.H{
			"tenant":     id.String(),
			"found":      ok,
			"ctx_tenant": logger.GetTenantID(c.Request.Context()),
		})
	}
	router.GET("/erp/patients", handler)
	router.GET("/health", handler)
	return router
}

func TestTenant_ValidHeader(t *testing.T) {
	tenantID := uuid.New()
	router := tenantRouter(DefaultTenantConfig())

	req := httptest.NewRequest(http.MethodGet, "/erp/patients", nil)
	req.Header.Set(TenantHeaderKey, tenantID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tenantID.String(), body["tenant"])
	assert.Equal(t, true, body["found"])
	assert.Equal(t, tenantID.String(), body["ctx_tenant"])
}

func TestTenant_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, dto.ErrCodeTenantRequired},
		{"not a uuid", "hospital-a", http.StatusBadRequest, dto.ErrCodeTenantInvalid},
	}

	router := tenantRouter(DefaultTenantConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/erp/patients", nil)
			req.Header.Set(RequestIDHeader, "req-9")
			if tt.header != "" {
				req.Header.Set(TenantHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-9", resp.Error.RequestID)
		})
	}
}

func TestTenant_SkipPaths(t *testing.T) {
	router := tenantRouter(DefaultTenantConfig())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenant_Optional(t *testing.T) {
	router := tenantRouter(TenantConfig{Required: false})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/erp/patients", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"found":false`)
}
