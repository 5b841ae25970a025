package erp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("fetch patients: %w", NewTimeoutError("patients", 5*time.Second, context.DeadlineExceeded))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrConnection))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestError_NotConfiguredSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrNotConfigured, ErrConfiguration))
	assert.False(t, errors.Is(NewConfigurationError("ERP integration is disabled", nil), ErrNotConfigured))
	assert.True(t, errors.Is(fmt.Errorf("load: %w", ErrNotConfigured), ErrNotConfigured))
}

func TestError_Messages(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Contains(t, NewRateLimitError(tenantID, 60, time.Minute).Error(), "60 calls per 1m0s")
	assert.Contains(t, NewConnectionError(EngineMySQL, "db", 3306, errors.New("refused")).Error(), "mysql ERP at db:3306: refused")
	assert.Equal(t, "DROP", NewForbiddenKeywordError("DROP").Keyword)

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestDomain_CacheTTL(t *testing.T) {
	assert.Equal(t, 3600*time.Second, DomainPatients.CacheTTL())
	assert.Equal(t, 1800*time.Second, DomainEncounters.CacheTTL())
	assert.Equal(t, 1800*time.Second, DomainBilling.CacheTTL())
	assert.Equal(t, 3600*time.Second, DomainInventory.CacheTTL())
	assert.Equal(t, 1800*time.Second, DomainAdmissions.CacheTTL())
	assert.Equal(t, DefaultCacheTTL, Domain("surgeries").CacheTTL())

	d, err := ParseDomain(" Inventory ")
	assert.NoError(t, err)
	assert.Equal(t, DomainInventory, d)
	_, err = ParseDomain("surgeries")
	assert.Error(t, err)
}
