package erpdb

import (
	"testing"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Verifies(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Verify())
	assert.Equal(t, CatalogVersion, c.Version())
}

func TestDefaultCatalog_CoversDomainsAndDashboards(t *testing.T) {
	c := DefaultCatalog()

	for _, d := range erp.AllDomains() {
		_, err := c.Lookup(d.QueryID())
		assert.NoError(t, err, d)
	}
	for _, id := range []string{
		erp.QueryGeneralIndicators,
		erp.QueryEncountersByHour,
		erp.QueryOutpatientEncounters,
		erp.QueryAdmissionIndicators,
		erp.QueryRegisteredBeds,
		erp.QueryAdmissionsDischarges,
		erp.QueryBedOccupancy,
		erp.QueryOperationalBeds,
		erp.QueryOccupancyByInsurer,
		erp.QueryOccupancyBySpecialty,
		erp.QueryOccupancyTrend,
	} {
		_, err := c.Lookup(id)
		assert.NoError(t, err, id)
	}
	assert.Len(t, c.Queries(), len(erp.AllDomains())+11)
}

func TestCatalog_LookupMissing(t *testing.T) {
	_, err := DefaultCatalog().Lookup("drop_everything")
	require.Error(t, err)
	assert.ErrorIs(t, err, erp.ErrQuery)
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	q := NamedQuery{ID: "a", SQL: "SELECT 1"}
	_, err := NewCatalog("t", q, q)
	assert.Error(t, err)

	_, err = NewCatalog("t", NamedQuery{SQL: "SELECT 1"})
	assert.Error(t, err)
}

func TestCatalog_VerifyRejectsBadTemplates(t *testing.T) {
	c := MustCatalog("t",
		NamedQuery{ID: "writes", SQL: "DELETE FROM cadpac"},
		NamedQuery{ID: "undeclared", SQL: "SELECT * FROM t WHERE a = :who"},
		NamedQuery{
			ID:       "bad_override",
			SQL:      "SELECT 1",
			Dialects: map[erp.Engine]string{erp.EngineOracle: "SELECT 1 FROM DUAL; DROP TABLE x"},
		},
	)

	err := c.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"writes"`)
	assert.Contains(t, err.Error(), ":who")
	assert.Contains(t, err.Error(), `"bad_override" (oracle)`)
}

func TestNewVerifiedQueryRepository(t *testing.T) {
	broken := MustCatalog("broken", NamedQuery{ID: "writes", SQL: "UPDATE cadpac SET nomepac = 'x'"})
	repo, err := NewVerifiedQueryRepository(NewRegistry(), broken)
	require.Error(t, err)
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, erp.ErrQuery)
	assert.Contains(t, err.Error(), "catalog broken")

	catalog := DefaultCatalog()
	repo, err = NewVerifiedQueryRepository(NewRegistry(), catalog)
	require.NoError(t, err)
	assert.Same(t, catalog, repo.Catalog())
}

func TestNamedQuery_Render(t *testing.T) {
	q := NamedQuery{
		SQL:      "SELECT 1",
		Dialects: map[erp.Engine]string{erp.EngineOracle: "SELECT 1 FROM DUAL"},
	}
	assert.Equal(t, "SELECT 1", q.Render(erp.EnginePostgres))
	assert.Equal(t, "SELECT 1 FROM DUAL", q.Render(erp.EngineOracle))
}

func TestNamedQuery_BindValues(t *testing.T) {
	q := NamedQuery{
		ID: "q",
		Params: []ParamSpec{
			{Name: erp.ParamStartDate, Kind: ParamDate},
			{Name: erp.ParamEndDate, Kind: ParamDate},
			{Name: erp.ParamCategory, Kind: ParamString},
		},
	}

	t.Run("coerces values", func(t *testing.T) {
		values, err := q.BindValues(erp.Params{
			erp.ParamStartDate: "2024-01-15",
			erp.ParamEndDate:   "15/01/2024",
			erp.ParamCategory:  " MEDICAMENTOS ",
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), values[erp.ParamStartDate])
		assert.Nil(t, values[erp.ParamEndDate], "invalid dates bind as NULL")
		assert.Equal(t, "MEDICAMENTOS", values[erp.ParamCategory])
	})

	t.Run("absent params bind as NULL", func(t *testing.T) {
		values, err := q.BindValues(nil)
		require.NoError(t, err)
		assert.Len(t, values, 3)
		for _, v := range values {
			assert.Nil(t, v)
		}
	})

	t.Run("rejects undeclared params", func(t *testing.T) {
		_, err := q.BindValues(erp.Params{"tenant": "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, erp.ErrQuery)
	})
}
