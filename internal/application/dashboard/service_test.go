package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockQueryExecutor is a mock implementation of erp.QueryExecutor
type MockQueryExecutor struct {
	mock.Mock
}

func (m *MockQueryExecutor) Execute(ctx context.Context, cfg erp.ConnectionConfig, queryID string, params erp.Params) ([]erp.Row, error) {
	args := m.Called(ctx, cfg, queryID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]erp.Row), args.Error(1)
}

type staticConfigs struct {
	cfg erp.ConnectionConfig
	err error
}

func (s staticConfigs) Require(_ context.Context, tenantID uuid.UUID) (erp.ConnectionConfig, error) {
	if s.err != nil {
		return erp.ConnectionConfig{}, s.err
	}
	cfg := s.cfg
	cfg.TenantID = tenantID
	return cfg, nil
}

type rejectingLimiter struct{}

func (rejectingLimiter) Allow(_ context.Context, tenantID uuid.UUID) error {
	return erp.NewRateLimitError(tenantID, 60, time.Minute)
}

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *MockQueryExecutor) {
	t.Helper()
	executor := new(MockQueryExecutor)
	configs := staticConfigs{cfg: erp.ConnectionConfig{Engine: erp.EnginePostgres, Database: "hosp"}}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(configs, executor, opts...), executor
}

func dates(start, end string) erp.Params {
	return erp.Params{erp.ParamStartDate: start, erp.ParamEndDate: end}
}

func TestService_GeneralIndicators(t *testing.T) {
	svc, executor := newTestService(t)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryGeneralIndicators, dates("2024-03-14", "2024-03-15")).
		Return([]erp.Row{{
			"atendimentos_hoje":    int64(120),
			"atendimentos_ontem":   int64(100),
			"uti_total_leitos":     int64(20),
			"uti_ocupados":         int64(19),
			"cirurgias_total":      int64(8),
			"cirurgias_realizadas": int64(6),
			"leitos_total":         int64(150),
			"leitos_disponiveis":   "37",
		}}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryEncountersByHour, dates("2024-03-15", "2024-03-15")).
		Return([]erp.Row{{"hora": "07", "value": int64(14)}, {"hora": "08", "value": "22"}}, nil)

	got, err := svc.GeneralIndicators(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, got.KPIs, 4)

	encounters := got.KPIs[0]
	assert.Equal(t, "120", encounters.Value)
	assert.Equal(t, "crescente", encounters.TrendLabel)
	assert.InDelta(t, 20.0, *encounters.TrendValue, 0.001)
	assert.Equal(t, "vs. ontem: 100", encounters.Description)

	icu := got.KPIs[1]
	assert.Equal(t, "95.00%", icu.Value)
	assert.Equal(t, "critico", icu.TrendLabel)
	assert.Equal(t, "danger", icu.Variant)
	assert.Equal(t, "19/20 leitos", icu.Description)

	assert.Equal(t, "6", got.KPIs[2].Value)
	assert.InDelta(t, 75.0, *got.KPIs[2].TrendValue, 0.001)
	assert.Equal(t, "37", got.KPIs[3].Value)
	assert.Equal(t, "de 150 total", got.KPIs[3].Description)

	assert.Equal(t, []HourlyPoint{{Hour: "07", Value: 14}, {Hour: "08", Value: 22}}, got.EncountersByHour)
	executor.AssertExpectations(t)
}

func TestEncountersCard_Trend(t *testing.T) {
	down := encountersCard(80, 100)
	assert.Equal(t, "decrescente", down.TrendLabel)
	assert.InDelta(t, 20.0, *down.TrendValue, 0.001)

	flat := encountersCard(5, 0)
	assert.Equal(t, "estavel", flat.TrendLabel)
	assert.Zero(t, *flat.TrendValue)
}

func TestIcuCard_Thresholds(t *testing.T) {
	assert.Equal(t, "normal", icuCard(7, 10).TrendLabel)
	assert.Equal(t, "alerta", icuCard(15, 20).TrendLabel)
	assert.Equal(t, "warning", icuCard(15, 20).Variant)
	assert.Equal(t, "0.00%", icuCard(0, 0).Value)
}

func TestService_Admissions(t *testing.T) {
	svc, executor := newTestService(t)
	month := dates("2024-02-14", "2024-03-15")
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryAdmissionIndicators, month).
		Return([]erp.Row{{
			"total_internacoes": int64(45),
			"media_permanencia": "4.567",
			"entradas_hoje":     int64(6),
			"saidas_hoje":       int64(4),
			"obitos":            int64(1),
			"internacoes_ps":    int64(3),
		}}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryRegisteredBeds, erp.Params(nil)).
		Return([]erp.Row{{"total": int64(60)}}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryAdmissionsDischarges, month).
		Return([]erp.Row{{"data": "2024-03-14", "entradas": int64(5), "saidas": int64(7)}}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryBedOccupancy, erp.Params(nil)).
		Return([]erp.Row{{
			"centro_custo":       "UTI Adulto",
			"leitos_cadastrados": int64(10),
			"leitos_ocupados":    int64(9),
			"leitos_vagos":       int64(1),
			"leitos_censo":       int64(10),
			"taxa_ocupacao":      "90.0",
		}}, nil)

	got, err := svc.Admissions(context.Background(), uuid.New(), ParsePeriod("MES"))
	require.NoError(t, err)

	assert.Equal(t, 75.0, got.KPIs.OccupancyRate)
	assert.Equal(t, 4.57, got.KPIs.AverageStay)
	assert.Equal(t, int64(10), got.KPIs.BedTurnover)
	assert.Equal(t, int64(1), got.KPIs.Deaths)
	assert.Equal(t, int64(3), got.KPIs.ERAdmissions)
	assert.Equal(t, []DailyFlow{{Date: "2024-03-14", Admissions: 5, Discharges: 7}}, got.AdmissionsDischarges)
	require.Len(t, got.OccupancyByCostCenter, 1)
	assert.Equal(t, 90.0, got.OccupancyByCostCenter[0].OccupancyRate)
	executor.AssertExpectations(t)
}

func TestService_Admissions_FailsWholeCallOnOneQuery(t *testing.T) {
	svc, executor := newTestService(t)
	boom := erp.NewConnectionError(erp.EnginePostgres, "erp.local", 5432, errors.New("reset by peer"))
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryAdmissionIndicators, mock.Anything).Return([]erp.Row{{}}, nil).Maybe()
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryRegisteredBeds, mock.Anything).Return(nil, boom)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryAdmissionsDischarges, mock.Anything).Return([]erp.Row{}, nil).Maybe()
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryBedOccupancy, mock.Anything).Return([]erp.Row{}, nil).Maybe()

	got, err := svc.Admissions(context.Background(), uuid.New(), PeriodWeek)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, erp.ErrConnection)
}

func TestService_BedOccupancy(t *testing.T) {
	svc, executor := newTestService(t)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryOperationalBeds, erp.Params(nil)).
		Return([]erp.Row{{
			"convenio_particular": int64(30),
			"sus":                 int64(50),
			"ocupado":             int64(80),
			"livre":               int64(20),
			"leitos_dia_sim":      int64(90),
			"total_leitos":        int64(100),
		}}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryBedOccupancy, erp.Params(nil)).
		Return([]erp.Row{
			{"centro_custo": "Clinica", "leitos_censo": int64(40)},
			{"centro_custo": nil, "leitos_censo": int64(3)},
		}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryOccupancyByInsurer, erp.Params(nil)).
		Return([]erp.Row{
			{"convenio": "SUS", "quantidade": int64(50)},
			{"convenio": "Unimed", "quantidade": int64(30)},
			{"convenio": "", "quantidade": int64(20)},
		}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryOccupancyBySpecialty, erp.Params(nil)).
		Return([]erp.Row{}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryOccupancyTrend, dates("2024-03-08", "2024-03-15")).
		Return([]erp.Row{{"data": "2024-03-15", "ocupacao": int64(80), "total": int64(100)}}, nil)

	got, err := svc.BedOccupancy(context.Background(), uuid.New(), ParsePeriod(""))
	require.NoError(t, err)

	assert.Equal(t, int64(80), got.Cards.Occupied)
	assert.Equal(t, []ColoredValue{
		{Name: "Ocupado", Value: 80, Color: ColorOccupied},
		{Name: "Livre", Value: 20, Color: ColorFree},
	}, got.OccupancyDonut)
	assert.Equal(t, []NamedShare{{"SUS", 50}, {"Unimed", 30}, {"Outros", 20}}, got.ByInsurer)
	assert.NotNil(t, got.BySpecialty)
	assert.Empty(t, got.BySpecialty)
	assert.Equal(t, []NamedValue{{"Clinica", 40}, {"Outros", 3}}, got.BedDayTreemap)
	assert.Equal(t, []OccupancyPoint{{Date: "2024-03-15", Occupied: 80, Total: 100}}, got.Trend)
	executor.AssertExpectations(t)
}

func TestService_Encounters(t *testing.T) {
	svc, executor := newTestService(t)
	week := dates("2024-03-08", "2024-03-15")
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryOutpatientEncounters, week).
		Return([]erp.Row{
			{"tipo": "Ambulatorial", "convenio": "SUS", "categoria_convenio": "sus", "especialidade": "Cardiologia", "data_nascimento": "1950-01-10"},
			{"tipo": "Ambulatorial", "convenio": "Unimed", "categoria_convenio": "convenio", "especialidade": "Cardiologia", "data_nascimento": time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)},
			{"tipo": "Emergencia", "convenio": "SUS", "categoria_convenio": nil, "especialidade": "Ortopedia", "data_nascimento": "15/03/1994"},
			{"tipo": "Emergencia", "convenio": nil, "categoria_convenio": "particular", "especialidade": nil, "data_nascimento": nil},
		}, nil)
	executor.On("Execute", mock.Anything, mock.Anything, erp.QueryEncountersByHour, week).
		Return([]erp.Row{{"hora": "09", "value": int64(4)}}, nil)

	got, err := svc.Encounters(context.Background(), uuid.New(), PeriodWeek)
	require.NoError(t, err)

	assert.Equal(t, EncountersKPIs{Total: 4, EncounterTypes: 2, TopSpecialty: "Cardiologia", Insurers: 2}, got.KPIs)
	assert.Equal(t, []NamedValue{{"Ambulatorial", 2}, {"Emergencia", 2}}, got.ByType)
	assert.Equal(t, []NamedValue{{"convenio", 1}, {"outros", 1}, {"particular", 1}, {"sus", 1}}, got.ByInsurerCategory)
	assert.Equal(t, []NamedValue{{"SUS", 2}, {"Unimed", 1}}, got.TopInsurers)
	assert.Equal(t, []NamedValue{{"Cardiologia", 2}, {"Ortopedia", 1}}, got.TopSpecialties)
	assert.Equal(t, []NamedValue{
		{AgeUnder18, 1},
		{Age18To29, 0},
		{Age30To39, 1},
		{Age40To49, 0},
		{Age50To59, 0},
		{Age60Plus, 1},
		{AgeUndefined, 1},
	}, got.ByAgeBucket)
	assert.Len(t, got.EncountersByHour, 1)
}

func TestService_NotConfigured(t *testing.T) {
	executor := new(MockQueryExecutor)
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewService(staticConfigs{err: erp.ErrNotConfigured}, executor, WithLogger(zap.New(core)))
	tenantID := uuid.New()

	_, err := svc.Encounters(context.Background(), tenantID, PeriodMonth)
	assert.ErrorIs(t, err, erp.ErrNotConfigured)
	executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	entries := logs.FilterMessage("Dashboard query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, tenantID.String(), entries[0].ContextMap()["tenant_id"])
}

func TestService_RateLimited(t *testing.T) {
	svc, executor := newTestService(t, WithRateLimiter(rejectingLimiter{}))

	_, err := svc.GeneralIndicators(context.Background(), uuid.New())
	assert.ErrorIs(t, err, erp.ErrRateLimit)
	executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
