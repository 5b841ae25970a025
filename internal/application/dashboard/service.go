// Package dashboard composes the analytics dashboards from several catalog
// queries. Dashboards always read the ERP directly and never use the domain
// cache.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dateLayout = time.DateOnly

// Fixed donut colors for occupied and free beds.
const (
	ColorOccupied = "hsl(0, 72%, 50%)"
	ColorFree     = "hsl(142, 76%, 36%)"
)

// chartTop is how many categories the pie and ranking charts keep.
const chartTop = 10

// ConfigSource resolves a tenant's ERP connection, failing with
// erp.ErrNotConfigured when there is none.
type ConfigSource interface {
	Require(ctx context.Context, tenantID uuid.UUID) (erp.ConnectionConfig, error)
}

// Service builds dashboard payloads.
type Service struct {
	configs  ConfigSource
	executor erp.QueryExecutor
	limiter  erp.RateLimiter
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter makes every dashboard query pass the tenant limiter.
func WithRateLimiter(l erp.RateLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithClock overrides the clock used to compute date ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a dashboard Service.
func NewService(configs ConfigSource, executor erp.QueryExecutor, opts ...Option) *Service {
	s := &Service{
		configs:  configs,
		executor: executor,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// query is one catalog query of a dashboard and where its rows go.
type query struct {
	id     string
	params erp.Params
	rows   *[]erp.Row
}

// run resolves the tenant config and executes every query concurrently. The
// first failure cancels the rest and is returned.
func (s *Service) run(ctx context.Context, tenantID uuid.UUID, name string, queries ...query) (err error) {
	ctx = logger.WithTenantID(ctx, tenantID.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "DashboardService", name,
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			logger.L(ctx, s.logger).Warn("Dashboard query failed",
				zap.String("dashboard", name),
				zap.Error(err),
			)
		}
		span.End()
	}()

	cfg, err := s.configs.Require(ctx, tenantID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Allow(gctx, tenantID); err != nil {
					return err
				}
			}
			rows, err := s.executor.Execute(gctx, cfg, q.id, q.params)
			if err != nil {
				return err
			}
			*q.rows = rows
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) dateRange(days int) erp.Params {
	end := s.now()
	return erp.Params{
		erp.ParamStartDate: end.AddDate(0, 0, -days).Format(dateLayout),
		erp.ParamEndDate:   end.Format(dateLayout),
	}
}

func (s *Service) periodRange(p Period) erp.Params {
	start, end := p.Range(s.now())
	return erp.Params{
		erp.ParamStartDate: start.Format(dateLayout),
		erp.ParamEndDate:   end.Format(dateLayout),
	}
}

// ---------------------------------------------------------------------------
// General indicators
// ---------------------------------------------------------------------------

// GeneralIndicators builds the four headline cards for today against
// yesterday, plus today's encounters per hour.
func (s *Service) GeneralIndicators(ctx context.Context, tenantID uuid.UUID) (*GeneralIndicators, error) {
	var indicators, hourly []erp.Row
	today := s.dateRange(0)
	err := s.run(ctx, tenantID, "GeneralIndicators",
		query{id: erp.QueryGeneralIndicators, params: s.dateRange(1), rows: &indicators},
		query{id: erp.QueryEncountersByHour, params: today, rows: &hourly},
	)
	if err != nil {
		return nil, err
	}

	row := firstRow(indicators)
	return &GeneralIndicators{
		KPIs: []KPICard{
			encountersCard(rowInt(row, "atendimentos_hoje"), rowInt(row, "atendimentos_ontem")),
			icuCard(rowInt(row, "uti_ocupados"), rowInt(row, "uti_total_leitos")),
			surgeriesCard(rowInt(row, "cirurgias_realizadas"), rowInt(row, "cirurgias_total")),
			{
				Title:       "Leitos Disponíveis",
				Value:       fmt.Sprint(rowInt(row, "leitos_disponiveis")),
				Description: fmt.Sprintf("de %d total", rowInt(row, "leitos_total")),
				Variant:     "default",
			},
		},
		EncountersByHour: hourlySeries(hourly),
	}, nil
}

func encountersCard(today, yesterday int64) KPICard {
	var change float64
	if yesterday > 0 {
		change = PercentOfTotal(today-yesterday, yesterday).InexactFloat64()
	}
	label := "estavel"
	switch {
	case change > 0:
		label = "crescente"
	case change < 0:
		label = "decrescente"
		change = -change
	}
	return KPICard{
		Title:       "Atendimentos Hoje",
		Value:       fmt.Sprint(today),
		TrendValue:  &change,
		TrendLabel:  label,
		Description: fmt.Sprintf("vs. ontem: %d", yesterday),
		Variant:     "default",
	}
}

// ICU occupancy thresholds in percent.
const (
	icuAlert    = 75
	icuCritical = 90
)

func icuCard(occupied, total int64) KPICard {
	rate := PercentOfTotal(occupied, total)
	status, variant := "normal", "success"
	switch {
	case rate.GreaterThanOrEqual(decimalOf(icuCritical)):
		status, variant = "critico", "danger"
	case rate.GreaterThanOrEqual(decimalOf(icuAlert)):
		status, variant = "alerta", "warning"
	}
	value := rate.InexactFloat64()
	return KPICard{
		Title:       "Taxa Ocupação UTI",
		Value:       rate.StringFixed(2) + "%",
		TrendValue:  &value,
		TrendLabel:  status,
		Description: fmt.Sprintf("%d/%d leitos", occupied, total),
		Variant:     variant,
	}
}

func surgeriesCard(done, total int64) KPICard {
	rate := PercentOfTotal(done, total).InexactFloat64()
	return KPICard{
		Title:       "Cirurgias Realizadas",
		Value:       fmt.Sprint(done),
		TrendValue:  &rate,
		TrendLabel:  "realizadas",
		Description: fmt.Sprintf("Total: %d", total),
		Variant:     "default",
	}
}

func hourlySeries(rows []erp.Row) []HourlyPoint {
	out := make([]HourlyPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, HourlyPoint{Hour: rowString(row, "hora"), Value: rowInt(row, "value")})
	}
	return out
}

// ---------------------------------------------------------------------------
// Admissions
// ---------------------------------------------------------------------------

// Admissions builds the inpatient dashboard for the period.
func (s *Service) Admissions(ctx context.Context, tenantID uuid.UUID, period Period) (*Admissions, error) {
	var indicators, beds, flow, occupancy []erp.Row
	rng := s.periodRange(period)
	err := s.run(ctx, tenantID, "Admissions",
		query{id: erp.QueryAdmissionIndicators, params: rng, rows: &indicators},
		query{id: erp.QueryRegisteredBeds, rows: &beds},
		query{id: erp.QueryAdmissionsDischarges, params: rng, rows: &flow},
		query{id: erp.QueryBedOccupancy, rows: &occupancy},
	)
	if err != nil {
		return nil, err
	}

	row := firstRow(indicators)
	active := rowInt(row, "total_internacoes")
	registered := rowInt(firstRow(beds), "total")

	flows := make([]DailyFlow, 0, len(flow))
	for _, r := range flow {
		flows = append(flows, DailyFlow{
			Date:       rowString(r, "data"),
			Admissions: rowInt(r, "entradas"),
			Discharges: rowInt(r, "saidas"),
		})
	}

	return &Admissions{
		KPIs: AdmissionsKPIs{
			OccupancyRate:    PercentOfTotal(active, registered).InexactFloat64(),
			AverageStay:      rowDecimal(row, "media_permanencia").Round(2).InexactFloat64(),
			BedTurnover:      rowInt(row, "entradas_hoje") + rowInt(row, "saidas_hoje"),
			Deaths:           rowInt(row, "obitos"),
			ERAdmissions:     rowInt(row, "internacoes_ps"),
			ActiveAdmissions: active,
			RegisteredBeds:   registered,
		},
		AdmissionsDischarges:  flows,
		OccupancyByCostCenter: costCenters(occupancy),
	}, nil
}

func costCenters(rows []erp.Row) []CostCenterOccupancy {
	out := make([]CostCenterOccupancy, 0, len(rows))
	for _, r := range rows {
		out = append(out, CostCenterOccupancy{
			CostCenter:    rowString(r, "centro_custo"),
			Registered:    rowInt(r, "leitos_cadastrados"),
			Occupied:      rowInt(r, "leitos_ocupados"),
			Vacant:        rowInt(r, "leitos_vagos"),
			Census:        rowInt(r, "leitos_censo"),
			OccupancyRate: rowDecimal(r, "taxa_ocupacao").Round(2).InexactFloat64(),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Bed occupancy
// ---------------------------------------------------------------------------

// BedOccupancy builds the bed management dashboard. Only the trend series
// depends on the period.
func (s *Service) BedOccupancy(ctx context.Context, tenantID uuid.UUID, period Period) (*BedOccupancy, error) {
	var cards, occupancy, insurers, specialties, trend []erp.Row
	err := s.run(ctx, tenantID, "BedOccupancy",
		query{id: erp.QueryOperationalBeds, rows: &cards},
		query{id: erp.QueryBedOccupancy, rows: &occupancy},
		query{id: erp.QueryOccupancyByInsurer, rows: &insurers},
		query{id: erp.QueryOccupancyBySpecialty, rows: &specialties},
		query{id: erp.QueryOccupancyTrend, params: s.periodRange(period), rows: &trend},
	)
	if err != nil {
		return nil, err
	}

	row := firstRow(cards)
	bedCards := BedCards{
		PrivateOrInsured: rowInt(row, "convenio_particular"),
		SUS:              rowInt(row, "sus"),
		Occupied:         rowInt(row, "ocupado"),
		Free:             rowInt(row, "livre"),
		DailyBeds:        rowInt(row, "leitos_dia_sim"),
		TotalBeds:        rowInt(row, "total_leitos"),
	}

	treemap := make([]NamedValue, 0, len(occupancy))
	for _, r := range occupancy {
		name := rowString(r, "centro_custo")
		if name == "" {
			name = "Outros"
		}
		treemap = append(treemap, NamedValue{Name: name, Value: rowInt(r, "leitos_censo")})
	}

	points := make([]OccupancyPoint, 0, len(trend))
	for _, r := range trend {
		points = append(points, OccupancyPoint{
			Date:     rowString(r, "data"),
			Occupied: rowInt(r, "ocupacao"),
			Total:    rowInt(r, "total"),
		})
	}

	return &BedOccupancy{
		Cards: bedCards,
		OccupancyDonut: []ColoredValue{
			{Name: "Ocupado", Value: bedCards.Occupied, Color: ColorOccupied},
			{Name: "Livre", Value: bedCards.Free, Color: ColorFree},
		},
		CostCenters:   costCenters(occupancy),
		ByInsurer:     shares(namedValues(insurers, "convenio", "quantidade", "Outros"), chartTop),
		BySpecialty:   shares(namedValues(specialties, "especialidade", "quantidade", "Outros"), chartTop),
		BedDayTreemap: treemap,
		Trend:         points,
	}, nil
}

// ---------------------------------------------------------------------------
// Encounters
// ---------------------------------------------------------------------------

// Encounters builds the outpatient dashboard for the period.
func (s *Service) Encounters(ctx context.Context, tenantID uuid.UUID, period Period) (*Encounters, error) {
	var encounters, hourly []erp.Row
	rng := s.periodRange(period)
	err := s.run(ctx, tenantID, "Encounters",
		query{id: erp.QueryOutpatientEncounters, params: rng, rows: &encounters},
		query{id: erp.QueryEncountersByHour, params: rng, rows: &hourly},
	)
	if err != nil {
		return nil, err
	}

	now := s.now()
	byType := CountBy(encounters, column("tipo", "Outros"))
	insurers := CountBy(encounters, column("convenio", ""))
	specialties := CountBy(encounters, column("especialidade", ""))

	topSpecialty := "N/A"
	if len(specialties) > 0 {
		topSpecialty = specialties[0].Name
	}

	return &Encounters{
		KPIs: EncountersKPIs{
			Total:          int64(len(encounters)),
			EncounterTypes: len(byType),
			TopSpecialty:   topSpecialty,
			Insurers:       len(insurers),
		},
		ByType:            byType,
		ByInsurerCategory: CountBy(encounters, column("categoria_convenio", "outros")),
		ByAgeBucket:       ageDistribution(encounters, now),
		TopInsurers:       TopN(insurers, chartTop),
		TopSpecialties:    TopN(specialties, chartTop),
		EncountersByHour:  hourlySeries(hourly),
	}, nil
}

// ageDistribution counts encounters per age bucket, in bucket order and
// including empty buckets.
func ageDistribution(rows []erp.Row, now time.Time) []NamedValue {
	counts := make(map[string]int64, len(AgeBuckets))
	for _, row := range rows {
		born := normalizedDate(row, "data_nascimento")
		counts[AgeBucket(AgeAt(born, now))]++
	}
	out := make([]NamedValue, 0, len(AgeBuckets))
	for _, bucket := range AgeBuckets {
		out = append(out, NamedValue{Name: bucket, Value: counts[bucket]})
	}
	return out
}
