package dashboard

import (
	"strings"
	"time"
)

// Period selects the date range of a dashboard. "mes" is the last 30 days,
// anything else the last 7.
type Period string

const (
	PeriodWeek  Period = "semana"
	PeriodMonth Period = "mes"
)

// ParsePeriod normalizes a period query value.
func ParsePeriod(s string) Period {
	if strings.EqualFold(strings.TrimSpace(s), string(PeriodMonth)) {
		return PeriodMonth
	}
	return PeriodWeek
}

// Days is the number of days the period spans.
func (p Period) Days() int {
	if p == PeriodMonth {
		return 30
	}
	return 7
}

// Range returns the first and last day of the period ending on now.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -p.Days()), now
}

// ---------------------------------------------------------------------------
// Shared chart DTOs
// ---------------------------------------------------------------------------

// KPICard is one headline indicator.
type KPICard struct {
	Title       string   `json:"title"`
	Value       string   `json:"value"`
	TrendValue  *float64 `json:"trend_value,omitempty"`
	TrendLabel  string   `json:"trend_label,omitempty"`
	Description string   `json:"description,omitempty"`
	Variant     string   `json:"variant"`
}

// NamedValue is a category and its count.
type NamedValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// NamedShare is a category and its percentage of the whole.
type NamedShare struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ColoredValue is a chart slice with a fixed color.
type ColoredValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Color string `json:"color"`
}

// HourlyPoint is a count for one hour of the day.
type HourlyPoint struct {
	Hour  string `json:"hour"`
	Value int64  `json:"value"`
}

// CostCenterOccupancy is one row of the bed occupancy table.
type CostCenterOccupancy struct {
	CostCenter    string  `json:"cost_center"`
	Registered    int64   `json:"registered_beds"`
	Occupied      int64   `json:"occupied_beds"`
	Vacant        int64   `json:"vacant_beds"`
	Census        int64   `json:"census_beds"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

// ---------------------------------------------------------------------------
// General indicators
// ---------------------------------------------------------------------------

// GeneralIndicators is the landing dashboard.
type GeneralIndicators struct {
	KPIs             []KPICard     `json:"kpis"`
	EncountersByHour []HourlyPoint `json:"encounters_by_hour"`
}

// ---------------------------------------------------------------------------
// Admissions
// ---------------------------------------------------------------------------

// AdmissionsKPIs summarizes inpatient activity.
type AdmissionsKPIs struct {
	OccupancyRate    float64 `json:"occupancy_rate"`
	AverageStay      float64 `json:"average_stay"`
	BedTurnover      int64   `json:"bed_turnover"`
	Deaths           int64   `json:"deaths"`
	ERAdmissions     int64   `json:"er_admissions"`
	ActiveAdmissions int64   `json:"active_admissions"`
	RegisteredBeds   int64   `json:"registered_beds"`
}

// DailyFlow counts admissions and discharges on one day.
type DailyFlow struct {
	Date       string `json:"date"`
	Admissions int64  `json:"admissions"`
	Discharges int64  `json:"discharges"`
}

// Admissions is the inpatient dashboard.
type Admissions struct {
	KPIs                  AdmissionsKPIs        `json:"kpis"`
	AdmissionsDischarges  []DailyFlow           `json:"admissions_discharges"`
	OccupancyByCostCenter []CostCenterOccupancy `json:"occupancy_by_cost_center"`
}

// ---------------------------------------------------------------------------
// Bed occupancy
// ---------------------------------------------------------------------------

// BedCards are the operational bed counters.
type BedCards struct {
	PrivateOrInsured int64 `json:"private_or_insured"`
	SUS              int64 `json:"sus"`
	Occupied         int64 `json:"occupied"`
	Free             int64 `json:"free"`
	DailyBeds        int64 `json:"daily_beds"`
	TotalBeds        int64 `json:"total_beds"`
}

// OccupancyPoint is the occupied bed count on one day.
type OccupancyPoint struct {
	Date     string `json:"date"`
	Occupied int64  `json:"occupied"`
	Total    int64  `json:"total"`
}

// BedOccupancy is the bed management dashboard.
type BedOccupancy struct {
	Cards          BedCards              `json:"cards"`
	OccupancyDonut []ColoredValue        `json:"occupancy_donut"`
	CostCenters    []CostCenterOccupancy `json:"cost_centers"`
	ByInsurer      []NamedShare          `json:"by_insurer"`
	BySpecialty    []NamedShare          `json:"by_specialty"`
	BedDayTreemap  []NamedValue          `json:"bed_day_treemap"`
	Trend          []OccupancyPoint      `json:"trend"`
}

// ---------------------------------------------------------------------------
// Encounters
// ---------------------------------------------------------------------------

// EncountersKPIs summarizes outpatient activity.
type EncountersKPIs struct {
	Total          int64  `json:"total"`
	EncounterTypes int    `json:"encounter_types"`
	TopSpecialty   string `json:"top_specialty"`
	Insurers       int    `json:"insurers"`
}

// Encounters is the outpatient dashboard.
type Encounters struct {
	KPIs              EncountersKPIs `json:"kpis"`
	ByType            []NamedValue   `json:"by_type"`
	ByInsurerCategory []NamedValue   `json:"by_insurer_category"`
	ByAgeBucket       []NamedValue   `json:"by_age_bucket"`
	TopInsurers       []NamedValue   `json:"top_insurers"`
	TopSpecialties    []NamedValue   `json:"top_specialties"`
	EncountersByHour  []HourlyPoint  `json:"encounters_by_hour"`
}
