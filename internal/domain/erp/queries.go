package erp

// Named query ids served by the catalog. Domain listings use the domain name
// as their id (see Domain.QueryID).
const (
	QueryGeneralIndicators    = "general_indicators"
	QueryEncountersByHour     = "encounters_by_hour"
	QueryOutpatientEncounters = "outpatient_encounters"
	QueryAdmissionIndicators  = "admission_indicators"
	QueryRegisteredBeds       = "registered_beds"
	QueryAdmissionsDischarges = "admissions_discharges"
	QueryBedOccupancy         = "bed_occupancy"
	QueryOperationalBeds      = "operational_beds"
	QueryOccupancyByInsurer   = "occupancy_by_insurer"
	QueryOccupancyBySpecialty = "occupancy_by_specialty"
	QueryOccupancyTrend       = "occupancy_trend"
)
