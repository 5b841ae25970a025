package erp

import "github.com/shopspring/decimal"

// Domain records are normalized views of ERP rows. Every field is optional
// because source data is inconsistent across installations. Dates use the
// canonical layout 2006-01-02T15:04:05, or carry the source text unchanged
// when it could not be parsed.

// Patient is a person registered in the ERP.
type Patient struct {
	ERPCode   *string `json:"erp_code"`
	Name      *string `json:"name"`
	CPF       *string `json:"cpf"`
	BirthDate *string `json:"birth_date"`
	Sex       *string `json:"sex"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	ZipCode   *string `json:"zip_code"`
}

// EncounterMovement is the daily movement summary some ERPs return in place of
// encounter rows, tagged with the CARDS_MOVIMENTACAO component.
type EncounterMovement struct {
	AdmissionsToday    int64            `json:"admissions_today"`
	DischargesToday    int64            `json:"discharges_today"`
	TransfersToday     int64            `json:"transfers_today"`
	AverageStayMinutes *decimal.Decimal `json:"average_stay_minutes"`
}

// Encounter is one patient visit. When Movement is set the record is a
// movement summary and the visit fields are empty.
type Encounter struct {
	Component       *string            `json:"component,omitempty"`
	ERPCode         *string            `json:"erp_code"`
	EncounterNumber *string            `json:"encounter_number"`
	EncounterType   *string            `json:"encounter_type"`
	PatientName     *string            `json:"patient_name"`
	CheckIn         *string            `json:"check_in"`
	CheckOut        *string            `json:"check_out"`
	StayMinutes     *decimal.Decimal   `json:"stay_minutes"`
	Provider        *string            `json:"provider"`
	Specialty       *string            `json:"specialty"`
	Insurer         *string            `json:"insurer"`
	Diagnosis       *string            `json:"diagnosis"`
	Movement        *EncounterMovement `json:"movement,omitempty"`
}

// BillingEntry is an invoice or account line.
type BillingEntry struct {
	ERPCode     *string          `json:"erp_code"`
	PatientID   *string          `json:"patient_id"`
	PatientName *string          `json:"patient_name"`
	BilledAt    *string          `json:"billed_at"`
	DueAt       *string          `json:"due_at"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	PaidAmount  *decimal.Decimal `json:"paid_amount"`
	Status      *string          `json:"status"`
	Insurer     *string          `json:"insurer"`
	BillingType *string          `json:"billing_type"`
}

// InventoryItem is a stock position.
type InventoryItem struct {
	ERPCode         *string          `json:"erp_code"`
	ItemCode        *string          `json:"item_code"`
	Description     *string          `json:"description"`
	Category        *string          `json:"category"`
	QuantityOnHand  *decimal.Decimal `json:"quantity_on_hand"`
	QuantityMinimum *decimal.Decimal `json:"quantity_minimum"`
	QuantityMaximum *decimal.Decimal `json:"quantity_maximum"`
	Unit            *string          `json:"unit"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	Location        *string          `json:"location"`
	Supplier        *string          `json:"supplier"`
	LastReceiptAt   *string          `json:"last_receipt_at"`
	LastIssueAt     *string          `json:"last_issue_at"`
}

// Admission is an inpatient stay.
type Admission struct {
	ERPCode         *string          `json:"erp_code"`
	PatientID       *string          `json:"patient_id"`
	PatientName     *string          `json:"patient_name"`
	PatientCPF      *string          `json:"patient_cpf"`
	AdmittedOn      *string          `json:"admitted_on"`
	AdmittedTime    *string          `json:"admitted_time"`
	DischargedOn    *string          `json:"discharged_on"`
	DischargedTime  *string          `json:"discharged_time"`
	BedNumber       *string          `json:"bed_number"`
	BedType         *string          `json:"bed_type"`
	Specialty       *string          `json:"specialty"`
	AttendingDoctor *string          `json:"attending_doctor"`
	Insurer         *string          `json:"insurer"`
	AdmissionType   *string          `json:"admission_type"`
	Status          *string          `json:"status"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
}
