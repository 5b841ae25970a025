// Package acl translates raw ERP rows into the gateway's domain records.
// It is the anti-corruption layer between the legacy ERP schema (Portuguese
// column names, free-form text types) and the normalized records served to
// dashboards. Mappers are pure and stateless.
package acl

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/shopspring/decimal"
)

// MovementComponent tags encounter rows that carry the daily movement summary.
const MovementComponent = "CARDS_MOVIMENTACAO"

// rowReader reads normalized fields from a row and keeps the first shape error.
type rowReader struct {
	domain erp.Domain
	row    erp.Row
	err    error
}

func newRowReader(domain erp.Domain, row erp.Row) (*rowReader, error) {
	if row == nil {
		return nil, erp.NewMappingError(domain, "row is nil", nil)
	}
	return &rowReader{domain: domain, row: row}, nil
}

func (r *rowReader) value(column string) any {
	v := r.row[column]
	if r.err == nil && !isScalar(v) {
		r.err = erp.NewMappingError(r.domain, fmt.Sprintf("column %q holds a non-scalar %T", column, v), nil)
	}
	return v
}

func (r *rowReader) str(column string, maxLen int) *string {
	return NormalizeString(r.value(column), maxLen)
}

func (r *rowReader) date(column string) *string {
	return NormalizeDate(r.value(column))
}

func (r *rowReader) dec(column string) *decimal.Decimal {
	return NormalizeDecimal(r.value(column))
}

func (r *rowReader) count(column string) int64 {
	if n := NormalizeInt(r.value(column)); n != nil {
		return *n
	}
	return 0
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, []byte, bool, time.Time, decimal.Decimal:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	}
	return false
}

// MapPatient maps a row of the patients query.
func MapPatient(row erp.Row) (erp.Patient, error) {
	r, err := newRowReader(erp.DomainPatients, row)
	if err != nil {
		return erp.Patient{}, err
	}
	p := erp.Patient{
		ERPCode:   r.str("codigo_erp", 0),
		Name:      r.str("nome", 255),
		CPF:       r.str("cpf", 14),
		BirthDate: r.date("data_nascimento"),
		Sex:       r.str("sexo", 1),
		Phone:     r.str("telefone", 20),
		Email:     r.str("email", 255),
		Address:   r.str("endereco", 255),
		City:      r.str("cidade", 100),
		State:     r.str("estado", 2),
		ZipCode:   r.str("cep", 10),
	}
	return p, r.err
}

// MapEncounter maps a row of the encounters query. Rows tagged with
// MovementComponent become movement summaries.
func MapEncounter(row erp.Row) (erp.Encounter, error) {
	r, err := newRowReader(erp.DomainEncounters, row)
	if err != nil {
		return erp.Encounter{}, err
	}

	component := r.str("componente", 0)
	if component != nil && strings.EqualFold(*component, MovementComponent) {
		e := erp.Encounter{
			Component: component,
			Movement: &erp.EncounterMovement{
				AdmissionsToday:    r.count("admissoes_hoje"),
				DischargesToday:    r.count("altas_hoje"),
				TransfersToday:     r.count("transferencias_hoje"),
				AverageStayMinutes: r.dec("tempo_medio_permanencia"),
			},
		}
		return e, r.err
	}

	number := r.str("numero_atendimento", 0)
	e := erp.Encounter{
		Component:       component,
		ERPCode:         number,
		EncounterNumber: number,
		EncounterType:   r.str("tipo_atendimento", 50),
		PatientName:     r.str("nome_paciente", 255),
		CheckIn:         r.date("hora_entrada"),
		CheckOut:        r.date("hora_saida"),
		StayMinutes:     r.dec("tempo_permanencia_minutos"),
		Provider:        r.str("prestador", 255),
		Specialty:       r.str("especialidade", 100),
		Insurer:         r.str("convenio", 100),
		Diagnosis:       r.str("diagnostico", 255),
	}
	return e, r.err
}

// MapBillingEntry maps a row of the billing query.
func MapBillingEntry(row erp.Row) (erp.BillingEntry, error) {
	r, err := newRowReader(erp.DomainBilling, row)
	if err != nil {
		return erp.BillingEntry{}, err
	}
	b := erp.BillingEntry{
		ERPCode:     r.str("codigo_erp", 0),
		PatientID:   r.str("paciente_id", 0),
		PatientName: r.str("paciente_nome", 255),
		BilledAt:    r.date("data_faturamento"),
		DueAt:       r.date("data_vencimento"),
		TotalAmount: r.dec("valor_total"),
		PaidAmount:  r.dec("valor_pago"),
		Status:      r.str("status", 50),
		Insurer:     r.str("convenio", 100),
		BillingType: r.str("tipo_faturamento", 50),
	}
	return b, r.err
}

// MapInventoryItem maps a row of the inventory query.
func MapInventoryItem(row erp.Row) (erp.InventoryItem, error) {
	r, err := newRowReader(erp.DomainInventory, row)
	if err != nil {
		return erp.InventoryItem{}, err
	}
	i := erp.InventoryItem{
		ERPCode:         r.str("codigo_erp", 0),
		ItemCode:        r.str("item_codigo", 0),
		Description:     r.str("item_descricao", 255),
		Category:        r.str("categoria", 100),
		QuantityOnHand:  r.dec("quantidade_atual"),
		QuantityMinimum: r.dec("quantidade_minima"),
		QuantityMaximum: r.dec("quantidade_maxima"),
		Unit:            r.str("unidade_medida", 20),
		UnitPrice:       r.dec("valor_unitario"),
		Location:        r.str("localizacao", 100),
		Supplier:        r.str("fornecedor", 255),
		LastReceiptAt:   r.date("data_ultima_entrada"),
		LastIssueAt:     r.date("data_ultima_saida"),
	}
	return i, r.err
}

// MapAdmission maps a row of the admissions query. Admission and discharge
// times arrive as separate short text columns.
func MapAdmission(row erp.Row) (erp.Admission, error) {
	r, err := newRowReader(erp.DomainAdmissions, row)
	if err != nil {
		return erp.Admission{}, err
	}
	a := erp.Admission{
		ERPCode:         r.str("codigo_erp", 0),
		PatientID:       r.str("paciente_id", 0),
		PatientName:     r.str("paciente_nome", 255),
		PatientCPF:      r.str("paciente_cpf", 14),
		AdmittedOn:      r.date("data_entrada"),
		AdmittedTime:    r.str("hora_entrada", 10),
		DischargedOn:    r.date("data_saida"),
		DischargedTime:  r.str("hora_saida", 10),
		BedNumber:       r.str("leito_numero", 50),
		BedType:         r.str("leito_tipo", 50),
		Specialty:       r.str("especialidade", 100),
		AttendingDoctor: r.str("medico_responsavel", 255),
		Insurer:         r.str("convenio", 100),
		AdmissionType:   r.str("tipo_internacao", 50),
		Status:          r.str("status", 50),
		TotalAmount:     r.dec("valor_total"),
	}
	return a, r.err
}

// MapRows applies fn to every row and stops at the first failure.
func MapRows[T any](rows []erp.Row, fn func(erp.Row) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		rec, err := fn(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
