package erp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/domain/erp/acl"
	"github.com/google/uuid"
)

// encodeDomain maps raw rows into domain records and serializes them as a
// JSON array. An empty result encodes as [] rather than null.
func encodeDomain(domain erp.Domain, rows []erp.Row) ([]byte, error) {
	switch domain {
	case erp.DomainPatients:
		return encodeRows(domain, rows, acl.MapPatient)
	case erp.DomainEncounters:
		return encodeRows(domain, rows, acl.MapEncounter)
	case erp.DomainBilling:
		return encodeRows(domain, rows, acl.MapBillingEntry)
	case erp.DomainInventory:
		return encodeRows(domain, rows, acl.MapInventoryItem)
	case erp.DomainAdmissions:
		return encodeRows(domain, rows, acl.MapAdmission)
	default:
		return nil, erp.NewQueryError(fmt.Sprintf("no mapper registered for domain %q", domain), nil)
	}
}

func encodeRows[T any](domain erp.Domain, rows []erp.Row, fn func(erp.Row) (T, error)) ([]byte, error) {
	records, err := acl.MapRows(rows, fn)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, erp.NewMappingError(domain, "cannot encode records", err)
	}
	return data, nil
}

func decodeItems(payload []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// flightKey identifies identical fetches for request collapsing. Parameter
// order does not matter.
func flightKey(tenantID uuid.UUID, domain erp.Domain, params erp.Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(tenantID.String())
	b.WriteByte('|')
	b.WriteString(domain.String())
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
