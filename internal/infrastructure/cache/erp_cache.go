package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
)

const erpKeyPrefix = "erp:"

// erpKey builds erp:{tenant}:{domain}:{hash}. The hash segment is always
// present so a domain pattern matches every entry of that domain.
func erpKey(tenantID uuid.UUID, domain erp.Domain, params erp.Params) string {
	return fmt.Sprintf("%s%s:%s:%s", erpKeyPrefix, tenantID, domain, paramsHash(params))
}

// erpPattern matches one domain's entries, or all of the tenant's when domain is nil.
func erpPattern(tenantID uuid.UUID, domain *erp.Domain) string {
	if domain == nil {
		return fmt.Sprintf("%s%s:*", erpKeyPrefix, tenantID)
	}
	return fmt.Sprintf("%s%s:%s:*", erpKeyPrefix, tenantID, *domain)
}

// paramsHash is the first 16 hex digits of xxhash over the sorted
// parameter pairs. Empty values are dropped so an absent filter and a
// blank one share an entry.
func paramsHash(params erp.Params) string {
	pairs := make([][2]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		pairs = append(pairs, [2]string{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	// [][2]string always marshals
	raw, _ := json.Marshal(pairs)
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}
