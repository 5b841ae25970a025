package erp

import (
	"fmt"
	"strings"
	"time"
)

// Domain is a category of operational data fetched from the ERP.
type Domain string

const (
	DomainPatients   Domain = "patients"
	DomainEncounters Domain = "encounters"
	DomainBilling    Domain = "billing"
	DomainInventory  Domain = "inventory"
	DomainAdmissions Domain = "admissions"
)

// DefaultCacheTTL applies to any domain without an entry in the TTL table.
const DefaultCacheTTL = 1800 * time.Second

var domainCacheTTL = map[Domain]time.Duration{
	DomainPatients:   3600 * time.Second,
	DomainEncounters: 1800 * time.Second,
	DomainBilling:    1800 * time.Second,
	DomainInventory:  3600 * time.Second,
	DomainAdmissions: 1800 * time.Second,
}

// AllDomains lists the domains served by the gateway, in display order.
func AllDomains() []Domain {
	return []Domain{DomainPatients, DomainEncounters, DomainBilling, DomainInventory, DomainAdmissions}
}

// ParseDomain resolves a domain name.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := domainCacheTTL[d]; !ok {
		return "", fmt.Errorf("unknown ERP domain %q", s)
	}
	return d, nil
}

// CacheTTL returns how long fetched records of this domain stay cached.
func (d Domain) CacheTTL() time.Duration {
	if ttl, ok := domainCacheTTL[d]; ok {
		return ttl
	}
	return DefaultCacheTTL
}

// QueryID is the catalog id of the named query listing this domain.
func (d Domain) QueryID() string {
	return string(d)
}

func (d Domain) String() string {
	return string(d)
}
