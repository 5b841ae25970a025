package erp

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
)

// ErrInvalidInput marks caller mistakes such as out-of-range paging.
var ErrInvalidInput = errors.New("invalid input")

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// Filters narrow a domain fetch. Empty fields are not sent to the ERP.
type Filters struct {
	StartDate string `form:"start_date" json:"start_date,omitempty"`
	EndDate   string `form:"end_date" json:"end_date,omitempty"`
	Category  string `form:"category" json:"category,omitempty"`
}

// Params converts the filters into catalog query parameters.
func (f Filters) Params() erp.Params {
	params := erp.Params{}
	if v := strings.TrimSpace(f.StartDate); v != "" {
		params[erp.ParamStartDate] = v
	}
	if v := strings.TrimSpace(f.EndDate); v != "" {
		params[erp.ParamEndDate] = v
	}
	if v := strings.TrimSpace(f.Category); v != "" {
		params[erp.ParamCategory] = v
	}
	return params
}

// domainFilters lists the filters each domain query accepts.
var domainFilters = map[erp.Domain][]string{
	erp.DomainPatients:   {erp.ParamStartDate, erp.ParamEndDate},
	erp.DomainEncounters: {erp.ParamStartDate, erp.ParamEndDate},
	erp.DomainBilling:    {erp.ParamStartDate, erp.ParamEndDate},
	erp.DomainInventory:  {erp.ParamCategory},
	erp.DomainAdmissions: {erp.ParamStartDate, erp.ParamEndDate},
}

// paramsFor returns the filter params, rejecting a filter the domain does
// not support and dates that are not YYYY-MM-DD.
func (f Filters) paramsFor(domain erp.Domain) (erp.Params, error) {
	params := f.Params()
	for name, value := range params {
		if !slices.Contains(domainFilters[domain], name) {
			return nil, fmt.Errorf("%w: %s does not support the %s filter", ErrInvalidInput, domain, name)
		}
		if name == erp.ParamStartDate || name == erp.ParamEndDate {
			if _, err := time.Parse(time.DateOnly, value); err != nil {
				return nil, fmt.Errorf("%w: %s must be a YYYY-MM-DD date, got %q", ErrInvalidInput, name, value)
			}
		}
	}
	return params, nil
}

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// Paging selects a window of a domain result.
type Paging struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize applies the default limit and checks bounds.
func (p Paging) Normalize() (Paging, error) {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return p, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxLimit)
	}
	if p.Offset < 0 {
		return p, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	return p, nil
}

// window returns the [start, end) bounds of the page within n items.
func (p Paging) window(n int) (int, int) {
	if p.Offset >= n {
		return n, n
	}
	end := p.Offset + p.Limit
	if end > n {
		end = n
	}
	return p.Offset, end
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// ListResult is one page of a domain fetch. Total counts the whole filtered
// result, not just the page.
type ListResult[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HealthResult reports the outcome of a connection probe.
type HealthResult struct {
	Connected bool   `json:"connected"`
	Engine    string `json:"engine,omitempty"`
	Database  string `json:"database,omitempty"`
	Message   string `json:"message"`
}
