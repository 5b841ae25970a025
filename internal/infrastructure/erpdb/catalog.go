package erpdb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
)

// ParamKind is the type a catalog parameter is coerced to before binding.
type ParamKind int

const (
	// ParamDate is an ISO date (2006-01-02). Invalid values bind as NULL.
	ParamDate ParamKind = iota
	// ParamString binds as text. Empty values bind as NULL.
	ParamString
)

// ParamSpec declares one named parameter of a query.
type ParamSpec struct {
	Name string
	Kind ParamKind
}

// NamedQuery is a pre-approved read-only statement addressed by id. SQL is
// the portable text; Dialects overrides it for engines that need their own.
type NamedQuery struct {
	ID          string
	Version     int
	Description string
	SQL         string
	Dialects    map[erp.Engine]string
	Params      []ParamSpec
}

// Render returns the statement text for engine.
func (q NamedQuery) Render(engine erp.Engine) string {
	if s, ok := q.Dialects[engine]; ok {
		return s
	}
	return q.SQL
}

// BindValues coerces caller params into driver values for every declared
// parameter. Undeclared params are rejected; declared params that were not
// supplied bind as NULL.
func (q NamedQuery) BindValues(params erp.Params) (map[string]any, error) {
	declared := make(map[string]ParamKind, len(q.Params))
	for _, p := range q.Params {
		declared[p.Name] = p.Kind
	}
	for name := range params {
		if _, ok := declared[name]; !ok {
			return nil, erp.NewQueryError(fmt.Sprintf("query %q does not accept parameter %q", q.ID, name), nil)
		}
	}

	values := make(map[string]any, len(q.Params))
	for _, p := range q.Params {
		values[p.Name] = coerceParam(p.Kind, params[p.Name])
	}
	return values, nil
}

func coerceParam(kind ParamKind, raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch kind {
	case ParamDate:
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil
		}
		return t
	default:
		return raw
	}
}

// Catalog is the fixed, versioned set of named queries.
type Catalog struct {
	version string
	queries map[string]NamedQuery
}

// NewCatalog builds a catalog. Duplicate or empty ids are rejected.
func NewCatalog(version string, queries ...NamedQuery) (*Catalog, error) {
	c := &Catalog{version: version, queries: make(map[string]NamedQuery, len(queries))}
	for _, q := range queries {
		if q.ID == "" {
			return nil, errors.New("named query without id")
		}
		if _, dup := c.queries[q.ID]; dup {
			return nil, fmt.Errorf("duplicate named query %q", q.ID)
		}
		c.queries[q.ID] = q
	}
	return c, nil
}

// MustCatalog is NewCatalog for compiled-in tables.
func MustCatalog(version string, queries ...NamedQuery) *Catalog {
	c, err := NewCatalog(version, queries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Version identifies the catalog revision.
func (c *Catalog) Version() string {
	return c.version
}

// Lookup resolves a query id.
func (c *Catalog) Lookup(id string) (NamedQuery, error) {
	q, ok := c.queries[id]
	if !ok {
		return NamedQuery{}, erp.NewQueryError(fmt.Sprintf("named query %q not found", id), nil)
	}
	return q, nil
}

// Queries returns every query ordered by id.
func (c *Catalog) Queries() []NamedQuery {
	out := make([]NamedQuery, 0, len(c.queries))
	for _, q := range c.queries {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Verify checks every template and dialect override: each must pass the
// read-only validator and reference only declared parameters. It is run at
// startup so a broken catalog never serves traffic.
func (c *Catalog) Verify() error {
	var errs []error
	for _, q := range c.Queries() {
		declared := make(map[string]bool, len(q.Params))
		for _, p := range q.Params {
			declared[p.Name] = true
		}

		texts := map[string]string{"portable": q.SQL}
		for engine, text := range q.Dialects {
			if !engine.IsValid() {
				errs = append(errs, fmt.Errorf("query %q: override for unknown engine %q", q.ID, engine))
				continue
			}
			texts[engine.String()] = text
		}
		for variant, text := range texts {
			if err := erp.ValidateReadOnly(text); err != nil {
				errs = append(errs, fmt.Errorf("query %q (%s): %w", q.ID, variant, err))
				continue
			}
			for _, name := range referencedParams(text) {
				if !declared[name] {
					errs = append(errs, fmt.Errorf("query %q (%s): undeclared parameter :%s", q.ID, variant, name))
				}
			}
		}
	}
	return errors.Join(errs...)
}
