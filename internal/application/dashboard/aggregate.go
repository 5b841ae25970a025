package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/erp/gateway/internal/domain/erp/acl"
	"github.com/shopspring/decimal"
)

// Age buckets in display order.
const (
	AgeUnder18   = "0-17"
	Age18To29    = "18-29"
	Age30To39    = "30-39"
	Age40To49    = "40-49"
	Age50To59    = "50-59"
	Age60Plus    = "60+"
	AgeUndefined = "Indefinido"
)

// AgeBuckets lists every bucket AgeBucket can return.
var AgeBuckets = []string{AgeUnder18, Age18To29, Age30To39, Age40To49, Age50To59, Age60Plus, AgeUndefined}

// AgeBucket places an age in years into its bucket. A missing or negative
// age is undefined.
func AgeBucket(age *int) string {
	switch {
	case age == nil || *age < 0:
		return AgeUndefined
	case *age < 18:
		return AgeUnder18
	case *age < 30:
		return Age18To29
	case *age < 40:
		return Age30To39
	case *age < 50:
		return Age40To49
	case *age < 60:
		return Age50To59
	default:
		return Age60Plus
	}
}

// AgeAt returns the age in completed years on day now for a normalized birth
// date, or nil when the date is absent or unparsable.
func AgeAt(birthDate *string, now time.Time) *int {
	if birthDate == nil {
		return nil
	}
	born, err := time.Parse(acl.CanonicalDateLayout, *birthDate)
	if err != nil {
		return nil
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return &age
}

// CountBy counts items per key, skipping items whose key is absent. The
// result is ordered by count descending, then name.
func CountBy[T any](items []T, key func(T) (string, bool)) []NamedValue {
	counts := make(map[string]int64)
	for _, item := range items {
		if k, ok := key(item); ok {
			counts[k]++
		}
	}
	out := make([]NamedValue, 0, len(counts))
	for name, n := range counts {
		out = append(out, NamedValue{Name: name, Value: n})
	}
	sortDesc(out)
	return out
}

// TopN returns the n largest values, ordered by value descending then name.
func TopN(values []NamedValue, n int) []NamedValue {
	sorted := make([]NamedValue, len(values))
	copy(sorted, values)
	sortDesc(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func sortDesc(values []NamedValue) {
	sort.SliceStable(values, func(i, j int) bool {
		if values[i].Value != values[j].Value {
			return values[i].Value > values[j].Value
		}
		return values[i].Name < values[j].Name
	})
}

var hundred = decimal.NewFromInt(100)

// PercentOfTotal returns part as a percentage of total rounded to two
// places. A non-positive total yields zero.
func PercentOfTotal(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2)
}

// sumValues adds up every value.
func sumValues(values []NamedValue) int64 {
	var total int64
	for _, v := range values {
		total += v.Value
	}
	return total
}

// shares converts the top n values to percentages of the full total.
func shares(values []NamedValue, n int) []NamedShare {
	total := sumValues(values)
	top := TopN(values, n)
	out := make([]NamedShare, 0, len(top))
	for _, v := range top {
		out = append(out, NamedShare{Name: v.Name, Value: PercentOfTotal(v.Value, total).InexactFloat64()})
	}
	return out
}

// ---------------------------------------------------------------------------
// Row access
// ---------------------------------------------------------------------------

// firstRow returns the single row of an aggregate query, or an empty row.
func firstRow(rows []erp.Row) erp.Row {
	if len(rows) == 0 || rows[0] == nil {
		return erp.Row{}
	}
	return rows[0]
}

func rowInt(row erp.Row, column string) int64 {
	if n := acl.NormalizeInt(row[column]); n != nil {
		return *n
	}
	return 0
}

func rowString(row erp.Row, column string) string {
	if s := acl.NormalizeString(row[column], 0); s != nil {
		return *s
	}
	return ""
}

func rowDecimal(row erp.Row, column string) decimal.Decimal {
	if d := acl.NormalizeDecimal(row[column]); d != nil {
		return *d
	}
	return decimal.Zero
}

func decimalOf(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func normalizedDate(row erp.Row, column string) *string {
	return acl.NormalizeDate(row[column])
}

// column returns a CountBy key reading a text column. Blank values fall back
// to missing when set, or are skipped otherwise.
func column(name, missing string) func(erp.Row) (string, bool) {
	return func(row erp.Row) (string, bool) {
		if s := strings.TrimSpace(rowString(row, name)); s != "" {
			return s, true
		}
		return missing, missing != ""
	}
}

// namedValues reads a (name, count) pair from every row.
func namedValues(rows []erp.Row, nameColumn, valueColumn, missing string) []NamedValue {
	out := make([]NamedValue, 0, len(rows))
	for _, row := range rows {
		name := rowString(row, nameColumn)
		if name == "" {
			name = missing
		}
		out = append(out, NamedValue{Name: name, Value: rowInt(row, valueColumn)})
	}
	return out
}
