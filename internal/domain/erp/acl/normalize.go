package acl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// CanonicalDateLayout is the single date shape emitted by NormalizeDate.
const CanonicalDateLayout = "2006-01-02T15:04:05"

// sourceDateLayouts are the textual date shapes seen in ERP exports.
var sourceDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"02/01/2006 15:04:05",
	time.RFC3339Nano,
}

// NormalizeDate converts a source date to CanonicalDateLayout. Text in an
// unknown shape is returned unchanged; nil and blank values are absent.
func NormalizeDate(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		s := t.Format(CanonicalDateLayout)
		return &s
	case *time.Time:
		if t == nil {
			return nil
		}
		return NormalizeDate(*t)
	}

	raw, ok := text(v)
	if !ok {
		s := fmt.Sprint(v)
		return &s
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range sourceDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			s := parsed.Format(CanonicalDateLayout)
			return &s
		}
	}
	return &raw
}

// NormalizeString trims v and truncates it to maxLen runes when maxLen > 0.
// Empty results are absent.
func NormalizeString(v any, maxLen int) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		s = t.Format(CanonicalDateLayout)
	default:
		if raw, ok := text(v); ok {
			s = raw
		} else {
			s = fmt.Sprint(v)
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return &s
}

// NormalizeInt coerces v to an integer, truncating fractional values, so
// "2.58" becomes 2. Blank or non-numeric values are absent.
func NormalizeInt(v any) *int64 {
	var n int64
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		n = int64(t)
	case int8:
		n = int64(t)
	case int16:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case uint8:
		n = int64(t)
	case uint16:
		n = int64(t)
	case uint32:
		n = int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return nil
		}
		n = int64(t)
	case float32:
		return truncate(float64(t))
	case float64:
		return truncate(t)
	case decimal.Decimal:
		n = t.IntPart()
	default:
		raw, ok := text(v)
		if !ok {
			return nil
		}
		f, ok := parseNumber(raw)
		if !ok {
			return nil
		}
		return truncate(f)
	}
	return &n
}

// NormalizeDecimal coerces v to an exact decimal. Blank or non-numeric values
// are absent.
func NormalizeDecimal(v any) *decimal.Decimal {
	var d decimal.Decimal
	switch t := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		d = t
	case int:
		d = decimal.NewFromInt(int64(t))
	case int32:
		d = decimal.NewFromInt32(t)
	case int64:
		d = decimal.NewFromInt(t)
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil
		}
		d = decimal.NewFromFloat32(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		d = decimal.NewFromFloat(t)
	default:
		raw, ok := text(v)
		if !ok {
			return nil
		}
		parsed, err := decimal.NewFromString(numericText(raw))
		if err != nil {
			return nil
		}
		d = parsed
	}
	return &d
}

// text extracts string content from string-like driver values. Byte slices
// that are not valid UTF-8 come from Latin-1 databases and are decoded as
// Windows-1252.
func text(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		if utf8.Valid(t) {
			return string(t), true
		}
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(t)
		if err != nil {
			return string(t), true
		}
		return string(decoded), true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}

func parseNumber(raw string) (float64, bool) {
	s := numericText(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// numericText accepts a decimal comma when no decimal point is present.
func numericText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func truncate(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(f)
	return &n
}
