package erp

import (
	"regexp"
	"strings"
)

// ForbiddenKeywords can never appear as whole words in a statement sent to an ERP.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL",
}

var (
	forbiddenKeywordPattern = regexp.MustCompile(`\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)
	readOnlyPrefixPattern   = regexp.MustCompile(`^(SELECT|WITH)\b`)
)

// ValidateReadOnly rejects any statement that is not a single SELECT or WITH
// query, or that mentions a forbidden keyword outside comments. Keywords inside
// string literals are still rejected.
//
// This is a textual guard, not a parser. The ERP account should also be
// granted read-only privileges.
func ValidateReadOnly(query string) error {
	code, stacked := stripComments(query)
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return NewQueryError("empty SQL statement", nil)
	}

	if kw := forbiddenKeywordPattern.FindString(normalized); kw != "" {
		return NewForbiddenKeywordError(kw)
	}
	if !readOnlyPrefixPattern.MatchString(normalized) {
		return NewQueryError("only SELECT or WITH statements are allowed", nil)
	}
	if stacked {
		return NewQueryError("multiple SQL statements are not allowed", nil)
	}
	return nil
}

// closingQuote pairs every quoting delimiter with its terminator: string
// literals, ANSI and MySQL identifiers, and SQL Server bracket identifiers.
var closingQuote = map[byte]byte{'\'': '\'', '"': '"', '`': '`', '[': ']'}

// stripComments removes -- and /* */ comments while honouring quoted text, so
// a comment marker inside a literal or quoted identifier does not swallow live
// code. It also reports whether a statement separator is followed by more code.
func stripComments(query string) (string, bool) {
	var (
		b         strings.Builder
		closing   byte
		separator bool
		stacked   bool
	)
	b.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]

		if closing != 0 {
			b.WriteByte(c)
			if c == closing {
				closing = 0
			}
			continue
		}

		if end, ok := closingQuote[c]; ok {
			if separator {
				stacked = true
			}
			closing = end
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		case c == ';':
			separator = true
			b.WriteByte(' ')
		default:
			if separator && !isSpace(c) {
				stacked = true
			}
			b.WriteByte(c)
		}
	}
	return b.String(), stacked
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
