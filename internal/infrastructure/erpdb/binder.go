package erpdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/gateway/internal/domain/erp"
)

// Bind rewrites :name parameters in query into the engine's placeholder style
// and returns the positional arguments in placeholder order. A parameter used
// twice is bound twice. Quoted text, PostgreSQL casts (::) and := are left
// untouched.
func Bind(engine erp.Engine, query string, named map[string]any) (string, []any, error) {
	return bind(engine, query, func(name string) (any, bool) {
		v, ok := named[name]
		return v, ok
	})
}

func bind(engine erp.Engine, query string, lookup func(name string) (any, bool)) (string, []any, error) {
	var (
		b     strings.Builder
		args  []any
		quote byte
	)
	b.Grow(len(query) + 16)

	for i := 0; i < len(query); i++ {
		c := query[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == ':' && i+1 < len(query) && (query[i+1] == ':' || query[i+1] == '='):
			b.WriteByte(c)
			b.WriteByte(query[i+1])
			i++
		case c == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			v, ok := lookup(name)
			if !ok {
				return "", nil, fmt.Errorf("no value bound for parameter :%s", name)
			}
			args = append(args, v)
			b.WriteString(placeholder(engine, len(args)))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), args, nil
}

func placeholder(engine erp.Engine, n int) string {
	switch engine {
	case erp.EnginePostgres:
		return "$" + strconv.Itoa(n)
	case erp.EngineSQLServer:
		return "@p" + strconv.Itoa(n)
	case erp.EngineOracle:
		return ":" + strconv.Itoa(n)
	}
	return "?"
}

// referencedParams lists the distinct :name parameters in query, in order of
// first use.
func referencedParams(query string) []string {
	_, args, _ := bind(erp.EngineMySQL, query, func(name string) (any, bool) {
		return name, true
	})
	seen := make(map[string]bool, len(args))
	names := make([]string, 0, len(args))
	for _, a := range args {
		name := a.(string)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
