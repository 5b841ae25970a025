package erp

import (
	"fmt"
	"strings"
)

// Engine is the SQL engine an ERP runs on.
type Engine string

const (
	EnginePostgres  Engine = "postgres"
	EngineSQLServer Engine = "sqlserver"
	EngineOracle    Engine = "oracle"
	EngineMySQL     Engine = "mysql"
)

var engineAliases = map[string]Engine{
	"postgres":   EnginePostgres,
	"postgresql": EnginePostgres,
	"sqlserver":  EngineSQLServer,
	"mssql":      EngineSQLServer,
	"oracle":     EngineOracle,
	"mysql":      EngineMySQL,
}

// ParseEngine resolves a configured engine name, accepting the common aliases.
func ParseEngine(s string) (Engine, error) {
	if e, ok := engineAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return e, nil
	}
	return "", fmt.Errorf("unsupported ERP engine %q (supported: postgres, sqlserver, oracle, mysql)", s)
}

// IsValid reports whether e is one of the supported engines.
func (e Engine) IsValid() bool {
	switch e {
	case EnginePostgres, EngineSQLServer, EngineOracle, EngineMySQL:
		return true
	}
	return false
}

// DefaultPort returns the listener port the engine uses out of the box.
func (e Engine) DefaultPort() int {
	switch e {
	case EnginePostgres:
		return 5432
	case EngineSQLServer:
		return 1433
	case EngineOracle:
		return 1521
	case EngineMySQL:
		return 3306
	}
	return 0
}

// PingQuery is the cheapest statement that proves a session works.
func (e Engine) PingQuery() string {
	if e == EngineOracle {
		return "SELECT 1 FROM DUAL"
	}
	return "SELECT 1"
}

func (e Engine) String() string {
	return string(e)
}
