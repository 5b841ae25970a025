package erpdb

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/go-sql-driver/mysql"

	// Engine drivers register themselves with database/sql.
	_ "github.com/godror/godror"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

// Default dialect options applied to every ERP session.
const (
	DefaultApplicationName = "erp-gateway"
	DefaultSearchPath      = `"PACIENTE",public`
)

// DialectOptions carries the session settings fixed for every tenant.
type DialectOptions struct {
	// ApplicationName is reported to the ERP so DBAs can identify gateway sessions.
	ApplicationName string
	// SearchPath is the schema search path pinned on PostgreSQL sessions.
	SearchPath string
}

// DefaultDialectOptions returns the options used when none are configured.
func DefaultDialectOptions() DialectOptions {
	return DialectOptions{
		ApplicationName: DefaultApplicationName,
		SearchPath:      DefaultSearchPath,
	}
}

// DriverName returns the database/sql driver registered for the engine.
func DriverName(engine erp.Engine) (string, error) {
	switch engine {
	case erp.EnginePostgres:
		return "postgres", nil
	case erp.EngineMySQL:
		return "mysql", nil
	case erp.EngineSQLServer:
		return "sqlserver", nil
	case erp.EngineOracle:
		return "godror", nil
	}
	return "", fmt.Errorf("unsupported ERP engine %q", engine)
}

// BuildDSN renders the driver connection string for cfg. The result embeds the
// password and must never be logged.
func BuildDSN(cfg erp.ConnectionConfig, opts DialectOptions) (string, error) {
	switch cfg.Engine {
	case erp.EnginePostgres:
		return postgresDSN(cfg, opts), nil
	case erp.EngineMySQL:
		return mysqlDSN(cfg), nil
	case erp.EngineSQLServer:
		return sqlServerDSN(cfg, opts), nil
	case erp.EngineOracle:
		return oracleDSN(cfg), nil
	}
	return "", fmt.Errorf("unsupported ERP engine %q", cfg.Engine)
}

func timeoutSeconds(cfg erp.ConnectionConfig) int {
	s := int(cfg.Timeout.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

func hostPort(cfg erp.ConnectionConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// postgresSSLMode maps the configured mode onto the values lib/pq understands.
// lib/pq has no opportunistic TLS, so allow and prefer connect in plain text.
func postgresSSLMode(mode string) string {
	switch mode {
	case "require", "verify-ca", "verify-full":
		return mode
	}
	return "disable"
}

func postgresDSN(cfg erp.ConnectionConfig, opts DialectOptions) string {
	q := url.Values{}
	q.Set("sslmode", postgresSSLMode(cfg.SSLMode))
	q.Set("connect_timeout", strconv.Itoa(timeoutSeconds(cfg)))
	if opts.ApplicationName != "" {
		q.Set("application_name", opts.ApplicationName)
	}
	if opts.SearchPath != "" {
		// lib/pq forwards unknown keys as session parameters.
		q.Set("search_path", opts.SearchPath)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     hostPort(cfg),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mysqlTLS(mode string) string {
	switch mode {
	case "disable":
		return "false"
	case "require":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return "true"
	}
	return "preferred"
}

func mysqlDSN(cfg erp.ConnectionConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = hostPort(cfg)
	c.DBName = cfg.Database
	c.Timeout = cfg.Timeout
	c.ParseTime = true
	c.TLSConfig = mysqlTLS(cfg.SSLMode)
	return c.FormatDSN()
}

func sqlServerEncrypt(mode string) (encrypt string, trust bool) {
	switch mode {
	case "disable":
		return "disable", false
	case "require":
		return "true", true
	case "verify-ca", "verify-full":
		return "true", false
	}
	return "false", false
}

func sqlServerDSN(cfg erp.ConnectionConfig, opts DialectOptions) string {
	encrypt, trust := sqlServerEncrypt(cfg.SSLMode)
	timeout := strconv.Itoa(timeoutSeconds(cfg))

	q := url.Values{}
	q.Set("database", cfg.Database)
	q.Set("dial timeout", timeout)
	q.Set("connection timeout", timeout)
	q.Set("encrypt", encrypt)
	if trust {
		q.Set("TrustServerCertificate", "true")
	}
	if opts.ApplicationName != "" {
		q.Set("app name", opts.ApplicationName)
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     hostPort(cfg),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// oracleDSN renders a godror logfmt connection string with an EZConnect target.
// Database holds the service name.
func oracleDSN(cfg erp.ConnectionConfig) string {
	target := fmt.Sprintf("%s/%s?connect_timeout=%d", hostPort(cfg), cfg.Database, timeoutSeconds(cfg))
	switch cfg.SSLMode {
	case "require", "verify-ca", "verify-full":
		target = "tcps://" + target
	}
	return fmt.Sprintf("user=%s password=%s connectString=%s",
		strconv.Quote(cfg.Username), strconv.Quote(cfg.Password), strconv.Quote(target))
}

// redactDSN hides the password in a DSN for diagnostics.
func redactDSN(dsn, password string) string {
	if password == "" {
		return dsn
	}
	dsn = strings.ReplaceAll(dsn, url.QueryEscape(password), "xxxxx")
	dsn = strings.ReplaceAll(dsn, url.PathEscape(password), "xxxxx")
	return strings.ReplaceAll(dsn, password, "xxxxx")
}
