package erpdb

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(engine erp.Engine) erp.ConnectionConfig {
	return erp.ConnectionConfig{
		TenantID:       uuid.MustParse("7b0c0d59-1c1f-4d55-9d43-58a8b4e0a001"),
		Engine:         engine,
		Host:           "erp.hospital.local",
		Port:           engine.DefaultPort(),
		Database:       "hospital",
		Username:       "reader",
		Password:       "p@ss:w/rd",
		SSLMode:        "prefer",
		Timeout:        15 * time.Second,
		MaxConnections: 5,
		Enabled:        true,
	}
}

func TestDriverName(t *testing.T) {
	tests := []struct {
		engine erp.Engine
		want   string
	}{
		{erp.EnginePostgres, "postgres"},
		{erp.EngineMySQL, "mysql"},
		{erp.EngineSQLServer, "sqlserver"},
		{erp.EngineOracle, "godror"},
	}
	for _, tt := range tests {
		t.Run(tt.engine.String(), func(t *testing.T) {
			got, err := DriverName(tt.engine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DriverName(erp.Engine("db2"))
	assert.Error(t, err)
}

func TestBuildDSN_Postgres(t *testing.T) {
	cfg := testConfig(erp.EnginePostgres)

	dsn, err := BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "erp.hospital.local:5432", u.Host)
	assert.Equal(t, "/hospital", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pw)

	q := u.Query()
	assert.Equal(t, "disable", q.Get("sslmode"), "lib/pq has no prefer mode")
	assert.Equal(t, "15", q.Get("connect_timeout"))
	assert.Equal(t, DefaultApplicationName, q.Get("application_name"))
	assert.Equal(t, `"PACIENTE",public`, q.Get("search_path"))
}

func TestPostgresSSLMode(t *testing.T) {
	for mode, want := range map[string]string{
		"disable":     "disable",
		"allow":       "disable",
		"prefer":      "disable",
		"require":     "require",
		"verify-ca":   "verify-ca",
		"verify-full": "verify-full",
	} {
		assert.Equal(t, want, postgresSSLMode(mode), mode)
	}
}

func TestBuildDSN_MySQL(t *testing.T) {
	cfg := testConfig(erp.EngineMySQL)
	cfg.SSLMode = "require"

	dsn, err := BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "reader", parsed.User)
	assert.Equal(t, "p@ss:w/rd", parsed.Passwd)
	assert.Equal(t, "erp.hospital.local:3306", parsed.Addr)
	assert.Equal(t, "hospital", parsed.DBName)
	assert.Equal(t, 15*time.Second, parsed.Timeout)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "skip-verify", parsed.TLSConfig)
}

func TestMySQLTLS(t *testing.T) {
	assert.Equal(t, "false", mysqlTLS("disable"))
	assert.Equal(t, "preferred", mysqlTLS("prefer"))
	assert.Equal(t, "preferred", mysqlTLS("allow"))
	assert.Equal(t, "skip-verify", mysqlTLS("require"))
	assert.Equal(t, "true", mysqlTLS("verify-full"))
}

func TestBuildDSN_SQLServer(t *testing.T) {
	cfg := testConfig(erp.EngineSQLServer)
	cfg.SSLMode = "require"

	dsn, err := BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "erp.hospital.local:1433", u.Host)

	q := u.Query()
	assert.Equal(t, "hospital", q.Get("database"))
	assert.Equal(t, "15", q.Get("dial timeout"))
	assert.Equal(t, "true", q.Get("encrypt"))
	assert.Equal(t, "true", q.Get("TrustServerCertificate"))
	assert.Equal(t, DefaultApplicationName, q.Get("app name"))
}

func TestBuildDSN_Oracle(t *testing.T) {
	cfg := testConfig(erp.EngineOracle)
	cfg.Database = "ORCLPDB1"

	dsn, err := BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)
	assert.Equal(t,
		`user="reader" password="p@ss:w/rd" connectString="erp.hospital.local:1521/ORCLPDB1?connect_timeout=15"`,
		dsn)

	cfg.SSLMode = "verify-full"
	dsn, err = BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)
	assert.Contains(t, dsn, `connectString="tcps://erp.hospital.local:1521/ORCLPDB1`)
}

func TestBuildDSN_UnsupportedEngine(t *testing.T) {
	_, err := BuildDSN(testConfig(erp.Engine("db2")), DefaultDialectOptions())
	assert.Error(t, err)
}

func TestTimeoutSeconds_FloorsAtOne(t *testing.T) {
	cfg := testConfig(erp.EnginePostgres)
	cfg.Timeout = 200 * time.Millisecond
	assert.Equal(t, 1, timeoutSeconds(cfg))
}

func TestRedactDSN(t *testing.T) {
	cfg := testConfig(erp.EngineSQLServer)
	dsn, err := BuildDSN(cfg, DefaultDialectOptions())
	require.NoError(t, err)

	redacted := redactDSN(dsn, cfg.Password)
	assert.False(t, strings.Contains(redacted, "p@ss"), redacted)
	assert.Contains(t, redacted, "xxxxx")
}
