package erp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Connection defaults applied when the integration payload omits a field.
const (
	DefaultSSLMode        = "prefer"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConnections = 5
)

// ConnectionConfig is a validated, immutable description of how to reach one
// tenant's ERP. Build it with ParseConnectionConfig.
type ConnectionConfig struct {
	TenantID       uuid.UUID
	Engine         Engine
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	SSLMode        string
	Timeout        time.Duration
	MaxConnections int
	Enabled        bool
}

// String never includes the password.
func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Engine, c.Username, c.Host, c.Port, c.Database)
}

// Fingerprint identifies the connection target. Two configs with the same
// fingerprint can share a pool.
func (c ConnectionConfig) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s|%d", c.Engine, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.MaxConnections)
}

// connectionPayload is the closed shape of the "config" object stored on an
// ERP integration record.
type connectionPayload struct {
	Engine         string `json:"engine" validate:"required"`
	Host           string `json:"host" validate:"required,max=255"`
	Port           *int   `json:"port" validate:"omitempty,min=1,max=65535"`
	Database       string `json:"database" validate:"required,max=128"`
	Username       string `json:"username" validate:"required,max=128"`
	Password       string `json:"password" validate:"required"`
	SSLMode        string `json:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	TimeoutSeconds *int   `json:"timeout_seconds" validate:"omitempty,min=1,max=600"`
	MaxConnections *int   `json:"max_connections" validate:"omitempty,min=1,max=100"`
	Enabled        *bool  `json:"enabled"`
}

var payloadValidate = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseConnectionConfig decodes and validates an integration payload. Unknown
// keys, missing required fields, out-of-range values and a disabled flag all
// fail with a configuration error.
func ParseConnectionConfig(tenantID uuid.UUID, raw []byte) (ConnectionConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ConnectionConfig{}, NewConfigurationError("ERP integration config is empty", nil)
	}

	var p connectionPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ConnectionConfig{}, NewConfigurationError("malformed ERP integration config", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ConnectionConfig{}, NewConfigurationError("malformed ERP integration config", errors.New("trailing data after config object"))
	}

	p.Engine = strings.TrimSpace(p.Engine)
	p.Host = strings.TrimSpace(p.Host)
	p.Database = strings.TrimSpace(p.Database)
	p.Username = strings.TrimSpace(p.Username)
	p.SSLMode = strings.ToLower(strings.TrimSpace(p.SSLMode))

	if err := payloadValidate.Struct(p); err != nil {
		return ConnectionConfig{}, NewConfigurationError("invalid ERP integration config", describeValidation(err))
	}

	if p.Enabled != nil && !*p.Enabled {
		return ConnectionConfig{}, NewConfigurationError("ERP integration is disabled", nil)
	}

	engine, err := ParseEngine(p.Engine)
	if err != nil {
		return ConnectionConfig{}, NewConfigurationError("invalid ERP integration config", err)
	}

	cfg := ConnectionConfig{
		TenantID:       tenantID,
		Engine:         engine,
		Host:           p.Host,
		Port:           engine.DefaultPort(),
		Database:       p.Database,
		Username:       p.Username,
		Password:       p.Password,
		SSLMode:        DefaultSSLMode,
		Timeout:        DefaultTimeout,
		MaxConnections: DefaultMaxConnections,
		Enabled:        true,
	}
	if p.Port != nil {
		cfg.Port = *p.Port
	}
	if p.SSLMode != "" {
		cfg.SSLMode = p.SSLMode
	}
	if p.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*p.TimeoutSeconds) * time.Second
	}
	if p.MaxConnections != nil {
		cfg.MaxConnections = *p.MaxConnections
	}
	return cfg, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
