package erp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies gateway failures. The HTTP boundary maps each kind to a
// status code, so kinds are part of the public contract.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "ERP_CONFIGURATION"
	KindConnection    ErrorKind = "ERP_CONNECTION"
	KindTimeout       ErrorKind = "ERP_TIMEOUT"
	KindQuery         ErrorKind = "ERP_QUERY"
	KindRateLimit     ErrorKind = "ERP_RATE_LIMIT"
	KindMapping       ErrorKind = "ERP_MAPPING"
)

// Error is the single error type raised by the gateway layers.
type Error struct {
	Kind    ErrorKind
	Message string
	// Keyword is the forbidden SQL keyword that rejected a statement, if any.
	Keyword string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind. A sentinel with an empty message
// matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Kind sentinels for errors.Is checks.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrConnection    = &Error{Kind: KindConnection}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrQuery         = &Error{Kind: KindQuery}
	ErrRateLimit     = &Error{Kind: KindRateLimit}
	ErrMapping       = &Error{Kind: KindMapping}

	// ErrNotConfigured is returned when a tenant has no active ERP integration.
	ErrNotConfigured = &Error{Kind: KindConfiguration, Message: "ERP integration not configured"}
)

// KindOf returns the kind of the first gateway error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func NewConfigurationError(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}

func NewConnectionError(engine Engine, host string, port int, err error) *Error {
	return &Error{
		Kind:    KindConnection,
		Message: fmt.Sprintf("cannot connect to %s ERP at %s:%d", engine, host, port),
		Err:     err,
	}
}

func NewTimeoutError(queryID string, timeout time.Duration, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("query %q exceeded %s", queryID, timeout),
		Err:     err,
	}
}

func NewQueryError(message string, err error) *Error {
	return &Error{Kind: KindQuery, Message: message, Err: err}
}

// NewForbiddenKeywordError reports a statement rejected by the read-only guard.
func NewForbiddenKeywordError(keyword string) *Error {
	return &Error{
		Kind:    KindQuery,
		Message: fmt.Sprintf("forbidden SQL keyword %s: only read-only statements are allowed", keyword),
		Keyword: keyword,
	}
}

func NewRateLimitError(tenantID uuid.UUID, limit int, window time.Duration) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Message: fmt.Sprintf("ERP rate limit of %d calls per %s exceeded for tenant %s", limit, window, tenantID),
	}
}

func NewMappingError(domain Domain, message string, err error) *Error {
	return &Error{
		Kind:    KindMapping,
		Message: fmt.Sprintf("cannot map %s row: %s", domain, message),
		Err:     err,
	}
}
