package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kendall-kelly/servicepro-api/forms"
	"gorm.io/gorm"
)

// ErrorKind classifies service failures for the transport layer
type ErrorKind int

const (
	KindNotAuthenticated ErrorKind = iota + 1
	KindForbidden
	KindValidationFailed
	KindNotFound
	KindConflict
	KindStoreFailure
	KindUpstreamFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStoreFailure:
		return "store_failure"
	case KindUpstreamFailure:
		return "upstream_failure"
	default:
		return "unknown"
	}
}

// ServiceError is returned by every service operation that fails.
// Err holds the underlying cause and is never shown to clients.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string][]string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, ErrNotFound)
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is
var (
	ErrNotAuthenticated = &ServiceError{Kind: KindNotAuthenticated}
	ErrForbidden        = &ServiceError{Kind: KindForbidden}
	ErrValidation       = &ServiceError{Kind: KindValidationFailed}
	ErrNotFound         = &ServiceError{Kind: KindNotFound}
	ErrConflict         = &ServiceError{Kind: KindConflict}
	ErrStore            = &ServiceError{Kind: KindStoreFailure}
	ErrUpstream         = &ServiceError{Kind: KindUpstreamFailure}
)

func notAuthenticated() *ServiceError {
	return &ServiceError{Kind: KindNotAuthenticated, Code: "UNAUTHORIZED", Message: "User not authenticated."}
}

func forbidden(message string) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

func notFound(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func conflict(message string) *ServiceError {
	return &ServiceError{Kind: KindConflict, Code: "CONFLICT", Message: message}
}

func invalid(message string) *ServiceError {
	return &ServiceError{Kind: KindValidationFailed, Code: "VALIDATION_ERROR", Message: message}
}

func storeFailure(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindStoreFailure, Code: "DATABASE_ERROR", Message: message, Err: err}
}

func upstreamFailure(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindUpstreamFailure, Code: "UPSTREAM_ERROR", Message: message, Err: err}
}

// fromValidation converts a forms.ValidationError into a ServiceError, keeping
// the field details. Other errors become store failures.
func fromValidation(err error) *ServiceError {
	var verr *forms.ValidationError
	if !errors.As(err, &verr) {
		return storeFailure("Failed to validate input.", err)
	}
	code := "VALIDATION_ERROR"
	if verr.Stage == forms.StageInternal {
		code = "INVALID_JOB_DATA"
	}
	return &ServiceError{
		Kind:    KindValidationFailed,
		Code:    code,
		Message: verr.Message,
		Details: verr.Fields,
		Err:     verr,
	}
}

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolationCode = "23505"

// isUniqueViolation recognizes duplicate-key errors. The drivers translate
// them to gorm.ErrDuplicatedKey; a raw pgconn error is checked for callers
// that bypass translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
