package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
	// store errors we could not classify; reported with their own message
	KindStore ErrorKind = "store"
)

// AppError is the error taxonomy shared by models and handlers.
type AppError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(field string, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string]string{field: message},
	}
}

func NewValidationErrors(fields map[string]string) *AppError {
	msg := "invalid input"
	if len(fields) == 1 {
		for _, m := range fields {
			msg = m
		}
	}
	return &AppError{Kind: KindValidation, Message: msg, Fields: fields}
}

func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrorRecordNotFound}
}

func NewConflictError(format string, args ...any) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the taxonomy kind of err; plain errors count as store errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	return KindStore
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// HTTPStatus maps an error to the response status used by every handler.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ValidationFields returns the per-field messages carried by a validation error.
func ValidationFields(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind == KindValidation {
		return appErr.Fields
	}
	return nil
}

/* store error classification */

// IsDuplicateKey reports a unique constraint violation on any supported store.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// IsForeignKeyViolation reports a referential integrity failure.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1451 || myErr.Number == 1452
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint failed") ||
		strings.Contains(msg, "foreign key")
}

// IsRetryableTxError reports lock waits, deadlocks and serialization failures.
func IsRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "deadlock")
}

// ClassifyStoreError re-labels driver errors into the taxonomy.
// Errors that are already classified pass through unchanged.
func ClassifyStoreError(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError("%s not found", what)
	case IsForeignKeyViolation(err):
		return &AppError{Kind: KindConflict, Message: what + " is in use", Err: err}
	case IsDuplicateKey(err):
		return &AppError{Kind: KindConflict, Message: what + " already exists", Err: err}
	}
	return err
}
