package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation error")
	ErrSectionNotOwned   = errors.New("section not owned by sector")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrOwnershipChanged  = errors.New("section ownership changed")
	ErrPersistence       = errors.New("persistence failure")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// SectionNotOwned reports a sector submitting a section it does not
// currently own. No state change has been made.
func SectionNotOwned(recordID, section, sector string) *AppError {
	return &AppError{
		Err:        ErrSectionNotOwned,
		Message:    fmt.Sprintf("sector %s does not own section %s", sector, section),
		Code:       "SECTION_NOT_OWNED",
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]string{"record": recordID, "section": section, "sector": sector},
	}
}

// InvalidTransition reports a workflow operation invoked on a record whose
// current status does not allow it.
func InvalidTransition(recordID, status, operation string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Message:    fmt.Sprintf("cannot %s a record in status %s", operation, status),
		Code:       "INVALID_TRANSITION",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"record": recordID, "status": status, "operation": operation},
	}
}

// OwnershipChanged reports that section ownership shifted between the read
// and the write of a submission. The caller should retry against the
// recomputed section registry.
func OwnershipChanged(recordID, section, sector string) *AppError {
	return &AppError{
		Err:        ErrOwnershipChanged,
		Message:    fmt.Sprintf("ownership of section %s changed while sector %s was editing", section, sector),
		Code:       "CONCURRENT_CLASSIFICATION_CHANGE",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"record": recordID, "section": section, "sector": sector},
	}
}

// Persistence wraps a storage-layer error from an atomic mutation. The
// transaction has been rolled back; the operation is retryable.
func Persistence(err error, recordID string) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrPersistence, err),
		Message:    "storage failure, transaction rolled back",
		Code:       "PERSISTENCE_FAILURE",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]string{"record": recordID},
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}
