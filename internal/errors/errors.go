package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotYourTurn  = "NOT_YOUR_TURN"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeFinished     = "MATCH_FINISHED"
	ErrCodeIllegalMove  = "ILLEGAL_MOVE"
	ErrCodeUpstream     = "UPSTREAM_ERROR"
	ErrCodeTimeout      = "TIMEOUT"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string         // Error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string         // Human-readable error message
	Status  int            // HTTP status code
	Err     error          // Wrapped underlying error (optional)
	Details map[string]any // Extra client-safe fields (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of e carrying an extra client-visible field.
func (e *AppError) WithDetail(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  http.StatusNotFound,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  http.StatusBadRequest,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewUnauthorizedError creates a new UNAUTHORIZED error. The message never says which
// check failed.
func NewUnauthorizedError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: "authentication required",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// NewForbiddenError creates a new FORBIDDEN error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NewTurnError creates a forbidden error for a move made out of turn.
func NewTurnError() *AppError {
	return &AppError{
		Code:    ErrCodeNotYourTurn,
		Message: "it is not your turn",
		Status:  http.StatusForbidden,
	}
}

// NewConflictError creates a new CONFLICT error
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// NewStateError creates a conflict error for an operation on a finished match.
func NewStateError(status string) *AppError {
	return &AppError{
		Code:    ErrCodeFinished,
		Message: fmt.Sprintf("match is already finished (%s)", status),
		Status:  http.StatusConflict,
	}
}

// NewIllegalMoveError creates a new ILLEGAL_MOVE error
func NewIllegalMoveError(from, to string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeIllegalMove,
		Message: fmt.Sprintf("illegal move %s-%s", from, to),
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// NewUpstreamError creates an error for a failing or missing external service.
func NewUpstreamError(service string, status int, err error) *AppError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Code:    ErrCodeUpstream,
		Message: fmt.Sprintf("%s unavailable", service),
		Status:  status,
		Err:     err,
	}
}

// NewTimeoutError creates an error for a request that ran past its deadline.
func NewTimeoutError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeTimeout,
		Message: "request timed out",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}
