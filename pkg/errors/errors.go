package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so predefined instances keep working with
// errors.Is after Clone or WithDetails copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Enrollment eligibility and academic lifecycle failures. Every rejection
// carries enough detail for the caller to render a precise message without
// re-querying; use WithDetails to attach the structured payload.
var (
	ErrAlreadyEnrolled        = New("ALREADY_ENROLLED", http.StatusConflict, "already enrolled in subject for term")
	ErrAlreadyCompleted       = New("ALREADY_COMPLETED", http.StatusConflict, "subject already completed")
	ErrPrerequisitesNotMet    = New("PREREQUISITES_NOT_MET", http.StatusUnprocessableEntity, "prerequisites not met")
	ErrUnitCapExceeded        = New("UNIT_CAP_EXCEEDED", http.StatusUnprocessableEntity, "unit cap exceeded")
	ErrSectionFull            = New("SECTION_FULL", http.StatusConflict, "section is full")
	ErrSectionNotOpen         = New("SECTION_NOT_OPEN", http.StatusConflict, "section is not open")
	ErrEnrollmentWindowClosed = New("ENROLLMENT_WINDOW_CLOSED", http.StatusUnprocessableEntity, "add/drop deadline has passed")
	ErrGradeWindowClosed      = New("GRADE_WINDOW_CLOSED", http.StatusUnprocessableEntity, "grade encoding deadline has passed")
	ErrInvalidGrade           = New("INVALID_GRADE", http.StatusBadRequest, "invalid grade value")
	ErrTermStillActive        = New("TERM_STILL_ACTIVE", http.StatusPreconditionFailed, "term is still active")
	ErrAlreadyGraduated       = New("ALREADY_GRADUATED", http.StatusConflict, "student already graduated")
	ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "concurrent modification detected, retry")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy carrying a structured detail payload.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}
