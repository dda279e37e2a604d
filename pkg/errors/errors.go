package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Fields carries
// per-field validation messages; Details carries structured conflict or
// deletion-blocker information for the client to render.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Fields  map[string]string      `json:"fields,omitempty"`
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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the catalog error taxonomy.
var (
	ErrUnauthenticated     = New("UNAUTHENTICATED", http.StatusUnauthorized, "access denied, no valid token provided")
	ErrTenantInactive      = New("TENANT_INACTIVE", http.StatusForbidden, "institute not found or inactive")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrDuplicateCode       = New("DUPLICATE_COURSE_CODE", http.StatusConflict, "course code already exists in your institute")
	ErrDuplicateAssignment = New("DUPLICATE_SEMESTER_ASSIGNMENT", http.StatusConflict, "semester assignment already taken")
	ErrDeletionBlocked     = New("DELETION_BLOCKED", http.StatusConflict, "resource has references blocking deletion")
	ErrInvalidAction       = New("INVALID_ACTION", http.StatusBadRequest, "invalid bulk action")
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid credentials")
	ErrUnverified          = New("ACCOUNT_UNVERIFIED", http.StatusForbidden, "account pending verification by institute admin")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
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

// WithFields returns a copy of the error carrying per-field messages.
func WithFields(err *Error, message string, fields map[string]string) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	clone.Fields = fields
	return clone
}

// WithDetails returns a copy of the error carrying structured details.
func WithDetails(err *Error, message string, details map[string]interface{}) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	clone.Details = details
	return clone
}
