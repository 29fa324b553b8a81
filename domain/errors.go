package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeVersionConflict    ErrorCode = "VERSION_CONFLICT"
	ErrCodeMissingIdempotency ErrorCode = "MISSING_IDEMPOTENCY_KEY"
	ErrCodeCorruptStored      ErrorCode = "CORRUPT_STORED_RESPONSE"
	ErrCodeKeyReused          ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeInProgress         ErrorCode = "REQUEST_IN_PROGRESS"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code and message so sentinel errors compare by value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds a VALIDATION_ERROR carrying the offending field in its details.
func ValidationError(field, message string, details map[string]any) *Error {
	if details == nil {
		details = make(map[string]any, 1)
	}
	if field != "" {
		details["field"] = field
	}
	return &Error{Code: ErrCodeValidation, Message: message, Details: details}
}

// VersionConflict reports a stale optimistic-concurrency token.
func VersionConflict(expected, current int) *Error {
	return &Error{
		Code:    ErrCodeVersionConflict,
		Message: "task was modified by another request",
		Details: map[string]any{
			"expectedVersion": expected,
			"currentVersion":  current,
		},
	}
}

// Common domain errors.
var (
	ErrTaskNotFound          = NewError(ErrCodeNotFound, "task not found")
	ErrIdempotencyNotFound   = NewError(ErrCodeNotFound, "idempotency record not found")
	ErrMissingIdempotencyKey = NewError(ErrCodeMissingIdempotency, "idempotency key is required for mutating requests")
	ErrRequestInProgress     = NewError(ErrCodeInProgress, "a request with this idempotency key is still in progress")
	ErrStaleWrite            = NewError(ErrCodeVersionConflict, "stored version changed before write")
	ErrInvalidPayload        = NewError(ErrCodeValidation, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// AsError extracts a domain error, classifying anything else as INTERNAL_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr
	}
	return WrapError(ErrCodeInternal, "internal error", err)
}
