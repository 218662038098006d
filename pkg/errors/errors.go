package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of application error. The set is closed:
// services construct errors from these constructors at the point of failure
// and the HTTP boundary maps each code to a status exactly once.
type ErrorCode int

const (
	ErrValidation ErrorCode = iota + 1000
	ErrNotFound
	ErrUnauthorized
	ErrForbidden
	ErrSlotConflict
	ErrInvalidTransition
	ErrVersionConflict
	ErrStorage
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches on code so callers can compare against constructor results
// with errors.Is.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// Code extracts the ErrorCode from err, defaulting to ErrStorage for
// unclassified failures.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrStorage
}

func Validation(message string) *AppError {
	return &AppError{Code: ErrValidation, Message: message}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrForbidden, Message: message}
}

func SlotConflict(message string) *AppError {
	return &AppError{Code: ErrSlotConflict, Message: message}
}

func InvalidTransition(message string) *AppError {
	return &AppError{Code: ErrInvalidTransition, Message: message}
}

// VersionConflict signals a stale optimistic-concurrency token; the caller
// may reload and retry.
func VersionConflict(resource string) *AppError {
	return &AppError{Code: ErrVersionConflict, Message: fmt.Sprintf("%s was modified concurrently", resource)}
}

func Storage(err error) *AppError {
	return &AppError{Code: ErrStorage, Message: "storage failure", Err: err}
}
