package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and for callers that
// branch on failure class rather than message text.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindConflict         Kind = "ConflictError"
	KindPrecondition     Kind = "PreconditionError"
	KindNotFound         Kind = "NotFoundError"
	KindInfrastructure   Kind = "InfrastructureError"
	KindExecutionFailure Kind = "ExecutionFailure"
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *AppError {
	return New(KindValidation, format, args...)
}

func Conflict(format string, args ...interface{}) *AppError {
	return New(KindConflict, format, args...)
}

func Precondition(format string, args ...interface{}) *AppError {
	return New(KindPrecondition, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return New(KindNotFound, format, args...)
}

func Infrastructure(err error, format string, args ...interface{}) *AppError {
	return Wrap(KindInfrastructure, err, format, args...)
}

func ExecutionFailure(format string, args ...interface{}) *AppError {
	return New(KindExecutionFailure, format, args...)
}

// KindOf reports the classification of err, or an empty Kind for errors
// that did not originate from this package.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
