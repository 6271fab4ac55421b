package core

import "github.com/pkg/errors"

// Kind classifies an error so that API surfaces and clients can act on it
// without sniffing message text.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// AppError is a classified, user-presentable error.
type AppError struct {
	Kind    Kind
	Message string
}

func NewAppError(kind Kind, msg string) error {
	return &AppError{Kind: kind, Message: msg}
}

func (e AppError) Error() string { return e.Message }

// KindOf returns the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	switch origErr := errors.Cause(err).(type) {
	case *AppError:
		return origErr.Kind
	case *ValidationError:
		return KindValidation
	}
	return KindInternal
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error that signals the app to gracefully shut down.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
