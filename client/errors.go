package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds, mirroring the server's machine-readable kinds. Callers branch
// on Kind, never on message text.
const (
	KindValidation   = "validation"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindInternal     = "internal"
)

// Error is a structured API error decoded from the server's error body.
type Error struct {
	Message string            `json:"error"`
	Kind    string            `json:"kind"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s %v", e.Message, e.Fields)
	}
	return e.Message
}

// KindOf returns the error kind, or KindInternal for non-API errors.
func KindOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is an API not-found; absence is routinely
// distinguished from emptiness by callers.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
