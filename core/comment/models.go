package comment

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// EditWindow is how long the author may edit a comment after posting.
// It is an affordance on clients and enforced here regardless.
const EditWindow = 5 * time.Minute

// MaxBodyLen caps a comment body, in runes.
const MaxBodyLen = 2000

type Comment struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
	// IsEdited is false until the first successful edit, then permanently true.
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	// joined author display data; empty on raw feed payloads
	AuthorName string `json:"author_name,omitempty"`
	AuthorRole string `json:"author_role,omitempty"`
}

// CanEditAt reports whether the author may still edit at the reference time.
func (c Comment) CanEditAt(reference time.Time) bool {
	return reference.Sub(c.CreatedAt) < EditWindow
}

type NewComment struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Body = core.CleanString(nc.Body)
	return validate.Struct(nc)
}

type UpdateComment struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (uc *UpdateComment) Validate(validate *validator.Validate) error {
	uc.Body = core.CleanString(uc.Body)
	return validate.Struct(uc)
}

// CheckBody rejects an empty or oversized body without a validator instance,
// for clients that validate before any network call.
func CheckBody(body string) error {
	if core.CleanString(body) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "body", Error: "this field is required"})
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return core.NewValidationError(nil, core.FieldError{
			Field: "body",
			Error: fmt.Sprintf("body exceeds the %d character limit", MaxBodyLen),
		})
	}
	return nil
}
