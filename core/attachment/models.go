package attachment

import (
	"fmt"
	"time"

	"github.com/trezcool/darasa/core"
)

// Attachment kinds
const (
	KindTeacherMaterial   = "teacher_material"
	KindStudentSubmission = "student_submission"
)

// MaxSize caps uploads; checked before any storage or network call.
const MaxSize = 10 << 20 // 10 MiB

// allowedContentTypes is the upload MIME allow-list.
var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"text/plain":      true,
	"application/zip": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"application/vnd.ms-powerpoint":                                           true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// Attachment is a stored binary object reference tied to a Task.
type Attachment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	UploaderID  string    `json:"uploader_id"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewAttachment describes an upload before validation.
type NewAttachment struct {
	Filename    string
	Size        int64
	ContentType string
	Kind        string
}

// Validate rejects oversized or disallowed uploads locally, before any
// storage call is made.
func (na *NewAttachment) Validate() error {
	na.Filename = core.CleanString(na.Filename)
	if na.Filename == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "filename", Error: "this field is required"})
	}
	if na.Size <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "size", Error: "empty file"})
	}
	if na.Size > MaxSize {
		return core.NewValidationError(nil, core.FieldError{
			Field: "size",
			Error: fmt.Sprintf("file exceeds the %d MiB limit", MaxSize>>20),
		})
	}
	if !allowedContentTypes[na.ContentType] {
		return core.NewValidationError(nil, core.FieldError{Field: "content_type", Error: "file type not allowed"})
	}
	if na.Kind != KindTeacherMaterial && na.Kind != KindStudentSubmission {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown attachment kind"})
	}
	return nil
}
