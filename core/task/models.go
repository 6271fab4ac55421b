package task

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Assignment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	DueDate     time.Time `json:"due_date"` // UTC
	TeacherID   string    `json:"teacher_id"`
	Reward      int       `json:"reward"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsPastDue reports whether the deadline has passed at the reference time.
func (t Task) IsPastDue(reference time.Time) bool {
	return reference.After(t.DueDate)
}

// Assignment links a Task to a student. It transitions pending -> completed
// exactly once; CompletedAt is set on that transition and never changes.
type Assignment struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	StudentID   string    `json:"student_id"`
	Status      string    `json:"status"`
	CompletedAt null.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// StudentAssignment is an Assignment with its Task joined for student views.
type StudentAssignment struct {
	Assignment
	Task Task `json:"task"`
}

// NewTask contains information needed to create a Task and its Assignments.
type NewTask struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Subject     string    `json:"subject" validate:"required,max=100"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Reward      int       `json:"reward" validate:"required,min=1,max=1000"`
	StudentIDs  []string  `json:"student_ids" validate:"required,min=1,unique"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Subject = core.CleanString(nt.Subject)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
type UpdateTask struct {
	Title       string    `json:"title" validate:"omitempty,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Subject     string    `json:"subject" validate:"omitempty,max=100"`
	DueDate     time.Time `json:"due_date"`
	Reward      int       `json:"reward" validate:"omitempty,min=1,max=1000"`
}

func (ut *UpdateTask) Validate(origTask Task, validate *validator.Validate) error {
	if title := core.CleanString(ut.Title); title != "" {
		ut.Title = title
	} else {
		ut.Title = origTask.Title
	}
	if desc := core.CleanString(ut.Description); desc != "" {
		ut.Description = desc
	} else {
		ut.Description = origTask.Description
	}
	if subject := core.CleanString(ut.Subject); subject != "" {
		ut.Subject = subject
	} else {
		ut.Subject = origTask.Subject
	}
	if ut.DueDate.IsZero() {
		ut.DueDate = origTask.DueDate
	}
	if ut.Reward == 0 {
		ut.Reward = origTask.Reward
	}
	return validate.Struct(ut)
}

// CompletionResult is the server-computed outcome of completing an Assignment.
// Clients display it; they never recompute any of it.
type CompletionResult struct {
	Assignment Assignment `json:"assignment"`
	Base       int        `json:"base"`
	Bonus      int        `json:"bonus"`
	Penalty    int        `json:"penalty"`
	Total      int        `json:"total"`
	NewBalance int        `json:"new_balance"`
	// AlreadyCompleted is set on replays; no coins were awarded.
	AlreadyCompleted bool `json:"already_completed"`
}
