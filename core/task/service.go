package task

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
)

var (
	// errors
	ErrNotFound           = errors.New("task not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyCompleted   = errors.New("assignment already completed")
)

// reward rules; all coin math happens here, server-side.
const (
	onTimeBonusPct = 20 // % of the task reward
	latePenaltyPct = 50
)

// top-3 bonus by completion rank
var rankBonuses = map[int]int{1: 15, 2: 10, 3: 5}

type (
	Repository interface {
		// CreateTaskWithAssignments inserts the Task then one pending
		// Assignment per student, within one transaction where the backing
		// store supports it. When it does not, a failure on the assignment
		// step leaves the created Task in place (reported via
		// ErrPartialCreate).
		CreateTaskWithAssignments(ctx context.Context, t Task, studentIDs []string) (Task, []Assignment, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		QueryTasksByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTasksByID(ctx context.Context, ids ...string) error
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignmentsByTask(ctx context.Context, taskID string) ([]Assignment, error)
		QueryAssignmentsByStudent(ctx context.Context, studentID string) ([]StudentAssignment, error)
		// CompleteAssignment atomically transitions pending -> completed and
		// returns the completion rank (1 = first completion of the task).
		// Returns ErrAlreadyCompleted when the transition already happened.
		CompleteAssignment(ctx context.Context, id string, completedAt time.Time) (Assignment, int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, teacherID string, nt NewTask) (Task, []Assignment, error)
		GetByID(ctx context.Context, id string) (Task, error)
		QueryByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]Task, error)
		QueryByStudent(ctx context.Context, studentID string) ([]StudentAssignment, error)
		Assignments(ctx context.Context, taskID string) ([]Assignment, error)
		Update(ctx context.Context, id string, ut UpdateTask) (Task, error)
		Delete(ctx context.Context, ids ...string) error
		Complete(ctx context.Context, assignmentID, studentID string) (CompletionResult, error)
	}

	service struct {
		repo    Repository
		coinSvc coin.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, coinSvc coin.ServiceInterface) *service {
	return &service{repo: repo, coinSvc: coinSvc}
}

// ErrPartialCreate reports a Task that was created while its assignment step
// failed. The Task is not retracted; callers must surface the failure.
type ErrPartialCreate struct {
	TaskID string
	Err    error
}

func (e ErrPartialCreate) Error() string {
	return fmt.Sprintf("task %s created but assigning students failed: %v", e.TaskID, e.Err)
}

func (svc *service) Create(ctx context.Context, teacherID string, nt NewTask) (Task, []Assignment, error) {
	now := core.NowFunc().UTC()
	t := Task{
		Title:       nt.Title,
		Description: nt.Description,
		Subject:     nt.Subject,
		DueDate:     nt.DueDate.UTC(),
		TeacherID:   teacherID,
		Reward:      nt.Reward,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateTaskWithAssignments(ctx, t, nt.StudentIDs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *service) QueryByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]Task, error) {
	return svc.repo.QueryTasksByTeacher(ctx, teacherID, ordering)
}

func (svc *service) QueryByStudent(ctx context.Context, studentID string) ([]StudentAssignment, error) {
	return svc.repo.QueryAssignmentsByStudent(ctx, studentID)
}

func (svc *service) Assignments(ctx context.Context, taskID string) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByTask(ctx, taskID)
}

func (svc *service) Update(ctx context.Context, id string, ut UpdateTask) (Task, error) {
	t := Task{
		ID:          id,
		Title:       ut.Title,
		Description: ut.Description,
		Subject:     ut.Subject,
		DueDate:     ut.DueDate.UTC(),
		Reward:      ut.Reward,
		UpdatedAt:   core.NowFunc().UTC(),
	}
	return svc.repo.UpdateTask(ctx, t)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteTasksByID(ctx, ids...)
}

// Complete transitions the student's Assignment to completed and awards coins.
// A replay (double click, double submit) observes the same terminal state with
// the original completion timestamp and awards nothing.
func (svc *service) Complete(ctx context.Context, assignmentID, studentID string) (CompletionResult, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "finding assignment")
	}
	if a.StudentID != studentID {
		return CompletionResult{}, core.NewAppError(core.KindForbidden, "not your assignment")
	}

	t, err := svc.repo.GetTaskByID(ctx, a.TaskID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "finding task")
	}

	completedAt := core.NowFunc().UTC()
	a, rank, err := svc.repo.CompleteAssignment(ctx, assignmentID, completedAt)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyCompleted {
			balance, bErr := svc.coinSvc.Balance(ctx, studentID)
			if bErr != nil {
				return CompletionResult{}, errors.Wrap(bErr, "reading balance")
			}
			return CompletionResult{Assignment: a, NewBalance: balance, AlreadyCompleted: true}, nil
		}
		return CompletionResult{}, errors.Wrap(err, "completing assignment")
	}

	res := CompletionResult{Assignment: a, Base: t.Reward}
	reason := "task:" + t.ID
	if _, err = svc.coinSvc.Record(ctx, studentID, coin.KindReward, reason, t.Reward); err != nil {
		return CompletionResult{}, errors.Wrap(err, "recording reward")
	}

	if t.IsPastDue(completedAt) {
		res.Penalty = t.Reward * latePenaltyPct / 100
		if res.Penalty > 0 {
			if _, err = svc.coinSvc.Record(ctx, studentID, coin.KindPenalty, reason, -res.Penalty); err != nil {
				return CompletionResult{}, errors.Wrap(err, "recording penalty")
			}
		}
	} else {
		res.Bonus = t.Reward * onTimeBonusPct / 100
		if bonus := rankBonuses[rank]; bonus > 0 {
			res.Bonus += bonus
		}
		if res.Bonus > 0 {
			if _, err = svc.coinSvc.Record(ctx, studentID, coin.KindBonus, reason, res.Bonus); err != nil {
				return CompletionResult{}, errors.Wrap(err, "recording bonus")
			}
		}
	}
	res.Total = res.Base + res.Bonus - res.Penalty

	balance, err := svc.coinSvc.Balance(ctx, studentID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "reading balance")
	}
	res.NewBalance = balance
	return res, nil
}
