package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/task"
)

const (
	taskColumns       = `id, teacher_id, title, description, subject, reward, due_date, created_at, updated_at`
	assignmentColumns = `id, task_id, student_id, status, completed_at, created_at`
)

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTaskWithAssignments(ctx context.Context, t task.Task, studentIDs []string) (task.Task, []task.Assignment, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	t.ID = uuid.New().String()
	q := `INSERT INTO task (` + taskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, q,
		t.ID, t.TeacherID, t.Title, t.Description, t.Subject, t.Reward, t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, nil, errors.Wrap(err, "inserting task")
	}

	assignments := make([]task.Assignment, 0, len(studentIDs))
	q = `INSERT INTO assignment (id, task_id, student_id, status, created_at) VALUES ($1, $2, $3, $4, $5)`
	for _, studentID := range studentIDs {
		a := task.Assignment{
			ID:        uuid.New().String(),
			TaskID:    t.ID,
			StudentID: studentID,
			Status:    task.StatusPending,
			CreatedAt: t.CreatedAt,
		}
		if _, err = tx.ExecContext(ctx, q, a.ID, a.TaskID, a.StudentID, a.Status, a.CreatedAt); err != nil {
			return task.Task{}, nil, errors.Wrap(err, "inserting assignment")
		}
		assignments = append(assignments, a)
	}

	if err = tx.Commit(); err != nil {
		return task.Task{}, nil, errors.Wrap(err, "committing transaction")
	}
	return t, assignments, nil
}

type assignmentRow struct {
	ID          string    `db:"id"`
	TaskID      string    `db:"task_id"`
	StudentID   string    `db:"student_id"`
	Status      string    `db:"status"`
	CompletedAt null.Time `db:"completed_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row assignmentRow) toAssignment() task.Assignment {
	return task.Assignment{
		ID:          row.ID,
		TaskID:      row.TaskID,
		StudentID:   row.StudentID,
		Status:      row.Status,
		CompletedAt: row.CompletedAt,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type taskRow struct {
	ID          string    `db:"id"`
	TeacherID   string    `db:"teacher_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Subject     string    `db:"subject"`
	Reward      int       `db:"reward"`
	DueDate     time.Time `db:"due_date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row taskRow) toTask() task.Task {
	return task.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Subject:     row.Subject,
		DueDate:     row.DueDate.UTC(),
		TeacherID:   row.TeacherID,
		Reward:      row.Reward,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	var row taskRow
	q := `SELECT ` + taskColumns + ` FROM task WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "getting task")
	}
	return row.toTask(), nil
}

var taskOrderFields = map[string]bool{"title": true, "due_date": true, "created_at": true}

func (repo *taskRepository) QueryTasksByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]task.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM task WHERE teacher_id = $1` + orderBy(ordering, taskOrderFields, "created_at ASC")
	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	var row taskRow
	q := `UPDATE task SET title = $1, description = $2, subject = $3, due_date = $4, reward = $5, updated_at = $6
	      WHERE id = $7 RETURNING ` + taskColumns
	err := repo.db.GetContext(ctx, &row, q, t.Title, t.Description, t.Subject, t.DueDate, t.Reward, t.UpdatedAt, t.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM task WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting tasks")
}

func (repo *taskRepository) GetAssignmentByID(ctx context.Context, id string) (task.Assignment, error) {
	var row assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Assignment{}, task.ErrAssignmentNotFound
		}
		return task.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *taskRepository) QueryAssignmentsByTask(ctx context.Context, taskID string) ([]task.Assignment, error) {
	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignment WHERE task_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]task.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toAssignment())
	}
	return assignments, nil
}

func (repo *taskRepository) QueryAssignmentsByStudent(ctx context.Context, studentID string) ([]task.StudentAssignment, error) {
	type row struct {
		assignmentRow
		Task taskRow `db:"task"`
	}
	var rows []row
	q := `SELECT a.id, a.task_id, a.student_id, a.status, a.completed_at, a.created_at,
	             t.id "task.id", t.teacher_id "task.teacher_id", t.title "task.title",
	             t.description "task.description", t.subject "task.subject", t.reward "task.reward",
	             t.due_date "task.due_date", t.created_at "task.created_at", t.updated_at "task.updated_at"
	      FROM assignment a
	      JOIN task t ON t.id = a.task_id
	      WHERE a.student_id = $1
	      ORDER BY t.due_date`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	assignments := make([]task.StudentAssignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, task.StudentAssignment{Assignment: r.toAssignment(), Task: r.Task.toTask()})
	}
	return assignments, nil
}

func (repo *taskRepository) CompleteAssignment(ctx context.Context, id string, completedAt time.Time) (task.Assignment, int, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Assignment{}, 0, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// the guarded UPDATE makes the pending -> completed transition happen once
	var row assignmentRow
	q := `UPDATE assignment SET status = $1, completed_at = $2
	      WHERE id = $3 AND status = $4 RETURNING ` + assignmentColumns
	err = tx.GetContext(ctx, &row, q, task.StatusCompleted, completedAt, id, task.StatusPending)
	if err != nil {
		if err == sql.ErrNoRows {
			// completed already, or missing entirely
			q = `SELECT ` + assignmentColumns + ` FROM assignment WHERE id = $1`
			if err = tx.GetContext(ctx, &row, q, id); err != nil {
				if err == sql.ErrNoRows {
					return task.Assignment{}, 0, task.ErrAssignmentNotFound
				}
				return task.Assignment{}, 0, errors.Wrap(err, "getting assignment")
			}
			return row.toAssignment(), 0, task.ErrAlreadyCompleted
		}
		return task.Assignment{}, 0, errors.Wrap(err, "completing assignment")
	}

	var rank int
	q = `SELECT COUNT(*) FROM assignment WHERE task_id = $1 AND status = $2`
	if err = tx.GetContext(ctx, &rank, q, row.TaskID, task.StatusCompleted); err != nil {
		return task.Assignment{}, 0, errors.Wrap(err, "counting completions")
	}

	if err = tx.Commit(); err != nil {
		return task.Assignment{}, 0, errors.Wrap(err, "committing transaction")
	}
	return row.toAssignment(), rank, nil
}
