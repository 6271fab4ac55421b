package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTaskWithAssignments(_ context.Context, t task.Task, studentIDs []string) (task.Task, []task.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = uuid.New().String()
	repo.db.tasks[t.ID] = &t

	assignments := make([]task.Assignment, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		a := task.Assignment{
			ID:        uuid.New().String(),
			TaskID:    t.ID,
			StudentID: studentID,
			Status:    task.StatusPending,
			CreatedAt: t.CreatedAt,
		}
		repo.db.assignments[a.ID] = &a
		assignments = append(assignments, a)
	}
	return t, assignments, nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id string) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasksByTeacher(_ context.Context, teacherID string, ordering []core.DBOrdering) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if t.TeacherID == teacherID {
			tasks = append(tasks, *t)
		}
	}

	descending := false
	field := "created_at"
	if len(ordering) > 0 {
		field = ordering[0].Field
		descending = !ordering[0].Ascending
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		var less bool
		switch field {
		case "due_date":
			less = tasks[i].DueDate.Before(tasks[j].DueDate)
		case "title":
			less = tasks[i].Title < tasks[j].Title
		default:
			less = tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		if descending {
			return !less
		}
		return less
	})
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origTask, ok := repo.db.tasks[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	origTask.Title = t.Title
	origTask.Description = t.Description
	origTask.Subject = t.Subject
	origTask.DueDate = t.DueDate
	origTask.Reward = t.Reward
	origTask.UpdatedAt = t.UpdatedAt
	return *origTask, nil
}

func (repo *taskRepository) DeleteTasksByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.tasks, id)
		for aid, a := range repo.db.assignments {
			if a.TaskID == id {
				delete(repo.db.assignments, aid)
			}
		}
	}
	return nil
}

func (repo *taskRepository) GetAssignmentByID(_ context.Context, id string) (task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return task.Assignment{}, task.ErrAssignmentNotFound
}

func (repo *taskRepository) QueryAssignmentsByTask(_ context.Context, taskID string) ([]task.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]task.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.TaskID == taskID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *taskRepository) QueryAssignmentsByStudent(_ context.Context, studentID string) ([]task.StudentAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]task.StudentAssignment, 0)
	for _, a := range repo.db.assignments {
		if a.StudentID != studentID {
			continue
		}
		t, ok := repo.db.tasks[a.TaskID]
		if !ok {
			continue
		}
		assignments = append(assignments, task.StudentAssignment{Assignment: *a, Task: *t})
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].Task.DueDate.Before(assignments[j].Task.DueDate)
	})
	return assignments, nil
}

func (repo *taskRepository) CompleteAssignment(_ context.Context, id string, completedAt time.Time) (task.Assignment, int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return task.Assignment{}, 0, task.ErrAssignmentNotFound
	}
	if a.Status == task.StatusCompleted {
		return *a, 0, task.ErrAlreadyCompleted
	}

	a.Status = task.StatusCompleted
	a.CompletedAt = null.TimeFrom(completedAt)

	rank := 0
	for _, other := range repo.db.assignments {
		if other.TaskID == a.TaskID && other.Status == task.StatusCompleted {
			rank++
		}
	}
	return *a, rank, nil
}
