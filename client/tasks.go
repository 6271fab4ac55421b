package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/task"
)

// TaskStore is a plain fetch/mutate cache; tasks have no optimistic writes,
// mutations re-fetch or patch directly from the server response.
type TaskStore struct {
	gw *Gateway

	mu       sync.Mutex
	tasks    []task.Task
	assigned []task.StudentAssignment
}

func NewTaskStore(gw *Gateway) *TaskStore {
	return &TaskStore{gw: gw}
}

// RefreshTeaching reloads the teacher view.
func (s *TaskStore) RefreshTeaching(ctx context.Context) ([]task.Task, error) {
	tasks, err := s.gw.Tasks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching tasks")
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	return tasks, nil
}

// RefreshAssigned reloads the student view.
func (s *TaskStore) RefreshAssigned(ctx context.Context) ([]task.StudentAssignment, error) {
	assigned, err := s.gw.AssignedTasks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching assignments")
	}
	s.mu.Lock()
	s.assigned = assigned
	s.mu.Unlock()
	return assigned, nil
}

func (s *TaskStore) Create(ctx context.Context, nt task.NewTask) (task.Task, []task.Assignment, error) {
	t, assignments, err := s.gw.CreateTask(ctx, nt)
	if err != nil {
		return task.Task{}, nil, errors.Wrap(err, "creating task")
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t, assignments, nil
}

// Complete marks an assignment done and patches the local row with the
// server's terminal state. The payout is displayed as returned, never
// recomputed.
func (s *TaskStore) Complete(ctx context.Context, assignmentID string) (task.CompletionResult, error) {
	res, err := s.gw.CompleteAssignment(ctx, assignmentID)
	if err != nil {
		return task.CompletionResult{}, errors.Wrap(err, "completing assignment")
	}

	s.mu.Lock()
	for i := range s.assigned {
		if s.assigned[i].ID == res.Assignment.ID {
			s.assigned[i].Assignment = res.Assignment
			break
		}
	}
	s.mu.Unlock()
	return res, nil
}

func (s *TaskStore) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *TaskStore) Assigned() []task.StudentAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.StudentAssignment, len(s.assigned))
	copy(out, s.assigned)
	return out
}

// Gateway calls

// taskResponse mirrors the server's create payload.
type taskResponse struct {
	Task        task.Task         `json:"task"`
	Assignments []task.Assignment `json:"assignments"`
}

func (g *Gateway) Tasks(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	err := g.do(ctx, http.MethodGet, "/v1/tasks", nil, &tasks)
	return tasks, err
}

func (g *Gateway) AssignedTasks(ctx context.Context) ([]task.StudentAssignment, error) {
	var assigned []task.StudentAssignment
	err := g.do(ctx, http.MethodGet, "/v1/tasks/assigned", nil, &assigned)
	return assigned, err
}

func (g *Gateway) Task(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	err := g.do(ctx, http.MethodGet, "/v1/tasks/"+id, nil, &t)
	return t, err
}

func (g *Gateway) CreateTask(ctx context.Context, nt task.NewTask) (task.Task, []task.Assignment, error) {
	var resp taskResponse
	err := g.do(ctx, http.MethodPost, "/v1/tasks", nt, &resp)
	return resp.Task, resp.Assignments, err
}

func (g *Gateway) UpdateTask(ctx context.Context, id string, ut task.UpdateTask) (task.Task, error) {
	var t task.Task
	err := g.do(ctx, http.MethodPut, "/v1/tasks/"+id, ut, &t)
	return t, err
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/v1/tasks/"+id, nil, nil)
}

func (g *Gateway) TaskAssignments(ctx context.Context, taskID string) ([]task.Assignment, error) {
	var assignments []task.Assignment
	err := g.do(ctx, http.MethodGet, "/v1/tasks/"+taskID+"/assignments", nil, &assignments)
	return assignments, err
}

func (g *Gateway) CompleteAssignment(ctx context.Context, id string) (task.CompletionResult, error) {
	var res task.CompletionResult
	err := g.do(ctx, http.MethodPost, "/v1/assignments/"+id+"/complete", nil, &res)
	return res, err
}
