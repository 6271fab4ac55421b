package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

var errTaskNotFoundInCtx = errors.New("task object not found in echo.Context")

type taskApi struct {
	svc      task.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerTaskAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc task.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := taskApi{svc: svc, userSvc: userSvc, validate: validate}

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.create, teacherMiddleware())
	tg.GET("", api.query, teacherMiddleware())
	tg.GET("/assigned", api.queryAssigned, studentMiddleware())

	// detail endpoints; owning teacher or admin only
	dg := tg.Group("/:id", taskOwnerMiddleware(svc, userSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/assignments", api.assignments)

	ag := g.Group("/assignments", jwt)
	ag.POST("/:id/complete", api.complete, studentMiddleware())
}

// Handlers

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	t, assignments, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, TaskResponse{Task: t, Assignments: assignments})
}

func (api *taskApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.QueryByTeacher(ctx.Request().Context(), claims.Subject, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) queryAssigned(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.QueryByStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []task.StudentAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotFoundInCtx, "retrieving object from context")
	}

	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(t, api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), t.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) assignments(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotFoundInCtx, "retrieving object from context")
	}
	assignments, err := api.svc.Assignments(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []task.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// complete marks the caller's assignment done. Replays are safe; the original
// completion is returned with no further coin movement.
func (api *taskApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Complete(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "completing assignment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func taskOwnerMiddleware(svc task.ServiceInterface, userSvc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			t, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == task.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding task by ID")
			}
			if t.TeacherID == claims.Subject || claims.IsAdmin {
				ctx.Set("object", t)
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}

type TaskResponse struct {
	Task        task.Task         `json:"task"`
	Assignments []task.Assignment `json:"assignments"`
}
