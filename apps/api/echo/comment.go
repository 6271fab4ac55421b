package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

type commentApi struct {
	svc      comment.ServiceInterface
	taskSvc  task.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerCommentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc comment.ServiceInterface,
	taskSvc task.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := commentApi{svc: svc, taskSvc: taskSvc, userSvc: userSvc, validate: validate}

	tg := g.Group("/tasks/:id/comments", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create)

	cg := g.Group("/comments", jwt)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
}

// resolveTaskAccess loads the task and checks the caller may see it: the
// owning teacher, an assigned student or an admin. Anyone else gets a 404,
// not a 403; the task's existence is not leaked.
func resolveTaskAccess(ctx echo.Context, taskSvc task.ServiceInterface, taskID string) (task.Task, bool, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return task.Task{}, false, err
	}

	t, err := taskSvc.GetByID(ctx.Request().Context(), taskID)
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return task.Task{}, false, errHttpNotFound
		}
		return task.Task{}, false, errors.Wrap(err, "finding task by ID")
	}

	ownsTask := t.TeacherID == claims.Subject
	if ownsTask || claims.IsAdmin {
		return t, ownsTask, nil
	}
	if claims.IsStudent {
		assignments, err := taskSvc.Assignments(ctx.Request().Context(), t.ID)
		if err != nil {
			return task.Task{}, false, errors.Wrap(err, "querying assignments")
		}
		for _, a := range assignments {
			if a.StudentID == claims.Subject {
				return t, false, nil
			}
		}
	}
	return task.Task{}, false, errHttpNotFound
}

// Handlers

func (api *commentApi) query(ctx echo.Context) error {
	t, _, err := resolveTaskAccess(ctx, api.taskSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	comments, err := api.svc.QueryByTask(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []comment.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *commentApi) create(ctx echo.Context) error {
	t, _, err := resolveTaskAccess(ctx, api.taskSvc, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data comment.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Create(ctx.Request().Context(), t.ID, ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *commentApi) update(ctx echo.Context) error {
	var data comment.UpdateComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "updating comment")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *commentApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding comment")
	}
	t, err := api.taskSvc.GetByID(ctx.Request().Context(), c.TaskID)
	if err != nil {
		return errors.Wrap(err, "finding task")
	}

	if err := api.svc.Delete(ctx.Request().Context(), c.ID, ctxUsr, t.TeacherID == ctxUsr.ID); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
