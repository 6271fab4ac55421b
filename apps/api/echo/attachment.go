package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

type attachmentApi struct {
	svc     attachment.ServiceInterface
	taskSvc task.ServiceInterface
	userSvc user.ServiceInterface
}

func registerAttachmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attachment.ServiceInterface,
	taskSvc task.ServiceInterface,
	userSvc user.ServiceInterface,
) {
	api := attachmentApi{svc: svc, taskSvc: taskSvc, userSvc: userSvc}

	tg := g.Group("/tasks/:id/attachments", jwt)
	tg.GET("", api.query)
	tg.POST("", api.upload)

	ag := g.Group("/attachments", jwt)
	ag.GET("/:id/download", api.download)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *attachmentApi) query(ctx echo.Context) error {
	t, _, err := resolveTaskAccess(ctx, api.taskSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	attachments, err := api.svc.QueryByTask(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "querying attachments")
	}
	if attachments == nil {
		attachments = []attachment.Attachment{}
	}
	return ctx.JSON(http.StatusOK, attachments)
}

// upload accepts a multipart form: a "file" part and a "kind" field.
func (api *attachmentApi) upload(ctx echo.Context) error {
	t, _, err := resolveTaskAccess(ctx, api.taskSvc, ctx.Param("id"))
	if err != nil {
		return err
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return errors.Wrap(err, "reading form file")
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening form file")
	}
	defer func() { _ = file.Close() }()

	na := attachment.NewAttachment{
		Filename:    fileHdr.Filename,
		Size:        fileHdr.Size,
		ContentType: fileHdr.Header.Get(echo.HeaderContentType),
		Kind:        ctx.FormValue("kind"),
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Upload(ctx.Request().Context(), t.ID, ctxUsr, na, file)
	if err != nil {
		return errors.Wrap(err, "uploading attachment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *attachmentApi) download(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attachment")
	}
	if _, _, err = resolveTaskAccess(ctx, api.taskSvc, a.TaskID); err != nil {
		return err
	}

	a, data, err := api.svc.Download(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "downloading attachment")
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", a.Filename),
	)
	return ctx.Blob(http.StatusOK, a.ContentType, data)
}

func (api *attachmentApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding attachment")
	}
	t, err := api.taskSvc.GetByID(ctx.Request().Context(), a.TaskID)
	if err != nil {
		return errors.Wrap(err, "finding task")
	}

	if err := api.svc.Delete(ctx.Request().Context(), a.ID, ctxUsr, t.TeacherID == ctxUsr.ID); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
