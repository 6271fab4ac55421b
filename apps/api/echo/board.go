package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/board"
)

type boardApi struct {
	svc board.ServiceInterface
}

func registerBoardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc board.ServiceInterface) {
	api := boardApi{svc: svc}

	bg := g.Group("/board", jwt)
	bg.GET("/leaderboard", api.leaderboard)
	bg.GET("/me", api.me, studentMiddleware())
	bg.GET("/teacher-stats", api.teacherStats, teacherMiddleware())
}

// Handlers

func (api *boardApi) leaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "querying leaderboard")
	}
	if entries == nil {
		entries = []board.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *boardApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rank, err := api.svc.StudentRank(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting rank")
	}
	return ctx.JSON(http.StatusOK, rank)
}

func (api *boardApi) teacherStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.TeacherStats(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting teacher stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
