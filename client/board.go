package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/trezcool/darasa/core/board"
)

// Board calls are read-only; no local store is kept beyond what callers hold.

func (g *Gateway) Leaderboard(ctx context.Context, limit int) ([]board.Entry, error) {
	path := "/v1/board/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []board.Entry
	err := g.do(ctx, http.MethodGet, path, nil, &entries)
	return entries, err
}

func (g *Gateway) MyRank(ctx context.Context) (board.Rank, error) {
	var rank board.Rank
	err := g.do(ctx, http.MethodGet, "/v1/board/me", nil, &rank)
	return rank, err
}

func (g *Gateway) TeacherStats(ctx context.Context) (board.TeacherStats, error) {
	var stats board.TeacherStats
	err := g.do(ctx, http.MethodGet, "/v1/board/teacher-stats", nil, &stats)
	return stats, err
}
