package board

import "context"

const DefaultLimit = 25

type (
	// Repository computes standings server-side; ranking never happens on
	// clients.
	Repository interface {
		QueryLeaderboard(ctx context.Context, limit int) ([]Entry, error)
		GetRank(ctx context.Context, studentID string) (Rank, error)
		GetTeacherStats(ctx context.Context, teacherID string) (TeacherStats, error)
	}

	ServiceInterface interface {
		Leaderboard(ctx context.Context, limit int) ([]Entry, error)
		StudentRank(ctx context.Context, studentID string) (Rank, error)
		TeacherStats(ctx context.Context, teacherID string) (TeacherStats, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultLimit
	}
	return svc.repo.QueryLeaderboard(ctx, limit)
}

func (svc *service) StudentRank(ctx context.Context, studentID string) (Rank, error) {
	return svc.repo.GetRank(ctx, studentID)
}

func (svc *service) TeacherStats(ctx context.Context, teacherID string) (TeacherStats, error) {
	return svc.repo.GetTeacherStats(ctx, teacherID)
}
