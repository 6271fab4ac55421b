package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/user"
)

type boardRepository struct {
	db *sqlx.DB
}

var _ board.Repository = (*boardRepository)(nil)

func NewBoardRepository(db *sqlx.DB) *boardRepository {
	return &boardRepository{db: db}
}

// standingsQuery ranks active students by balance; ties break on name so the
// ordering is stable across refreshes.
const standingsQuery = `
SELECT u.id student_id,
       u.name,
       COALESCE((SELECT SUM(ct.amount) FROM coin_transaction ct WHERE ct.user_id = u.id), 0) balance,
       (SELECT COUNT(*) FROM assignment a WHERE a.student_id = u.id AND a.status = 'completed') tasks_completed,
       RANK() OVER (ORDER BY COALESCE((SELECT SUM(ct.amount) FROM coin_transaction ct WHERE ct.user_id = u.id), 0) DESC, u.name) rank
FROM "user" u
WHERE EXISTS (SELECT 1 FROM unnest(u.roles) r WHERE r LIKE 'student:%')`

type entryRow struct {
	StudentID      string `db:"student_id"`
	Name           string `db:"name"`
	Balance        int    `db:"balance"`
	TasksCompleted int    `db:"tasks_completed"`
	Rank           int    `db:"rank"`
}

func (repo *boardRepository) QueryLeaderboard(ctx context.Context, limit int) ([]board.Entry, error) {
	var rows []entryRow
	q := standingsQuery + ` ORDER BY rank LIMIT $1`
	if err := repo.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}

	entries := make([]board.Entry, 0, len(rows))
	for _, row := range rows {
		entry := board.Entry{
			Rank:           row.Rank,
			StudentID:      row.StudentID,
			Name:           row.Name,
			Balance:        row.Balance,
			TasksCompleted: row.TasksCompleted,
		}
		if err := repo.fillCosmetics(ctx, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (repo *boardRepository) fillCosmetics(ctx context.Context, entry *board.Entry) error {
	type cosmetic struct {
		Kind  string `db:"kind"`
		Title string `db:"title"`
	}
	var equipped []cosmetic
	q := `SELECT i.kind, i.title
	      FROM inventory_item inv
	      JOIN shop_item i ON i.id = inv.item_id
	      WHERE inv.user_id = $1 AND inv.equipped
	      ORDER BY i.title`
	if err := repo.db.SelectContext(ctx, &equipped, q, entry.StudentID); err != nil {
		return errors.Wrap(err, "querying equipped items")
	}
	for _, c := range equipped {
		switch c.Kind {
		case shop.KindTitle:
			entry.EquippedTitle = c.Title
		case shop.KindBadge:
			entry.EquippedBadges = append(entry.EquippedBadges, c.Title)
		}
	}
	return nil
}

func (repo *boardRepository) GetRank(ctx context.Context, studentID string) (board.Rank, error) {
	var row entryRow
	q := `SELECT * FROM (` + standingsQuery + `) standings WHERE student_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, studentID); err != nil {
		if err == sql.ErrNoRows {
			return board.Rank{}, user.ErrNotFound
		}
		return board.Rank{}, errors.Wrap(err, "querying rank")
	}

	var total int
	q = `SELECT COUNT(*) FROM "user" u WHERE EXISTS (SELECT 1 FROM unnest(u.roles) r WHERE r LIKE 'student:%')`
	if err := repo.db.GetContext(ctx, &total, q); err != nil {
		return board.Rank{}, errors.Wrap(err, "counting students")
	}

	rank := board.Rank{
		StudentID:     studentID,
		Rank:          row.Rank,
		Balance:       row.Balance,
		TotalStudents: total,
	}
	if total > 0 {
		rank.Percentile = float64(row.Rank) / float64(total) * 100
	}
	return rank, nil
}

func (repo *boardRepository) GetTeacherStats(ctx context.Context, teacherID string) (board.TeacherStats, error) {
	stats := board.TeacherStats{}

	q := `SELECT COUNT(*) FROM task WHERE teacher_id = $1`
	if err := repo.db.GetContext(ctx, &stats.Tasks, q, teacherID); err != nil {
		return board.TeacherStats{}, errors.Wrap(err, "counting tasks")
	}

	type subjectRow struct {
		Subject   string `db:"subject"`
		Assigned  int    `db:"assigned"`
		Completed int    `db:"completed"`
	}
	var subjects []subjectRow
	q = `SELECT t.subject,
	            COUNT(a.id) assigned,
	            COUNT(a.id) FILTER (WHERE a.status = 'completed') completed
	     FROM task t
	     LEFT JOIN assignment a ON a.task_id = t.id
	     WHERE t.teacher_id = $1
	     GROUP BY t.subject
	     ORDER BY t.subject`
	if err := repo.db.SelectContext(ctx, &subjects, q, teacherID); err != nil {
		return board.TeacherStats{}, errors.Wrap(err, "aggregating subjects")
	}
	for _, s := range subjects {
		ss := board.SubjectStats{Subject: s.Subject, Assigned: s.Assigned, Completed: s.Completed}
		if s.Assigned > 0 {
			ss.CompletionRate = float64(s.Completed) / float64(s.Assigned)
		}
		stats.PerSubject = append(stats.PerSubject, ss)
		stats.Completed += s.Completed
		stats.Pending += s.Assigned - s.Completed
	}

	q = `SELECT COALESCE(SUM(ct.amount), 0)
	     FROM coin_transaction ct
	     JOIN task t ON 'task:' || t.id::text = ct.reason
	     WHERE t.teacher_id = $1 AND ct.kind IN ('reward', 'bonus')`
	if err := repo.db.GetContext(ctx, &stats.CoinsAwarded, q, teacherID); err != nil {
		return board.TeacherStats{}, errors.Wrap(err, "summing awarded coins")
	}
	return stats, nil
}
