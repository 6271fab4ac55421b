package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/user"
)

const commentColumns = `c.id, c.task_id, c.author_id, c.body, c.is_edited, c.created_at, c.updated_at,
	u.name author_name, u.roles author_roles`

type commentRow struct {
	ID          string         `db:"id"`
	TaskID      string         `db:"task_id"`
	AuthorID    string         `db:"author_id"`
	Body        string         `db:"body"`
	IsEdited    bool           `db:"is_edited"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	AuthorName  string         `db:"author_name"`
	AuthorRoles pq.StringArray `db:"author_roles"`
}

func (row commentRow) toComment() comment.Comment {
	author := user.User{Roles: row.AuthorRoles}
	role := user.RoleStudent
	switch {
	case author.IsTeacher():
		role = user.RoleTeacher
	case author.IsAdmin():
		role = user.RoleAdmin
	}
	return comment.Comment{
		ID:         row.ID,
		TaskID:     row.TaskID,
		AuthorID:   row.AuthorID,
		Body:       row.Body,
		IsEdited:   row.IsEdited,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
		AuthorName: row.AuthorName,
		AuthorRole: role,
	}
}

type commentRepository struct {
	db *sqlx.DB
}

var _ comment.Repository = (*commentRepository)(nil)

func NewCommentRepository(db *sqlx.DB) *commentRepository {
	return &commentRepository{db: db}
}

func (repo *commentRepository) CreateComment(ctx context.Context, c comment.Comment) (comment.Comment, error) {
	c.ID = uuid.New().String()
	q := `INSERT INTO comment (id, task_id, author_id, body, is_edited, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, c.ID, c.TaskID, c.AuthorID, c.Body, c.IsEdited, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return comment.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (repo *commentRepository) GetCommentByID(ctx context.Context, id string) (comment.Comment, error) {
	var row commentRow
	q := `SELECT ` + commentColumns + ` FROM comment c JOIN "user" u ON u.id = c.author_id WHERE c.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return comment.Comment{}, comment.ErrNotFound
		}
		return comment.Comment{}, errors.Wrap(err, "getting comment")
	}
	return row.toComment(), nil
}

func (repo *commentRepository) QueryCommentsByTask(ctx context.Context, taskID string) ([]comment.Comment, error) {
	var rows []commentRow
	q := `SELECT ` + commentColumns + ` FROM comment c JOIN "user" u ON u.id = c.author_id
	      WHERE c.task_id = $1 ORDER BY c.created_at, c.id`
	if err := repo.db.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.toComment())
	}
	return comments, nil
}

func (repo *commentRepository) UpdateComment(ctx context.Context, c comment.Comment) (comment.Comment, error) {
	q := `UPDATE comment SET body = $1, is_edited = $2, updated_at = $3 WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, q, c.Body, c.IsEdited, c.UpdatedAt, c.ID)
	if err != nil {
		return comment.Comment{}, errors.Wrap(err, "updating comment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return comment.Comment{}, comment.ErrNotFound
	}
	return repo.GetCommentByID(ctx, c.ID)
}

func (repo *commentRepository) DeleteCommentsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM comment WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting comments")
}
