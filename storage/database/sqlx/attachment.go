package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attachment"
)

const attachmentColumns = `id, task_id, uploader_id, kind, filename, content_type, size, path, created_at`

type attachmentRow struct {
	ID          string    `db:"id"`
	TaskID      string    `db:"task_id"`
	UploaderID  string    `db:"uploader_id"`
	Kind        string    `db:"kind"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	Path        string    `db:"path"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row attachmentRow) toAttachment() attachment.Attachment {
	return attachment.Attachment{
		ID:          row.ID,
		TaskID:      row.TaskID,
		UploaderID:  row.UploaderID,
		Path:        row.Path,
		Filename:    row.Filename,
		Size:        row.Size,
		ContentType: row.ContentType,
		Kind:        row.Kind,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type attachmentRepository struct {
	db *sqlx.DB
}

var _ attachment.Repository = (*attachmentRepository)(nil)

func NewAttachmentRepository(db *sqlx.DB) *attachmentRepository {
	return &attachmentRepository{db: db}
}

// CreateAttachment keeps the caller-supplied ID; the object was already stored
// under a path derived from it.
func (repo *attachmentRepository) CreateAttachment(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	q := `INSERT INTO attachment (` + attachmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q,
		a.ID, a.TaskID, a.UploaderID, a.Kind, a.Filename, a.ContentType, a.Size, a.Path, a.CreatedAt)
	if err != nil {
		return attachment.Attachment{}, errors.Wrap(err, "inserting attachment")
	}
	return a, nil
}

func (repo *attachmentRepository) GetAttachmentByID(ctx context.Context, id string) (attachment.Attachment, error) {
	var row attachmentRow
	q := `SELECT ` + attachmentColumns + ` FROM attachment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return attachment.Attachment{}, attachment.ErrNotFound
		}
		return attachment.Attachment{}, errors.Wrap(err, "getting attachment")
	}
	return row.toAttachment(), nil
}

func (repo *attachmentRepository) QueryAttachmentsByTask(ctx context.Context, taskID string) ([]attachment.Attachment, error) {
	var rows []attachmentRow
	q := `SELECT ` + attachmentColumns + ` FROM attachment WHERE task_id = $1 ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, taskID); err != nil {
		return nil, errors.Wrap(err, "querying attachments")
	}
	attachments := make([]attachment.Attachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.toAttachment())
	}
	return attachments, nil
}

func (repo *attachmentRepository) DeleteAttachmentsByID(ctx context.Context, ids ...string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM attachment WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting attachments")
}
