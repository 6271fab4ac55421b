package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/attachment"
)

type attachmentRepository struct {
	db *DB
}

var _ attachment.Repository = (*attachmentRepository)(nil)

func NewAttachmentRepository(db *DB) *attachmentRepository {
	return &attachmentRepository{db: db}
}

func (repo *attachmentRepository) CreateAttachment(_ context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := a
	repo.db.attachments[a.ID] = &stored
	return a, nil
}

func (repo *attachmentRepository) GetAttachmentByID(_ context.Context, id string) (attachment.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.attachments[id]; ok {
		return *a, nil
	}
	return attachment.Attachment{}, attachment.ErrNotFound
}

func (repo *attachmentRepository) QueryAttachmentsByTask(_ context.Context, taskID string) ([]attachment.Attachment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attachments := make([]attachment.Attachment, 0)
	for _, a := range repo.db.attachments {
		if a.TaskID == taskID {
			attachments = append(attachments, *a)
		}
	}
	sort.Slice(attachments, func(i, j int) bool {
		if attachments[i].CreatedAt.Equal(attachments[j].CreatedAt) {
			return attachments[i].ID < attachments[j].ID
		}
		return attachments[i].CreatedAt.Before(attachments[j].CreatedAt)
	})
	return attachments, nil
}

func (repo *attachmentRepository) DeleteAttachmentsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.attachments, id)
	}
	return nil
}
