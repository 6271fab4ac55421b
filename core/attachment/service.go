package attachment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/realtime"
)

var (
	// errors
	ErrNotFound = errors.New("attachment not found")
)

type (
	// ObjectStore is the binary bucket the attachment bytes live in.
	ObjectStore interface {
		// Put writes a new object; it fails if the path already exists.
		Put(ctx context.Context, path string, r io.Reader, contentType string) error
		Get(ctx context.Context, path string) ([]byte, error)
		Remove(ctx context.Context, paths ...string) error
	}

	Repository interface {
		CreateAttachment(ctx context.Context, a Attachment) (Attachment, error)
		GetAttachmentByID(ctx context.Context, id string) (Attachment, error)
		QueryAttachmentsByTask(ctx context.Context, taskID string) ([]Attachment, error)
		DeleteAttachmentsByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		Upload(ctx context.Context, taskID string, uploader user.User, na NewAttachment, content io.Reader) (Attachment, error)
		GetByID(ctx context.Context, id string) (Attachment, error)
		QueryByTask(ctx context.Context, taskID string) ([]Attachment, error)
		Download(ctx context.Context, id string) (Attachment, []byte, error)
		Delete(ctx context.Context, id string, actor user.User, actorOwnsTask bool) error
	}

	service struct {
		repo  Repository
		store ObjectStore
		feed  realtime.Feed
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, store ObjectStore, feed realtime.Feed) *service {
	return &service{repo: repo, store: store, feed: feed}
}

func (svc *service) publish(ctx context.Context, action string, a Attachment) {
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	_ = svc.feed.Publish(ctx, realtime.Event{
		Action:  action,
		Table:   realtime.TableAttachments,
		ScopeID: a.TaskID,
		RowID:   a.ID,
		At:      core.NowFunc().UTC(),
		Payload: payload,
	})
}

func (svc *service) Upload(ctx context.Context, taskID string, uploader user.User, na NewAttachment, content io.Reader) (Attachment, error) {
	if err := na.Validate(); err != nil {
		return Attachment{}, err
	}

	a := Attachment{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		UploaderID:  uploader.ID,
		Filename:    na.Filename,
		Size:        na.Size,
		ContentType: na.ContentType,
		Kind:        na.Kind,
		CreatedAt:   core.NowFunc().UTC(),
	}
	a.Path = fmt.Sprintf("tasks/%s/%s-%s", taskID, a.ID, a.Filename)

	// cap the read as well; the declared size is client input
	if err := svc.store.Put(ctx, a.Path, io.LimitReader(content, MaxSize), a.ContentType); err != nil {
		return Attachment{}, errors.Wrap(err, "storing object")
	}
	created, err := svc.repo.CreateAttachment(ctx, a)
	if err != nil {
		// best effort cleanup of the orphaned object
		_ = svc.store.Remove(ctx, a.Path)
		return Attachment{}, errors.Wrap(err, "creating attachment")
	}
	a = created
	svc.publish(ctx, realtime.ActionInsert, a)
	return a, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Attachment, error) {
	return svc.repo.GetAttachmentByID(ctx, id)
}

func (svc *service) QueryByTask(ctx context.Context, taskID string) ([]Attachment, error) {
	return svc.repo.QueryAttachmentsByTask(ctx, taskID)
}

func (svc *service) Download(ctx context.Context, id string) (Attachment, []byte, error) {
	a, err := svc.repo.GetAttachmentByID(ctx, id)
	if err != nil {
		return Attachment{}, nil, errors.Wrap(err, "finding attachment")
	}
	data, err := svc.store.Get(ctx, a.Path)
	if err != nil {
		return Attachment{}, nil, errors.Wrap(err, "reading object")
	}
	return a, data, nil
}

// Delete removes an attachment. The uploader owns their upload; the
// task-owning teacher may remove anything on their task.
func (svc *service) Delete(ctx context.Context, id string, actor user.User, actorOwnsTask bool) error {
	a, err := svc.repo.GetAttachmentByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding attachment")
	}
	if a.UploaderID != actor.ID && !actorOwnsTask && !actor.IsAdmin() {
		return core.NewAppError(core.KindForbidden, "you may only delete your own uploads")
	}
	if err = svc.repo.DeleteAttachmentsByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	_ = svc.store.Remove(ctx, a.Path)
	svc.publish(ctx, realtime.ActionDelete, a)
	return nil
}
