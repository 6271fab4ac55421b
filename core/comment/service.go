package comment

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/realtime"
)

var (
	// errors
	ErrNotFound = errors.New("comment not found")
)

type (
	Repository interface {
		CreateComment(ctx context.Context, c Comment) (Comment, error)
		// GetCommentByID returns the comment with its author display data joined.
		GetCommentByID(ctx context.Context, id string) (Comment, error)
		// QueryCommentsByTask returns the task's comments with author display
		// data joined, oldest first.
		QueryCommentsByTask(ctx context.Context, taskID string) ([]Comment, error)
		UpdateComment(ctx context.Context, c Comment) (Comment, error)
		DeleteCommentsByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, taskID string, author user.User, nc NewComment) (Comment, error)
		GetByID(ctx context.Context, id string) (Comment, error)
		QueryByTask(ctx context.Context, taskID string) ([]Comment, error)
		Update(ctx context.Context, id string, actor user.User, uc UpdateComment) (Comment, error)
		Delete(ctx context.Context, id string, actor user.User, actorOwnsTask bool) error
	}

	service struct {
		repo Repository
		feed realtime.Feed
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, feed realtime.Feed) *service {
	return &service{repo: repo, feed: feed}
}

func (svc *service) publish(ctx context.Context, action string, c Comment) {
	// insert payloads go out raw: no joined author data; consumers re-fetch
	// the single row when they need the join.
	if action == realtime.ActionInsert {
		c.AuthorName = ""
		c.AuthorRole = ""
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	_ = svc.feed.Publish(ctx, realtime.Event{
		Action:  action,
		Table:   realtime.TableComments,
		ScopeID: c.TaskID,
		RowID:   c.ID,
		At:      core.NowFunc().UTC(),
		Payload: payload,
	})
}

func (svc *service) Create(ctx context.Context, taskID string, author user.User, nc NewComment) (Comment, error) {
	now := core.NowFunc().UTC()
	c := Comment{
		TaskID:    taskID,
		AuthorID:  author.ID,
		Body:      nc.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c, err := svc.repo.CreateComment(ctx, c)
	if err != nil {
		return Comment{}, errors.Wrap(err, "creating comment")
	}
	svc.publish(ctx, realtime.ActionInsert, c)

	// return the joined row to the caller
	joined, err := svc.repo.GetCommentByID(ctx, c.ID)
	if err != nil {
		return c, nil
	}
	return joined, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Comment, error) {
	return svc.repo.GetCommentByID(ctx, id)
}

func (svc *service) QueryByTask(ctx context.Context, taskID string) ([]Comment, error) {
	return svc.repo.QueryCommentsByTask(ctx, taskID)
}

// Update edits a comment. Only the author may edit, and only within
// EditWindow of creation; clients hide the affordance past the window but the
// deadline is re-validated here.
func (svc *service) Update(ctx context.Context, id string, actor user.User, uc UpdateComment) (Comment, error) {
	c, err := svc.repo.GetCommentByID(ctx, id)
	if err != nil {
		return Comment{}, errors.Wrap(err, "finding comment")
	}
	if c.AuthorID != actor.ID {
		return Comment{}, core.NewAppError(core.KindForbidden, "you may only edit your own comments")
	}
	if !c.CanEditAt(core.NowFunc().UTC()) {
		return Comment{}, core.NewAppError(core.KindForbidden, "the edit window for this comment has closed")
	}

	c.Body = uc.Body
	c.IsEdited = true
	c.UpdatedAt = core.NowFunc().UTC()
	c, err = svc.repo.UpdateComment(ctx, c)
	if err != nil {
		return Comment{}, errors.Wrap(err, "updating comment")
	}
	svc.publish(ctx, realtime.ActionUpdate, c)
	return c, nil
}

// Delete removes a comment. The author may delete their own; the task-owning
// teacher may delete any comment on their task.
func (svc *service) Delete(ctx context.Context, id string, actor user.User, actorOwnsTask bool) error {
	c, err := svc.repo.GetCommentByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding comment")
	}
	if c.AuthorID != actor.ID && !actorOwnsTask && !actor.IsAdmin() {
		return core.NewAppError(core.KindForbidden, "you may only delete your own comments")
	}
	if err = svc.repo.DeleteCommentsByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	svc.publish(ctx, realtime.ActionDelete, c)
	return nil
}
