package comment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/realtime"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

var (
	student = user.User{ID: "s1", Name: "Student One", Roles: user.StudentRoles}
	teacher = user.User{ID: "t1", Name: "Teacher One", Roles: user.TeacherRoles}
)

func setup(t *testing.T) (comment.ServiceInterface, realtime.Feed) {
	t.Helper()
	feed := realtime.NewHub()
	return comment.NewService(inmemdb.NewCommentRepository(inmemdb.NewDB()), feed), feed
}

func at(t *testing.T, tstamp time.Time) {
	t.Helper()
	core.NowFunc = func() time.Time { return tstamp }
	t.Cleanup(func() { core.NowFunc = time.Now })
}

func Test_service_Create_publishes(t *testing.T) {
	svc, feed := setup(t)
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, realtime.TableComments, "task1")
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer cancel()

	c, err := svc.Create(ctx, "task1", student, comment.NewComment{Body: "hello"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if c.AuthorID != student.ID || c.Body != "hello" || c.IsEdited {
		t.Errorf("unexpected comment %+v", c)
	}

	select {
	case ev := <-events:
		if ev.Action != realtime.ActionInsert || ev.RowID != c.ID || ev.ScopeID != "task1" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no insert event received")
	}
}

func Test_service_Update_window(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	at(t, now)

	c, err := svc.Create(ctx, "task1", student, comment.NewComment{Body: "frist"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// inside the window
	at(t, now.Add(comment.EditWindow-time.Second))
	c, err = svc.Update(ctx, c.ID, student, comment.UpdateComment{Body: "first"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if c.Body != "first" || !c.IsEdited {
		t.Errorf("unexpected comment %+v", c)
	}

	// past the window
	at(t, now.Add(comment.EditWindow))
	if _, err = svc.Update(ctx, c.ID, student, comment.UpdateComment{Body: "too late"}); core.KindOf(err) != core.KindForbidden {
		t.Errorf("editing past the window: got %v, want forbidden", err)
	}

	// only the author may edit, even inside the window
	at(t, now.Add(time.Minute))
	if _, err = svc.Update(ctx, c.ID, teacher, comment.UpdateComment{Body: "hijack"}); core.KindOf(err) != core.KindForbidden {
		t.Errorf("editing someone else's comment: got %v, want forbidden", err)
	}
}

func Test_service_Delete_permissions(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "task1", student, comment.NewComment{Body: "remove me"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	other := user.User{ID: "s2", Name: "Student Two", Roles: user.StudentRoles}
	if err = svc.Delete(ctx, c.ID, other, false); core.KindOf(err) != core.KindForbidden {
		t.Errorf("deleting someone else's comment: got %v, want forbidden", err)
	}

	// the task-owning teacher may delete any comment on their task
	if err = svc.Delete(ctx, c.ID, teacher, true); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err = svc.GetByID(ctx, c.ID); errors.Cause(err) != comment.ErrNotFound {
		t.Errorf("got %v, want %v", err, comment.ErrNotFound)
	}
}

func Test_service_QueryByTask_order(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	base := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three"} {
		at(t, base.Add(time.Duration(i)*time.Minute))
		if _, err := svc.Create(ctx, "task1", student, comment.NewComment{Body: body}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	comments, err := svc.QueryByTask(ctx, "task1")
	if err != nil {
		t.Fatalf("QueryByTask() failed: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("got %d comments, want 3", len(comments))
	}
	for i, body := range []string{"one", "two", "three"} {
		if comments[i].Body != body {
			t.Errorf("comments[%d].Body = %s, want %s (oldest first)", i, comments[i].Body, body)
		}
	}
}
