package client_test

import (
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/darasa/client"
	"github.com/trezcool/darasa/core/comment"
)

func TestCommentStore_localValidation(t *testing.T) {
	teacher := createTeacher(t, "Quiet Teacher", "qtteach1")
	student := createStudent(t, "Quiet Student", "qtstud1")

	transport := new(countingTransport)
	gw := client.NewGateway(srv.URL, client.WithHTTPClient(&http.Client{Transport: transport}))
	s := client.NewSession(gw)
	if err := s.SignIn(testCtx(t), student.Username, testPassword); err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	store := client.NewCommentStore(gw, tsk.ID)
	baseline := atomic.LoadInt64(&transport.calls)
	long := strings.Repeat("x", comment.MaxBodyLen+1)

	t.Run("empty body never leaves the machine", func(t *testing.T) {
		if err := store.Post(testCtx(t), "   "); err == nil {
			t.Fatal("expected a validation error")
		}
		if got := atomic.LoadInt64(&transport.calls); got != baseline {
			t.Errorf("made %d network calls, want 0", got-baseline)
		}
	})

	t.Run("oversized body never leaves the machine", func(t *testing.T) {
		if err := store.Post(testCtx(t), long); err == nil {
			t.Fatal("expected a validation error")
		}
		if err := store.Update(testCtx(t), "irrelevant", long); err == nil {
			t.Fatal("expected a validation error")
		}
		if got := atomic.LoadInt64(&transport.calls); got != baseline {
			t.Errorf("made %d network calls, want 0", got-baseline)
		}
	})

	if got := store.Comments(); len(got) != 0 {
		t.Errorf("rejected posts must not appear locally; has %+v", got)
	}
}

func TestCommentStore_twoClients(t *testing.T) {
	teacher := createTeacher(t, "Live Teacher", "liveteach")
	student := createStudent(t, "Live Student", "livestud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gwA, _ := signIn(t, student.Username)
	gwB, _ := signIn(t, teacher.Username)

	storeA := client.NewCommentStore(gwA, tsk.ID)
	storeB := client.NewCommentStore(gwB, tsk.ID)
	if err := storeA.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store A: %v", err)
	}
	defer storeA.Close()
	if err := storeB.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store B: %v", err)
	}
	defer storeB.Close()

	if err := storeA.Post(testCtx(t), "Hello"); err != nil {
		t.Fatalf("Post() failed: %v", err)
	}

	// A shows the comment immediately (optimistically)
	if got := storeA.Comments(); len(got) != 1 || got[0].Body != "Hello" {
		t.Fatalf("store A = %+v, want the one optimistic comment", got)
	}

	// B gains exactly one entry via the feed
	if !waitFor(t, 3*time.Second, func() bool { return len(storeB.Comments()) == 1 }) {
		t.Fatalf("store B never saw the comment; has %+v", storeB.Comments())
	}
	if got := storeB.Comments(); got[0].Body != "Hello" || got[0].AuthorID != student.ID {
		t.Errorf("store B comment = %+v", got[0])
	}

	// A's own echo must not duplicate; give the feed time to misbehave
	time.Sleep(300 * time.Millisecond)
	got := storeA.Comments()
	if len(got) != 1 {
		t.Fatalf("store A has %d comments after the echo, want exactly 1", len(got))
	}
	if got[0].AuthorID != student.ID || got[0].ID == "" {
		t.Errorf("echo did not collapse onto the server row: %+v", got[0])
	}
}

func TestCommentStore_optimisticDeleteRollback(t *testing.T) {
	teacher := createTeacher(t, "Moderating Teacher", "modteach1")
	student := createStudent(t, "Pushy Student", "pshstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gwB, _ := signIn(t, teacher.Username)
	posted, err := gwB.PostComment(testCtx(t), tsk.ID, "Read chapter 3 first.")
	if err != nil {
		t.Fatalf("PostComment() failed: %v", err)
	}

	gwA, _ := signIn(t, student.Username)
	store := client.NewCommentStore(gwA, tsk.ID)
	if err := store.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	// the delete is applied locally right away, then rolled back when the
	// server refuses it
	err = store.Delete(testCtx(t), posted.ID)
	if err == nil || client.KindOf(err) != client.KindForbidden {
		t.Fatalf("got %v, want a forbidden error", err)
	}
	if !waitFor(t, 3*time.Second, func() bool {
		comments := store.Comments()
		return len(comments) == 1 && comments[0].ID == posted.ID
	}) {
		t.Errorf("comment was not restored after the failed delete; has %+v", store.Comments())
	}
}

func TestCommentStore_editWindow(t *testing.T) {
	teacher := createTeacher(t, "Window Teacher", "wndteach1")
	student := createStudent(t, "Window Student", "wndstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gw, _ := signIn(t, student.Username)
	store := client.NewCommentStore(gw, tsk.ID)
	if err := store.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	if err := store.Post(testCtx(t), "first draft"); err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	posted := store.Comments()[0]

	if !store.CanEdit(posted.ID) {
		t.Error("a fresh comment must be editable")
	}
	if err := store.Update(testCtx(t), posted.ID, "second draft"); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	got := store.Comments()[0]
	if got.Body != "second draft" || !got.IsEdited {
		t.Errorf("comment = %+v, want the edited body flagged is_edited", got)
	}
}

func TestCommentStore_closedAppliesNothing(t *testing.T) {
	teacher := createTeacher(t, "Closing Teacher", "clsteach1")
	student := createStudent(t, "Closing Student", "clsstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gw, _ := signIn(t, student.Username)
	store := client.NewCommentStore(gw, tsk.ID)
	if err := store.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	store.Close()

	if err := store.Post(testCtx(t), "too late"); err == nil {
		t.Error("posting on a closed store must fail")
	}
	if err := store.Open(testCtx(t)); err == nil {
		t.Error("re-opening a closed store must fail")
	}
}
