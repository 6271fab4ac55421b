package client_test

import (
	"bytes"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/darasa/client"
	"github.com/trezcool/darasa/core/attachment"
)

// countingTransport counts round trips; local validation must not produce any.
type countingTransport struct {
	calls int64
}

func (ct *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt64(&ct.calls, 1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestAttachmentStore_localValidation(t *testing.T) {
	teacher := createTeacher(t, "Valid Teacher", "valteach1")

	transport := new(countingTransport)
	gw := client.NewGateway(srv.URL, client.WithHTTPClient(&http.Client{Transport: transport}))
	s := client.NewSession(gw)
	if err := s.SignIn(testCtx(t), teacher.Username, testPassword); err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due)

	store := client.NewAttachmentStore(gw, tsk.ID)
	baseline := atomic.LoadInt64(&transport.calls)

	t.Run("oversized file never leaves the machine", func(t *testing.T) {
		big := make([]byte, attachment.MaxSize+1)
		_, err := store.Upload(testCtx(t), "huge.pdf", "application/pdf", attachment.KindTeacherMaterial, big)
		if err == nil {
			t.Fatal("expected a validation error")
		}
		if got := atomic.LoadInt64(&transport.calls); got != baseline {
			t.Errorf("made %d network calls, want 0", got-baseline)
		}
	})

	t.Run("disallowed MIME never leaves the machine", func(t *testing.T) {
		_, err := store.Upload(testCtx(t), "script.sh", "application/x-sh", attachment.KindTeacherMaterial, []byte("#!/bin/sh"))
		if err == nil {
			t.Fatal("expected a validation error")
		}
		if got := atomic.LoadInt64(&transport.calls); got != baseline {
			t.Errorf("made %d network calls, want 0", got-baseline)
		}
	})
}

func TestAttachmentStore_uploadDownload(t *testing.T) {
	teacher := createTeacher(t, "Upload Teacher", "uplteach1")
	student := createStudent(t, "Upload Student", "uplstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gw, _ := signIn(t, teacher.Username)
	store := client.NewAttachmentStore(gw, tsk.ID)
	if err := store.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	content := []byte("page 1 of the worksheet")
	uploaded, err := store.Upload(testCtx(t), "worksheet.txt", "text/plain", attachment.KindTeacherMaterial, content)
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if got := store.Attachments(); len(got) != 1 || got[0].ID != uploaded.ID {
		t.Fatalf("store = %+v, want the uploaded attachment", got)
	}

	data, err := store.Download(testCtx(t), uploaded.ID)
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("downloaded bytes differ from the upload")
	}

	t.Run("the student's store picks it up off the feed", func(t *testing.T) {
		gwS, _ := signIn(t, student.Username)
		storeS := client.NewAttachmentStore(gwS, tsk.ID)
		if err := storeS.Open(testCtx(t)); err != nil {
			t.Fatalf("opening store: %v", err)
		}
		defer storeS.Close()

		if !waitFor(t, 3*time.Second, func() bool { return len(storeS.Attachments()) == 1 }) {
			t.Errorf("student store never saw the attachment; has %+v", storeS.Attachments())
		}
	})
}

func TestAttachmentStore_optimisticDeleteRollback(t *testing.T) {
	teacher := createTeacher(t, "Del Teacher", "delteach1")
	student := createStudent(t, "Del Student", "delstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	gwT, _ := signIn(t, teacher.Username)
	material, err := gwT.UploadAttachment(testCtx(t), tsk.ID, attachment.NewAttachment{
		Filename:    "syllabus.txt",
		Size:        8,
		ContentType: "text/plain",
		Kind:        attachment.KindTeacherMaterial,
	}, []byte("syllabus"))
	if err != nil {
		t.Fatalf("UploadAttachment() failed: %v", err)
	}

	gwS, _ := signIn(t, student.Username)
	store := client.NewAttachmentStore(gwS, tsk.ID)
	if err := store.Open(testCtx(t)); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	// a student cannot delete the teacher's material; the local list comes back
	err = store.Delete(testCtx(t), material.ID)
	if err == nil || client.KindOf(err) != client.KindForbidden {
		t.Fatalf("got %v, want a forbidden error", err)
	}
	if !waitFor(t, 3*time.Second, func() bool {
		attachments := store.Attachments()
		return len(attachments) == 1 && attachments[0].ID == material.ID
	}) {
		t.Errorf("attachment was not restored after the failed delete; has %+v", store.Attachments())
	}
}
