package tests

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/darasa/realtime"
)

func Test_feedApi_stream(t *testing.T) {
	teacher, _ := createTeacher(t, "Feed Teacher", "feedteach")
	student, studentToken := createStudent(t, "Feed Student", "feedstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)

	// SSE needs a live connection; ResponseRecorder cannot stream
	srv := httptest.NewServer(app)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/feed/comments/"+tsk.ID, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+studentToken)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	// post a comment on the subscribed task; it must come down the stream
	go func() {
		time.Sleep(100 * time.Millisecond)
		body := []byte(`{"body": "streamed hello"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks/"+tsk.ID+"/comments", studentToken, body)
		app.ServeHTTP(rec, req)
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue // comments and blank keep-alive lines
		}

		var ev realtime.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if ev.Action != realtime.ActionInsert || ev.Table != realtime.TableComments || ev.ScopeID != tsk.ID {
			t.Errorf("unexpected event %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}

func Test_feedApi_unknownTable(t *testing.T) {
	_, token := createStudent(t, "Feed Probe", "feedprobe")

	tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
	req, rec := newAuthRequest(http.MethodGet, "/v1/feed/grades/some-scope", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}
