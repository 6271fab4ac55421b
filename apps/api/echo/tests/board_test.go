package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/board"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_boardApi_leaderboard(t *testing.T) {
	// a balance no other fixture comes close to; rank 1 is guaranteed
	topdog, token := createStudent(t, "Top Dog", "topdog1")
	testutil.GrantCoins(t, coinRepo, topdog.ID, 1_000_000)

	req, rec := newAuthRequest(http.MethodGet, "/v1/board/leaderboard", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
	}

	var entries []board.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one entry")
	}
	if first := entries[0]; first.StudentID != topdog.ID || first.Rank != 1 {
		t.Errorf("entries[0] = %+v, want %s at rank 1", first, topdog.ID)
	}

	t.Run("limit trims the standings", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/board/leaderboard?limit=1", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var limited []board.Entry
		if err := json.Unmarshal(rec.Body.Bytes(), &limited); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("got %d entries, want 1", len(limited))
		}
	})
}

func Test_boardApi_me(t *testing.T) {
	student, token := createStudent(t, "Ranked Student", "rankstud1")
	testutil.GrantCoins(t, coinRepo, student.ID, 10)
	_, teacherToken := createTeacher(t, "Unranked Teacher", "unrkteach")

	t.Run("student sees their standing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/board/me", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var rank board.Rank
		if err := json.Unmarshal(rec.Body.Bytes(), &rank); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if rank.Balance != 10 || rank.Rank < 1 || rank.Rank > rank.TotalStudents {
			t.Errorf("unexpected rank %+v", rank)
		}
	})

	t.Run("teachers have no standing", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/board/me", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_boardApi_teacherStats(t *testing.T) {
	teacher, teacherToken := createTeacher(t, "Stats Teacher", "statteach")
	student, _ := createStudent(t, "Stats Student", "statstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	createTask(t, teacher.ID, 40, due, student.ID)

	req, rec := newAuthRequest(http.MethodGet, "/v1/board/teacher-stats", teacherToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
	}

	var stats board.TeacherStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.Tasks != 1 || stats.Pending != 1 || stats.Completed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	t.Run("students are turned away", func(t *testing.T) {
		_, studentToken := createStudent(t, "Nosy Student", "nosystud1")
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/board/teacher-stats", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
