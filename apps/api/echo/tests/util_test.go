package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

type httpErr struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr, conf)
	token, err := GenerateToken(claims, conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// createStudent seeds an active student with a token ready to go.
func createStudent(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "s3cr3t!pwd", user.StudentRoles, true)
	return usr, getToken(t, usr)
}

func createTeacher(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "s3cr3t!pwd", user.TeacherRoles, true)
	return usr, getToken(t, usr)
}

func createAdmin(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, usrRepo, name, uname, uname+"@test.cd", "s3cr3t!pwd", user.AdminRoles, true)
	return usr, getToken(t, usr)
}

func createTask(t *testing.T, teacherID string, reward int, due time.Time, studentIDs ...string) (task.Task, []task.Assignment) {
	t.Helper()
	return testutil.CreateTask(t, taskRepo, teacherID, "Homework", reward, due, studentIDs...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte { // nolint
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(tt.wantData)),
			B:        difflib.SplitLines(rec.Body.String()),
			FromFile: "want",
			ToFile:   "got",
			Context:  2,
		})
		t.Errorf("failed! data mismatch:\n%s", diff)
	}
}
