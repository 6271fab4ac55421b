package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/attachment"
)

// newUploadRequest builds a multipart upload: a "file" part with an explicit
// content type plus the "kind" field.
func newUploadRequest(t *testing.T, path, token, filename, contentType, kind string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err = part.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err = w.WriteField("kind", kind); err != nil {
		t.Fatalf("writing kind field: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_attachmentApi(t *testing.T) {
	teacher, teacherToken := createTeacher(t, "File Teacher", "atteach1")
	student, studentToken := createStudent(t, "File Student", "atstud1")
	_, strangerToken := createStudent(t, "File Stranger", "atstrng1")

	due := time.Now().Add(24 * time.Hour).UTC()
	tsk, _ := createTask(t, teacher.ID, 10, due, student.ID)
	uploadPath := "/v1/tasks/" + tsk.ID + "/attachments"

	content := []byte("chapter one, exercises 1 through 9")
	var uploaded attachment.Attachment

	t.Run("teacher uploads material", func(t *testing.T) {
		req, rec := newUploadRequest(t, uploadPath, teacherToken,
			"exercises.txt", "text/plain", attachment.KindTeacherMaterial, content)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if uploaded.UploaderID != teacher.ID || uploaded.Filename != "exercises.txt" {
			t.Errorf("unexpected attachment %+v", uploaded)
		}
	})

	t.Run("disallowed content type", func(t *testing.T) {
		req, rec := newUploadRequest(t, uploadPath, teacherToken,
			"virus.exe", "application/x-msdownload", attachment.KindTeacherMaterial, content)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		req, rec := newUploadRequest(t, uploadPath, teacherToken,
			"notes.txt", "text/plain", "homework", content)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("assigned student downloads the exact bytes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attachments/"+uploaded.ID+"/download", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		if !bytes.Equal(rec.Body.Bytes(), content) {
			t.Error("downloaded bytes differ from the upload")
		}
		if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="exercises.txt"` {
			t.Errorf("content-disposition = %q", cd)
		}
	})

	t.Run("outsider cannot list or download", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		req, rec := newAuthRequest(http.MethodGet, uploadPath, strangerToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/attachments/"+uploaded.ID+"/download", strangerToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("student submits work and deletes their own upload", func(t *testing.T) {
		req, rec := newUploadRequest(t, uploadPath, studentToken,
			"answers.txt", "text/plain", attachment.KindStudentSubmission, []byte("42"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var submission attachment.Attachment
		if err := json.Unmarshal(rec.Body.Bytes(), &submission); err != nil {
			t.Fatalf("decoding response: %v", err)
		}

		// another student cannot delete it
		req, rec = newAuthRequest(http.MethodDelete, "/v1/attachments/"+submission.ID, strangerToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want 403; body = %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodDelete, "/v1/attachments/"+submission.ID, studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %d, want 204; body = %s", rec.Code, rec.Body.String())
		}
	})
}
