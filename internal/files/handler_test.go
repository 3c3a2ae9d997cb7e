package files_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/files"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
	"github.com/google/uuid"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	sys, _ := newSystem(t, newBlobs(t))
	h := files.NewHandler(sys, logging.Discard(), 1<<20)

	mux := http.NewServeMux()
	routes.Register(mux, "/api", nil, h.Routes())

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, session string, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range parts {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		io.WriteString(fw, content)
	}
	if session != "" {
		mw.WriteField("session_id", session)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHandler_UploadAndDownload(t *testing.T) {
	srv := newServer(t)

	body, contentType := multipartBody(t, "chat-7", map[string]string{"hello.txt": "hello world"})
	resp, err := http.Post(srv.URL+"/files/upload", contentType, body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var session files.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.SessionID != "chat-7" || len(session.Files) != 1 {
		t.Fatalf("session = %+v", session)
	}
	f := session.Files[0]

	linkResp, err := http.Get(srv.URL + "/files/" + f.ID.String() + "/url")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	defer linkResp.Body.Close()

	var link files.Link
	json.NewDecoder(linkResp.Body).Decode(&link)
	if link.URL != f.URL || link.ExpiresIn != "" {
		t.Errorf("link = %+v, want content route without expiry", link)
	}

	content, err := http.Get(srv.URL + "/files/" + f.ID.String() + "/content")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	defer content.Body.Close()

	data, _ := io.ReadAll(content.Body)
	if string(data) != "hello world" {
		t.Errorf("content = %q", data)
	}
	if got := content.Header.Get("Content-Disposition"); got != `inline; filename=hello.txt` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestHandler_DeleteSession(t *testing.T) {
	srv := newServer(t)

	body, contentType := multipartBody(t, "temp", map[string]string{"a.txt": "a", "b.txt": "b"})
	resp, err := http.Post(srv.URL+"/files/upload", contentType, body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest("DELETE", srv.URL+"/files/sessions/temp", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()

	var result files.DeleteResult
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != http.StatusOK || result.Deleted != 2 {
		t.Errorf("delete = %d %+v", resp.StatusCode, result)
	}

	list, err := http.Get(srv.URL + "/files/sessions/temp")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer list.Body.Close()

	var session files.Session
	json.NewDecoder(list.Body).Decode(&session)
	if session.Files == nil || len(session.Files) != 0 {
		t.Errorf("files after delete = %v, want empty list", session.Files)
	}
}

func TestHandler_Errors(t *testing.T) {
	srv := newServer(t)

	empty, emptyType := multipartBody(t, "", nil)
	badSession, badType := multipartBody(t, "not/allowed", map[string]string{"a.txt": "a"})

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        io.Reader
		want        int
	}{
		{"no files", "POST", "/files/upload", emptyType, empty, http.StatusBadRequest},
		{"bad session", "POST", "/files/upload", badType, badSession, http.StatusBadRequest},
		{"not multipart", "POST", "/files/upload", "application/json", bytes.NewBufferString("{}"), http.StatusBadRequest},
		{"bad id", "GET", "/files/xyz/url", "", nil, http.StatusBadRequest},
		{"unknown file", "GET", "/files/" + uuid.NewString() + "/content", "", nil, http.StatusNotFound},
		{"unknown leaf", "GET", "/files/" + uuid.NewString() + "/thumbnail", "", nil, http.StatusNotFound},
		{"bad session lookup", "GET", "/files/sessions/not.allowed", "", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, tt.body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
