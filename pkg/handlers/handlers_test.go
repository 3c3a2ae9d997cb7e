package handlers_test

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/vertex-agent/pkg/handlers"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		data     any
		wantBody string
	}{
		{"map", http.StatusOK, map[string]string{"status": "ok"}, `{"status":"ok"}`},
		{"struct", http.StatusCreated, struct {
			ID string `json:"id"`
		}{"a1"}, `{"id":"a1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.RespondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	w := httptest.NewRecorder()
	handlers.RespondError(w, logger, http.StatusNotFound, errors.New("agent not found"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"agent not found"}` {
		t.Errorf("body = %s", got)
	}
	if !strings.Contains(buf.String(), "handler error") {
		t.Errorf("log missing handler error: %s", buf.String())
	}
}

func TestRespondError_LogLevel(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "level=WARN"},
		{http.StatusConflict, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf strings.Builder
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			handlers.RespondError(httptest.NewRecorder(), logger, tt.status, errors.New("boom"))

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log = %q, want %s", buf.String(), tt.want)
			}
		})
	}
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.RespondNoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestRespondError_DiscardLogger(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.RespondError(w, logging.Discard(), http.StatusBadRequest, errors.New("bad"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
