package customtools_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	sys, _ := newSystem()
	h := customtools.NewHandler(sys, logging.Discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})

	mux := http.NewServeMux()
	routes.Register(mux, "/api", nil, h.Routes())

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_CreateAndExecute(t *testing.T) {
	srv := newServer(t)

	resp := post(t, srv.URL+"/custom-tools", `{"name":"adder","description":"adds","code":"def add(a, b): return a + b"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var tool customtools.CustomTool
	if err := json.NewDecoder(resp.Body).Decode(&tool); err != nil {
		t.Fatalf("decode tool: %v", err)
	}

	resp = post(t, srv.URL+"/custom-tools/"+tool.ID.String()+"/execute", `{"a": 2, "b": 3, "extra": "ignored"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result customtools.ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Result != "5" {
		t.Errorf("result = %q, want %q", result.Result, "5")
	}

	get, err := http.Get(srv.URL + "/custom-tools/" + tool.ID.String())
	if err != nil {
		t.Fatalf("GET tool: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("find status = %d, want %d", get.StatusCode, http.StatusOK)
	}
}

func TestHandler_Errors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"invalid code", "/custom-tools", `{"name":"bad","code":"x = 1"}`, http.StatusBadRequest},
		{"malformed body", "/custom-tools", `{`, http.StatusBadRequest},
		{"unknown tool", "/custom-tools/6f1c1f0e-8f52-4d53-9a53-6f8a4a1d3b11/execute", `{}`, http.StatusNotFound},
		{"invalid id", "/custom-tools/not-a-uuid/execute", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
