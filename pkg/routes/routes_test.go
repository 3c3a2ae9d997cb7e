package routes_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/vertex-agent/pkg/openapi"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
)

func writeBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func testGroup() routes.Group {
	return routes.Group{
		Prefix: "/agents",
		Tags:   []string{"Agents"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: writeBody("list"), OpenAPI: &openapi.Operation{Summary: "List agents"}},
			{Method: "GET", Pattern: "/{id}", Handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, r.PathValue("id"))
			}, OpenAPI: &openapi.Operation{Summary: "Get agent"}},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}/tests",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: writeBody("tests"), OpenAPI: &openapi.Operation{Summary: "List tests"}},
				},
			},
		},
	}
}

func TestRegister_Mux(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, "/api", nil, testGroup())

	tests := []struct {
		path string
		want string
	}{
		{"/agents", "list"},
		{"/agents/abc", "abc"},
		{"/agents/abc/tests", "tests"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Body.String() != tt.want {
				t.Errorf("GET %s = %q, want %q", tt.path, w.Body.String(), tt.want)
			}
		})
	}
}

func TestRegister_Spec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")
	routes.Register(http.NewServeMux(), "/api", spec, testGroup())

	for _, path := range []string{"/api/agents", "/api/agents/{id}", "/api/agents/{id}/tests"} {
		item, ok := spec.Paths[path]
		if !ok || item.Get == nil {
			t.Errorf("spec missing GET %s", path)
			continue
		}
		if len(item.Get.Tags) != 1 || item.Get.Tags[0] != "Agents" {
			t.Errorf("GET %s tags = %v, want [Agents]", path, item.Get.Tags)
		}
	}
}

func TestRegister_DocumentedOnly(t *testing.T) {
	group := routes.Group{
		Prefix: "/files",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key}/{leaf}", Handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, r.PathValue("key")+":"+r.PathValue("leaf"))
			}},
			{Method: "GET", Pattern: "/sessions/{session}", OpenAPI: &openapi.Operation{Summary: "List session"}},
			{Method: "GET", Pattern: "/{id}/url", OpenAPI: &openapi.Operation{Summary: "File URL"}},
		},
	}

	mux := http.NewServeMux()
	spec := openapi.NewSpec("Test API", "1.0.0")
	routes.Register(mux, "/api", spec, group)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/sessions/abc", nil))
	if w.Body.String() != "sessions:abc" {
		t.Errorf("GET /files/sessions/abc = %q, want %q", w.Body.String(), "sessions:abc")
	}

	for _, path := range []string{"/api/files/sessions/{session}", "/api/files/{id}/url"} {
		if item, ok := spec.Paths[path]; !ok || item.Get == nil {
			t.Errorf("spec missing GET %s", path)
		}
	}
	if _, ok := spec.Paths["/api/files/{key}/{leaf}"]; ok {
		t.Error("spec documents the undocumented dispatch route")
	}
}
