package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/JaimeStill/vertex-agent/pkg/module"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
	"github.com/google/go-cmp/cmp"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantTarget engine.Target
		wantID     string
		wantErr    bool
	}{
		{
			name:       "valid",
			in:         "projects/p1/locations/europe-west4/reasoningEngines/42",
			wantTarget: engine.Target{Project: "p1", Region: "europe-west4"},
			wantID:     "42",
		},
		{name: "bare id", in: "42", wantErr: true},
		{name: "wrong collection", in: "projects/p1/locations/us/endpoints/42", wantErr: true},
		{name: "empty segment", in: "projects//locations/us/reasoningEngines/42", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, id, err := engine.ParseName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, engine.ErrInvalidName) {
					t.Errorf("ParseName(%q) error = %v, want ErrInvalidName", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseName(%q) error = %v", tt.in, err)
			}
			if target != tt.wantTarget || id != tt.wantID {
				t.Errorf("ParseName(%q) = %+v, %q, want %+v, %q", tt.in, target, id, tt.wantTarget, tt.wantID)
			}
		})
	}
}

func TestResourceName_RoundTrip(t *testing.T) {
	target := engine.Target{Project: "demo", Region: "us-central1"}
	name := engine.ResourceName(target, "abc")

	if name != "projects/demo/locations/us-central1/reasoningEngines/abc" {
		t.Errorf("ResourceName() = %q", name)
	}

	e := &engine.Engine{Name: name}
	if e.ID() != "abc" {
		t.Errorf("ID() = %q, want abc", e.ID())
	}
}

func TestRequirements(t *testing.T) {
	tests := []struct {
		fw   reconcile.Framework
		want []string
	}{
		{reconcile.FrameworkCustom, nil},
		{reconcile.FrameworkLangChain, []string{"langchain>=0.0.267", "langchain_google_vertexai"}},
		{reconcile.FrameworkLangGraph, []string{"langgraph", "cloudpickle==3.0.0"}},
		{reconcile.FrameworkLlamaIndex, []string{"llama-index", "llama-index-llms-google"}},
		{reconcile.FrameworkCrewAI, []string{"crew-ai[tools]", "cloudpickle==3.0.0"}},
	}

	common := []string{
		"google-cloud-aiplatform[agent_engines]>=1.36.4",
		"pydantic>=2.10",
		"requests",
	}

	for _, tt := range tests {
		t.Run(string(tt.fw), func(t *testing.T) {
			want := append(append([]string{}, common...), tt.want...)
			if diff := cmp.Diff(want, engine.Requirements(tt.fw)); diff != "" {
				t.Errorf("Requirements() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	file := string(engine.RequirementsFile(reconcile.FrameworkLangGraph))
	if !strings.HasSuffix(file, "cloudpickle==3.0.0\n") || strings.Count(file, "\n") != 5 {
		t.Errorf("RequirementsFile() = %q", file)
	}
}

func TestBuildEngine(t *testing.T) {
	payload := map[string]any{
		"displayName": "support bot",
		"description": "answers tickets",
		"framework":   "LANGCHAIN",
		"generationConfig": map[string]any{
			"temperature":     0.2,
			"maxOutputTokens": 1024,
		},
	}

	pb, err := engine.BuildEngine(payload, "gs://staging/engines/x/requirements.txt", "")
	if err != nil {
		t.Fatalf("BuildEngine() error = %v", err)
	}

	if pb.GetDisplayName() != "support bot" || pb.GetDescription() != "answers tickets" {
		t.Errorf("BuildEngine() names = %q, %q", pb.GetDisplayName(), pb.GetDescription())
	}

	pkg := pb.GetSpec().GetPackageSpec()
	if pkg.GetRequirementsGcsUri() != "gs://staging/engines/x/requirements.txt" {
		t.Errorf("RequirementsGcsUri = %q", pkg.GetRequirementsGcsUri())
	}
	if pkg.GetPythonVersion() != "3.10" {
		t.Errorf("PythonVersion = %q, want 3.10", pkg.GetPythonVersion())
	}

	methods := pb.GetSpec().GetClassMethods()
	if len(methods) != 1 {
		t.Fatalf("ClassMethods = %d, want 1", len(methods))
	}
	fields := methods[0].GetFields()
	if fields["name"].GetStringValue() != "query" || fields["framework"].GetStringValue() != "LANGCHAIN" {
		t.Errorf("class method = %v", methods[0].AsMap())
	}
}

type fakeRemote struct {
	engines []engine.Engine
	err     error
	gotName string
	gotList engine.Target
}

func (f *fakeRemote) Create(ctx context.Context, target engine.Target, payload map[string]any) (*engine.Engine, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRemote) Get(ctx context.Context, name string) (*engine.Engine, error) {
	f.gotName = name
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Engine{Name: name, DisplayName: "bot"}, nil
}

func (f *fakeRemote) List(ctx context.Context, target engine.Target) ([]engine.Engine, error) {
	f.gotList = target
	return f.engines, f.err
}

func (f *fakeRemote) Update(ctx context.Context, name string, payload map[string]any) (*engine.Engine, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRemote) Delete(ctx context.Context, name string) error {
	return errors.New("not implemented")
}

func (f *fakeRemote) Query(ctx context.Context, name, query string) (*dispatch.Response, error) {
	return nil, errors.New("not implemented")
}

// newServer mounts the handler under /api the way the server does.
func newServer(remote engine.Remote) *httptest.Server {
	h := engine.NewHandler(remote, "us-central1", logging.Discard())
	mux := http.NewServeMux()
	routes.Register(mux, "/api", nil, h.Routes())

	router := module.NewRouter()
	router.Mount(module.New("/api", mux))
	return httptest.NewServer(router)
}

func TestHandler_List(t *testing.T) {
	remote := &fakeRemote{engines: []engine.Engine{{Name: "projects/p/locations/us-central1/reasoningEngines/1"}}}
	srv := newServer(remote)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/engines?project_id=&projectId=p")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got []engine.Engine
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("engines = %d, want 1", len(got))
	}
	if want := (engine.Target{Project: "p", Region: "us-central1"}); remote.gotList != want {
		t.Errorf("List() target = %+v, want %+v", remote.gotList, want)
	}
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		remote *fakeRemote
		path   string
		want   int
	}{
		{"missing project", &fakeRemote{}, "/api/engines", http.StatusBadRequest},
		{"remote failure", &fakeRemote{err: engine.ErrRemote}, "/api/engines?projectId=p", http.StatusInternalServerError},
		{"find remote failure", &fakeRemote{err: engine.ErrRemote}, "/api/engines/7?projectId=p&region=asia-east1", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(tt.remote)
			defer srv.Close()

			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHandler_Find(t *testing.T) {
	remote := &fakeRemote{}
	srv := newServer(remote)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/engines/7?projectId=p&region=asia-east1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if want := "projects/p/locations/asia-east1/reasoningEngines/7"; remote.gotName != want {
		t.Errorf("Get() name = %q, want %q", remote.gotName, want)
	}
}

func TestBuildEngine_CarriesConfig(t *testing.T) {
	cfg := &reconcile.AgentConfig{
		DisplayName:       "support bot",
		Framework:         reconcile.FrameworkLangChain,
		ModelID:           "gemini-2.0-flash",
		SystemInstruction: "Answer in French.",
		Generation:        reconcile.GenerationConfig{Temperature: 0.9, MaxOutputTokens: 2048},
	}
	payload := reconcile.WirePayload(cfg, "demo", "us-central1")

	pb, err := engine.BuildEngine(payload, "", "")
	if err != nil {
		t.Fatalf("BuildEngine() error = %v", err)
	}

	got := engine.FromProto(pb)
	if got.Framework != "LANGCHAIN" {
		t.Errorf("Framework = %q, want LANGCHAIN", got.Framework)
	}

	if got.Config["model"] != "projects/demo/locations/us-central1/publishers/google/models/gemini-2.0-flash" {
		t.Errorf("Config[model] = %v", got.Config["model"])
	}

	gen, _ := got.Config["generationConfig"].(map[string]any)
	if gen["temperature"] != 0.9 || gen["maxOutputTokens"] != float64(2048) {
		t.Errorf("Config[generationConfig] = %v", gen)
	}

	instruction, err := json.Marshal(got.Config["systemInstruction"])
	if err != nil {
		t.Fatalf("marshal instruction: %v", err)
	}
	if !strings.Contains(string(instruction), "Answer in French.") {
		t.Errorf("Config[systemInstruction] = %s", instruction)
	}
}
