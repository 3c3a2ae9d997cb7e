package agents_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/agents"
	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/google/uuid"
)

func TestCreate_Draft(t *testing.T) {
	f := newFixture()

	a, err := f.sys.Create(context.Background(), map[string]any{
		"displayName":       "support bot",
		"model":             "projects/p/locations/us-central1/publishers/google/models/gemini-1.5-flash",
		"systemInstruction": map[string]any{"parts": []any{map[string]any{"text": "Be brief."}}},
	}, reconcile.Params{ProjectID: "demo"}, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if a.Config.Status != reconcile.StatusDraft {
		t.Errorf("Status = %q, want DRAFT", a.Config.Status)
	}
	if a.Config.ModelID != "gemini-1.5-flash" {
		t.Errorf("ModelID = %q, want gemini-1.5-flash", a.Config.ModelID)
	}
	if a.Config.SystemInstruction != "Be brief." {
		t.Errorf("SystemInstruction = %q", a.Config.SystemInstruction)
	}
	if a.ProjectID != "demo" || a.Region != "us-central1" {
		t.Errorf("placement = %s/%s, want demo/us-central1", a.ProjectID, a.Region)
	}
	if len(f.engines.created) != 0 {
		t.Errorf("draft create made %d remote calls", len(f.engines.created))
	}
}

func TestCreate_Invalid(t *testing.T) {
	f := newFixture()

	_, err := f.sys.Create(context.Background(), map[string]any{
		"displayName": "graph",
		"framework":   "LANGGRAPH",
	}, reconcile.Params{}, false)
	if !errors.Is(err, reconcile.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
	if len(f.store.agents) != 0 {
		t.Errorf("invalid payload stored %d agents", len(f.store.agents))
	}
}

func TestCreate_DeployRequiresProject(t *testing.T) {
	f := newFixture()

	_, err := f.sys.Create(context.Background(), map[string]any{"displayName": "bot"}, reconcile.Params{}, true)
	if !errors.Is(err, reconcile.ErrMissingProjectID) {
		t.Fatalf("Create() error = %v, want ErrMissingProjectID", err)
	}
	if len(f.store.agents) != 0 {
		t.Errorf("stored %d agents before failing", len(f.store.agents))
	}
}

func TestCreate_AndDeploy(t *testing.T) {
	f := newFixture()

	a, err := f.sys.Create(context.Background(), map[string]any{"displayName": "bot"}, demo, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if a.Config.Status != reconcile.StatusDeployed {
		t.Errorf("Status = %q, want DEPLOYED", a.Config.Status)
	}
	if len(a.Deployments) != 1 || a.Deployments[0].Type != deployments.TypeAgentEngine {
		t.Fatalf("Deployments = %+v, want one AGENT_ENGINE", a.Deployments)
	}

	wire := f.engines.created[0]
	if wire["model"] != "projects/demo/locations/us-central1/publishers/google/models/gemini-1.5-pro" {
		t.Errorf("wire model = %v", wire["model"])
	}
}

func TestDeploy_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	first, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeAgentEngine)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	second, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeAgentEngine)
	if err != nil {
		t.Fatalf("second Deploy() error = %v", err)
	}

	if second.ResourceName != first.ResourceName {
		t.Errorf("second ResourceName = %q, want %q", second.ResourceName, first.ResourceName)
	}
	if len(f.engines.created) != 1 {
		t.Errorf("remote creates = %d, want 1", len(f.engines.created))
	}
	if first.Version != 1 || first.Status != deployments.StatusActive {
		t.Errorf("deployment = v%d %s, want v1 ACTIVE", first.Version, first.Status)
	}
	if got := f.store.status(a.ID()); got != reconcile.StatusDeployed {
		t.Errorf("agent status = %q, want DEPLOYED", got)
	}

	other, err := f.sys.Deploy(ctx, a.ID(), reconcile.Params{ProjectID: "demo", Region: "europe-west4"}, deployments.TypeAgentEngine)
	if err != nil {
		t.Fatalf("Deploy() to another region error = %v", err)
	}
	if other.ResourceName == first.ResourceName || other.Version != 2 {
		t.Errorf("other region deployment = %+v, want a new v2 deployment", other)
	}
}

func TestDeploy_RemoteFailure(t *testing.T) {
	f := newFixture()
	f.engines.createErr = fmt.Errorf("%w: create reasoning engine: quota exceeded", engine.ErrRemote)
	a := f.draft(t, "bot")

	_, err := f.sys.Deploy(context.Background(), a.ID(), demo, "")
	if !errors.Is(err, engine.ErrRemote) {
		t.Fatalf("Deploy() error = %v, want ErrRemote", err)
	}
	if got := agents.MapHTTPStatus(err); got != http.StatusInternalServerError {
		t.Errorf("MapHTTPStatus() = %d, want 500", got)
	}

	if got := f.store.status(a.ID()); got != reconcile.StatusDraft {
		t.Errorf("agent status = %q, want DRAFT after failed deploy", got)
	}

	history, _ := f.sys.Deployments(context.Background(), a.ID())
	if len(history) != 1 || history[0].Status != deployments.StatusFailed {
		t.Fatalf("deployments = %+v, want one FAILED", history)
	}
	if history[0].Error == nil || !strings.Contains(*history[0].Error, "quota exceeded") {
		t.Errorf("failure detail = %v", history[0].Error)
	}
}

func TestDeploy_CloudRun(t *testing.T) {
	f := newFixture()
	a := f.draft(t, "bot")

	d, err := f.sys.Deploy(context.Background(), a.ID(), demo, deployments.TypeCloudRun)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if d.EndpointURL == nil || !strings.HasPrefix(*d.EndpointURL, "https://agent-") {
		t.Errorf("EndpointURL = %v", d.EndpointURL)
	}
	if len(f.engines.created) != 0 {
		t.Error("Cloud Run deploy reached Agent Engine")
	}
}

func TestDeploy_CloudRunNotConfigured(t *testing.T) {
	f := newFixture()
	sys := agents.New(
		agents.Config{DefaultRegion: "us-central1"},
		f.store,
		agents.Dependencies{
			Deployments: f.deployments,
			Tests:       f.tests,
			Runner:      f.runner,
			Engines:     f.engines,
		},
		logging.Discard(),
	)
	a := f.draft(t, "bot")

	_, err := sys.Deploy(context.Background(), a.ID(), demo, deployments.TypeCloudRun)
	if !errors.Is(err, agents.ErrInvalidRequest) {
		t.Fatalf("Deploy() error = %v, want ErrInvalidRequest", err)
	}
	if got := agents.MapHTTPStatus(err); got != http.StatusBadRequest {
		t.Errorf("MapHTTPStatus() = %d, want 400", got)
	}
	if active, _ := f.deployments.ListActive(context.Background(), a.ID()); len(active) != 0 {
		t.Errorf("ListActive() = %d records, want 0", len(active))
	}

	if _, err := sys.Deploy(context.Background(), a.ID(), demo, deployments.TypeAgentEngine); err != nil {
		t.Errorf("Deploy(AGENT_ENGINE) error = %v", err)
	}
}

func TestDeploy_Rejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	tests := []struct {
		name   string
		id     uuid.UUID
		params reconcile.Params
		typ    deployments.Type
		want   error
	}{
		{"unknown agent", uuid.New(), demo, "", agents.ErrNotFound},
		{"no project", a.ID(), reconcile.Params{}, "", reconcile.ErrMissingProjectID},
		{"empty project_id, no projectId", a.ID(), reconcile.Params{Region: "us-east1"}, "", reconcile.ErrMissingProjectID},
		{"bad type", a.ID(), demo, "GKE", deployments.ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sys.Deploy(ctx, tt.id, tt.params, tt.typ)
			if !errors.Is(err, tt.want) {
				t.Errorf("Deploy() error = %v, want %v", err, tt.want)
			}
		})
	}

	if len(f.engines.created) != 0 {
		t.Errorf("rejected deploys made %d remote calls", len(f.engines.created))
	}
}

func TestPlayground_NewDraft(t *testing.T) {
	f := newFixture()

	result, err := f.sys.Playground(context.Background(), map[string]any{
		"displayName": "scratch",
		"query":       "hello",
	}, demo)
	if err != nil {
		t.Fatalf("Playground() error = %v", err)
	}

	if !result.Success || result.Response.TextResponse != "echo: hello" {
		t.Errorf("result = %+v", result)
	}
	if got := f.store.status(result.AgentID); got != reconcile.StatusTested {
		t.Errorf("status = %q, want TESTED", got)
	}
	if f.runner.targets[0] != (dispatch.Target{Project: "demo", Region: "us-central1"}) {
		t.Errorf("target = %+v", f.runner.targets[0])
	}

	history, err := f.sys.Tests(context.Background(), result.AgentID, 0)
	if err != nil {
		t.Fatalf("Tests() error = %v", err)
	}
	if len(history) != 1 || !history[0].Success || history[0].Query != "hello" {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Metrics["framework"] != "CUSTOM" || history[0].Metrics["actions"] != 0 {
		t.Errorf("metrics = %v", history[0].Metrics)
	}
}

func TestPlayground_FailureIsRecorded(t *testing.T) {
	f := newFixture()
	f.runner.err = fmt.Errorf("%w: %w", dispatch.ErrExecution, errUpstream)
	a := f.draft(t, "bot")

	result, err := f.sys.Playground(context.Background(), map[string]any{
		"id":    a.ID().String(),
		"query": "hello",
	}, demo)
	if err != nil {
		t.Fatalf("Playground() error = %v, want failure in result", err)
	}

	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.HasPrefix(result.Response.TextResponse, "Error: ") ||
		!strings.Contains(result.Response.TextResponse, "upstream unavailable") {
		t.Errorf("TextResponse = %q", result.Response.TextResponse)
	}

	if len(f.tests.records) != 1 {
		t.Fatalf("records = %d, want exactly 1", len(f.tests.records))
	}
	rec := f.tests.records[0]
	if rec.Success || rec.Metrics["success"] != false || rec.Metrics["error"] == nil {
		t.Errorf("record = %+v", rec)
	}
	if got := f.store.status(a.ID()); got != reconcile.StatusDraft {
		t.Errorf("status = %q, want DRAFT after failed run", got)
	}
}

func TestPlayground_StoredAgentOverrides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	_, err := f.sys.Playground(ctx, map[string]any{
		"agentId":     a.ID().String(),
		"query":       "hi",
		"temperature": 0.9,
	}, reconcile.Params{})
	if err != nil {
		t.Fatalf("Playground() error = %v", err)
	}

	if got := f.runner.configs[0].Generation.Temperature; got != 0.9 {
		t.Errorf("run temperature = %v, want override 0.9", got)
	}
	stored, _ := f.sys.Find(ctx, a.ID())
	if stored.Config.Generation.Temperature != reconcile.DefaultTemperature {
		t.Errorf("stored temperature = %v, overrides must not persist", stored.Config.Generation.Temperature)
	}
}

func TestPlayground_Rejected(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		payload map[string]any
		want    error
	}{
		{"no query", map[string]any{"displayName": "bot"}, agents.ErrInvalidRequest},
		{"bad id", map[string]any{"id": "nope", "query": "hi"}, agents.ErrInvalidRequest},
		{"unknown id", map[string]any{"id": uuid.NewString(), "query": "hi"}, agents.ErrNotFound},
		{"invalid payload", map[string]any{"query": "hi"}, reconcile.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sys.Playground(context.Background(), tt.payload, demo)
			if !errors.Is(err, tt.want) {
				t.Errorf("Playground() error = %v, want %v", err, tt.want)
			}
		})
	}

	if len(f.tests.records) != 0 {
		t.Errorf("rejected requests wrote %d records", len(f.tests.records))
	}
}

func TestQuery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	onEngine := f.draft(t, "engine bot")
	if _, err := f.sys.Deploy(ctx, onEngine.ID(), demo, deployments.TypeAgentEngine); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	onRun := f.draft(t, "run bot")
	if _, err := f.sys.Deploy(ctx, onRun.ID(), demo, deployments.TypeCloudRun); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	resp, err := f.sys.Query(ctx, onEngine.ID(), demo, "ping")
	if err != nil {
		t.Fatalf("Query() engine error = %v", err)
	}
	if !strings.HasPrefix(resp.TextResponse, "engine projects/demo/locations/us-central1/reasoningEngines/") {
		t.Errorf("engine response = %q", resp.TextResponse)
	}

	resp, err = f.sys.Query(ctx, onRun.ID(), demo, "ping")
	if err != nil {
		t.Fatalf("Query() cloud run error = %v", err)
	}
	if resp.TextResponse != "runner: ping" || len(f.cloudrun.invoked) != 1 {
		t.Errorf("cloud run response = %q, invoked %v", resp.TextResponse, f.cloudrun.invoked)
	}
}

func TestQuery_MissingDeploymentIsDistinct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	_, noDeployment := f.sys.Query(ctx, a.ID(), demo, "ping")
	_, noAgent := f.sys.Query(ctx, uuid.New(), demo, "ping")

	if !errors.Is(noDeployment, agents.ErrNoActiveDeployment) {
		t.Errorf("no deployment error = %v, want ErrNoActiveDeployment", noDeployment)
	}
	if !errors.Is(noAgent, agents.ErrNotFound) {
		t.Errorf("unknown agent error = %v, want ErrNotFound", noAgent)
	}
	if errors.Is(noDeployment, agents.ErrNotFound) || errors.Is(noAgent, agents.ErrNoActiveDeployment) {
		t.Error("missing deployment and missing agent must be distinguishable")
	}
	for _, err := range []error{noDeployment, noAgent} {
		if got := agents.MapHTTPStatus(err); got != http.StatusNotFound {
			t.Errorf("MapHTTPStatus(%v) = %d, want 404", err, got)
		}
	}

	if _, err := f.sys.Query(ctx, a.ID(), reconcile.Params{}, "ping"); !errors.Is(err, reconcile.ErrMissingProjectID) {
		t.Errorf("Query() without project error = %v, want ErrMissingProjectID", err)
	}
}

func TestDelete_BestEffort(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	if _, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeAgentEngine); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if _, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeCloudRun); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	f.engines.deleteErr = fmt.Errorf("%w: permission denied", engine.ErrRemote)

	if err := f.sys.Delete(ctx, a.ID()); err != nil {
		t.Fatalf("Delete() error = %v, want nil despite remote failure", err)
	}

	if got := f.store.status(a.ID()); got != reconcile.StatusDeleted {
		t.Errorf("status = %q, want DELETED", got)
	}
	if len(f.cloudrun.deleted) != 1 {
		t.Errorf("cloud run deletes = %v, want 1", f.cloudrun.deleted)
	}

	statuses := map[deployments.Type]deployments.Status{}
	history, _ := f.sys.Deployments(ctx, a.ID())
	for _, d := range history {
		statuses[d.Type] = d.Status
	}
	if statuses[deployments.TypeAgentEngine] != deployments.StatusActive {
		t.Errorf("engine deployment = %s, want ACTIVE after failed remote delete", statuses[deployments.TypeAgentEngine])
	}
	if statuses[deployments.TypeCloudRun] != deployments.StatusDeleted {
		t.Errorf("cloud run deployment = %s, want DELETED", statuses[deployments.TypeCloudRun])
	}

	list, _ := f.sys.List(ctx, pagination.PageRequest{}, agents.Filters{})
	if len(list.Data) != 0 {
		t.Errorf("List() = %d agents, deleted agents must be hidden", len(list.Data))
	}

	if _, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "x"}, demo, false); !errors.Is(err, agents.ErrDeleted) {
		t.Errorf("Update() after delete error = %v, want ErrDeleted", err)
	}
	if err := f.sys.Delete(ctx, a.ID()); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.sys.Create(ctx, map[string]any{
		"displayName": "bot",
		"description": "first",
		"temperature": 0.7,
	}, demo, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "second"}, reconcile.Params{}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Config.Description != "second" {
		t.Errorf("Description = %q, want second", updated.Config.Description)
	}
	if updated.Config.Generation.Temperature != 0.7 {
		t.Errorf("Temperature = %v, absent keys must keep stored values", updated.Config.Generation.Temperature)
	}
	if updated.ProjectID != "demo" {
		t.Errorf("ProjectID = %q, want demo", updated.ProjectID)
	}
}

func TestUpdate_PushesToDeployment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	_, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "v2"}, demo, true)
	if !errors.Is(err, agents.ErrNoActiveDeployment) {
		t.Fatalf("Update() without deployment error = %v, want ErrNoActiveDeployment", err)
	}
	stored, _ := f.sys.Find(ctx, a.ID())
	if stored.Config.Description == "v2" {
		t.Error("failed Update() must not persist changes")
	}

	d, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeAgentEngine)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	if _, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "v2"}, demo, true); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	pushed := f.engines.updated[d.ResourceName]
	if pushed == nil || pushed["description"] != "v2" {
		t.Errorf("pushed payload = %v", pushed)
	}
}

func TestUpdate_RemoteRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.draft(t, "bot")

	if _, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "v1"}, reconcile.Params{}, false); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := f.sys.Deploy(ctx, a.ID(), demo, deployments.TypeAgentEngine); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	rejected := errors.New("remote update rejected")
	f.engines.updateErr = rejected

	_, err := f.sys.Update(ctx, a.ID(), map[string]any{"description": "v2"}, demo, true)
	if !errors.Is(err, rejected) {
		t.Fatalf("Update() error = %v, want %v", err, rejected)
	}

	stored, err := f.sys.Find(ctx, a.ID())
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if stored.Config.Description != "v1" {
		t.Errorf("stored Description = %q, want v1", stored.Config.Description)
	}
}
