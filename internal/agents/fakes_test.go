package agents_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/agents"
	"github.com/JaimeStill/vertex-agent/internal/cloudrun"
	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/internal/testruns"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/google/uuid"
)

type memStore struct {
	mu     sync.Mutex
	agents map[uuid.UUID]agents.Agent
}

func (m *memStore) List(ctx context.Context, page pagination.PageRequest, filters agents.Filters) (*pagination.PageResult[agents.Agent], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []agents.Agent
	for _, a := range m.agents {
		status := string(a.Config.Status)
		if filters.Status == nil && status == string(reconcile.StatusDeleted) {
			continue
		}
		if filters.Status != nil && *filters.Status != status {
			continue
		}
		if filters.ProjectID != nil && *filters.ProjectID != a.ProjectID {
			continue
		}
		out = append(out, a)
	}
	result := pagination.NewPageResult(out, len(out), 1, len(out)+1)
	return &result, nil
}

func (m *memStore) Find(ctx context.Context, id uuid.UUID) (*agents.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, agents.ErrNotFound
	}
	cfg := *a.Config
	a.Config = &cfg
	return &a, nil
}

func (m *memStore) Create(ctx context.Context, a agents.Agent) (*agents.Agent, error) {
	m.mu.Lock()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.agents[a.Config.ID] = a
	m.mu.Unlock()
	return m.Find(ctx, a.Config.ID)
}

func (m *memStore) Update(ctx context.Context, a agents.Agent) (*agents.Agent, error) {
	m.mu.Lock()
	current, ok := m.agents[a.Config.ID]
	if !ok {
		m.mu.Unlock()
		return nil, agents.ErrNotFound
	}
	a.Config.Status = current.Config.Status
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = time.Now()
	m.agents[a.Config.ID] = a
	m.mu.Unlock()
	return m.Find(ctx, a.Config.ID)
}

func (m *memStore) SetStatus(ctx context.Context, id uuid.UUID, status reconcile.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return agents.ErrNotFound
	}
	cfg := *a.Config
	cfg.Status = status
	a.Config = &cfg
	m.agents[id] = a
	return nil
}

func (m *memStore) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	return m.SetStatus(ctx, id, reconcile.StatusDeleted)
}

func (m *memStore) status(id uuid.UUID) reconcile.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[id].Config.Status
}

type memDeployments struct {
	mu    sync.Mutex
	items []deployments.Deployment
}

func (m *memDeployments) Create(ctx context.Context, d deployments.Deployment) (*deployments.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d.ID = uuid.New()
	d.Status = deployments.StatusPending
	for _, other := range m.items {
		if other.AgentID == d.AgentID && other.Version >= d.Version {
			d.Version = other.Version
		}
	}
	d.Version++
	m.items = append(m.items, d)
	return &d, nil
}

func (m *memDeployments) Find(ctx context.Context, id uuid.UUID) (*deployments.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.items {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, deployments.ErrNotFound
}

func (m *memDeployments) FindActive(ctx context.Context, key deployments.Key) (*deployments.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.items {
		if d.AgentID == key.AgentID && d.ProjectID == key.ProjectID && d.Region == key.Region &&
			d.Status == deployments.StatusActive && (key.Type == "" || key.Type == d.Type) {
			return &d, nil
		}
	}
	return nil, deployments.ErrNotFound
}

func (m *memDeployments) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]deployments.Deployment, error) {
	return m.list(agentID, ""), nil
}

func (m *memDeployments) ListActive(ctx context.Context, agentID uuid.UUID) ([]deployments.Deployment, error) {
	return m.list(agentID, deployments.StatusActive), nil
}

func (m *memDeployments) list(agentID uuid.UUID, status deployments.Status) []deployments.Deployment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []deployments.Deployment{}
	for _, d := range m.items {
		if d.AgentID == agentID && (status == "" || d.Status == status) {
			out = append(out, d)
		}
	}
	slices.Reverse(out)
	return out
}

func (m *memDeployments) Activate(ctx context.Context, id uuid.UUID, resourceName string, endpointURL *string) (*deployments.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.items, func(d deployments.Deployment) bool { return d.ID == id })
	if i < 0 {
		return nil, deployments.ErrNotFound
	}
	d := m.items[i]
	for _, other := range m.items {
		if other.Status == deployments.StatusActive && other.AgentID == d.AgentID &&
			other.ProjectID == d.ProjectID && other.Region == d.Region && other.Type == d.Type {
			return nil, deployments.ErrDuplicate
		}
	}
	d.Status = deployments.StatusActive
	d.ResourceName = resourceName
	d.EndpointURL = endpointURL
	m.items[i] = d
	return &d, nil
}

func (m *memDeployments) SetStatus(ctx context.Context, id uuid.UUID, status deployments.Status, detail *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.items, func(d deployments.Deployment) bool { return d.ID == id })
	if i < 0 {
		return deployments.ErrNotFound
	}
	m.items[i].Status = status
	m.items[i].Error = detail
	return nil
}

type memTests struct {
	mu      sync.Mutex
	records []testruns.TestRecord
}

func (m *memTests) Record(ctx context.Context, rec testruns.TestRecord) (*testruns.TestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *memTests) List(ctx context.Context, agentID uuid.UUID, limit int) ([]testruns.TestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []testruns.TestRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < testruns.ClampLimit(limit); i-- {
		if m.records[i].AgentID == agentID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	err     error
	queries []string
	targets []dispatch.Target
	configs []*reconcile.AgentConfig
}

func (f *fakeRunner) Run(ctx context.Context, cfg *reconcile.AgentConfig, target dispatch.Target, query string) (*dispatch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	f.targets = append(f.targets, target)
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return dispatch.NewResponse("echo: "+query, nil), nil
}

type fakeEngines struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	created   []map[string]any
	updated   map[string]map[string]any
	deleted   []string
}

func (f *fakeEngines) Create(ctx context.Context, target engine.Target, payload map[string]any) (*engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, payload)
	name := engine.ResourceName(target, "re-"+strconv.Itoa(len(f.created)))
	return &engine.Engine{Name: name}, nil
}

func (f *fakeEngines) Get(ctx context.Context, name string) (*engine.Engine, error) {
	return &engine.Engine{Name: name}, nil
}

func (f *fakeEngines) List(ctx context.Context, target engine.Target) ([]engine.Engine, error) {
	return nil, nil
}

func (f *fakeEngines) Update(ctx context.Context, name string, payload map[string]any) (*engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updated == nil {
		f.updated = map[string]map[string]any{}
	}
	f.updated[name] = payload
	return &engine.Engine{Name: name}, nil
}

func (f *fakeEngines) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeEngines) Query(ctx context.Context, name, query string) (*dispatch.Response, error) {
	return dispatch.NewResponse("engine "+name+": "+query, nil), nil
}

type fakeCloudRun struct {
	mu      sync.Mutex
	deleted []string
	invoked []string
}

func (f *fakeCloudRun) Deploy(ctx context.Context, target cloudrun.Target, payload map[string]any) (*cloudrun.Service, error) {
	name, _ := payload["displayName"].(string)
	id := cloudrun.ServiceID(name)
	return &cloudrun.Service{
		Name: "projects/" + target.Project + "/locations/" + target.Region + "/services/" + id,
		URI:  "https://" + id + ".a.run.app",
	}, nil
}

func (f *fakeCloudRun) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeCloudRun) Invoke(ctx context.Context, endpoint, query string) (*dispatch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoked = append(f.invoked, endpoint)
	return dispatch.NewResponse("runner: "+query, nil), nil
}

var errUpstream = errors.New("upstream unavailable")

type fixture struct {
	sys         agents.System
	store       *memStore
	deployments *memDeployments
	tests       *memTests
	runner      *fakeRunner
	engines     *fakeEngines
	cloudrun    *fakeCloudRun
}

func newFixture() *fixture {
	f := &fixture{
		store:       &memStore{agents: map[uuid.UUID]agents.Agent{}},
		deployments: &memDeployments{},
		tests:       &memTests{},
		runner:      &fakeRunner{},
		engines:     &fakeEngines{},
		cloudrun:    &fakeCloudRun{},
	}
	f.sys = agents.New(
		agents.Config{DefaultRegion: "us-central1", FallbackModel: "gemini-1.5-pro"},
		f.store,
		agents.Dependencies{
			Deployments: f.deployments,
			Tests:       f.tests,
			Runner:      f.runner,
			Engines:     f.engines,
			CloudRun:    f.cloudrun,
		},
		logging.Discard(),
	)
	return f
}

var demo = reconcile.Params{ProjectIDAlt: "demo"}

func (f *fixture) draft(t *testing.T, name string) *agents.Agent {
	t.Helper()
	a, err := f.sys.Create(context.Background(), map[string]any{"displayName": name}, reconcile.Params{}, false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return a
}
