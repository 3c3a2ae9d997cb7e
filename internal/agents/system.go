package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/vertex-agent/internal/cloudrun"
	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/internal/testruns"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/google/uuid"
)

// System defines the agent operations exposed over HTTP.
type System interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error)
	Find(ctx context.Context, id uuid.UUID) (*Agent, error)
	Create(ctx context.Context, payload map[string]any, params reconcile.Params, deploy bool) (*Agent, error)
	Update(ctx context.Context, id uuid.UUID, payload map[string]any, params reconcile.Params, updateDeployment bool) (*Agent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Deploy(ctx context.Context, id uuid.UUID, params reconcile.Params, typ deployments.Type) (*deployments.Deployment, error)
	Playground(ctx context.Context, payload map[string]any, params reconcile.Params) (*PlaygroundResult, error)
	Query(ctx context.Context, id uuid.UUID, params reconcile.Params, query string) (*dispatch.Response, error)
	Tests(ctx context.Context, id uuid.UUID, limit int) ([]testruns.TestRecord, error)
	Deployments(ctx context.Context, id uuid.UUID) ([]deployments.Deployment, error)
}

// Runner answers a query with an agent configuration. *dispatch.Dispatcher
// is the production implementation.
type Runner interface {
	Run(ctx context.Context, cfg *reconcile.AgentConfig, target dispatch.Target, query string) (*dispatch.Response, error)
}

// Dependencies are the stores and remotes an agent system coordinates.
type Dependencies struct {
	Deployments deployments.Store
	Tests       testruns.Store
	Runner      Runner
	Engines     engine.Remote
	CloudRun    cloudrun.Deployer
}

type system struct {
	cfg    Config
	store  Store
	deps   Dependencies
	logger *slog.Logger
}

func New(cfg Config, store Store, deps Dependencies, logger *slog.Logger) System {
	return &system{
		cfg:    cfg,
		store:  store,
		deps:   deps,
		logger: logger.With("system", "agents"),
	}
}

func (s *system) opts() reconcile.Options {
	return reconcile.Options{FallbackModel: s.cfg.FallbackModel}
}

func (s *system) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error) {
	return s.store.List(ctx, page, filters)
}

// Find returns the agent with its ACTIVE deployments attached.
func (s *system) Find(ctx context.Context, id uuid.UUID) (*Agent, error) {
	a, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	active, err := s.deps.Deployments.ListActive(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Deployments = active
	return a, nil
}

// Create stores the reconciled payload as a DRAFT. With deploy set, a
// project is required up front and the new agent is deployed to Agent
// Engine, or to the target named by the payload's deploymentType.
func (s *system) Create(ctx context.Context, payload map[string]any, params reconcile.Params, deploy bool) (*Agent, error) {
	params = params.WithDefaultProject(s.cfg.DefaultProject)

	var typ deployments.Type
	if deploy {
		if _, err := params.RequireProject(); err != nil {
			return nil, err
		}
		raw, _ := payload["deploymentType"].(string)
		t, err := deployments.ParseType(raw)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	cfg, err := reconcile.Reconcile(payload, s.opts())
	if err != nil {
		return nil, err
	}
	cfg.ID = uuid.New()

	a, err := s.store.Create(ctx, Agent{
		Config:    cfg,
		ProjectID: params.EffectiveProject(),
		Region:    params.EffectiveRegion(s.cfg.DefaultRegion),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent created", "id", a.ID(), "name", cfg.DisplayName, "framework", cfg.Framework)

	if !deploy {
		return a, nil
	}

	if _, err := s.Deploy(ctx, a.ID(), params, typ); err != nil {
		return nil, fmt.Errorf("agent %s saved as draft but not deployed: %w", a.ID(), err)
	}
	return s.Find(ctx, a.ID())
}

// Update merges payload over the stored config. With updateDeployment set,
// the merged config is pushed to the ACTIVE Agent Engine deployment, which
// must exist before anything is written.
func (s *system) Update(ctx context.Context, id uuid.UUID, payload map[string]any, params reconcile.Params, updateDeployment bool) (*Agent, error) {
	current, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	var active *deployments.Deployment
	if updateDeployment {
		project, region, err := s.requireTarget(current, params)
		if err != nil {
			return nil, err
		}
		active, err = s.findActive(ctx, deployments.Key{
			AgentID:   id,
			ProjectID: project,
			Region:    region,
			Type:      deployments.TypeAgentEngine,
		})
		if err != nil {
			return nil, err
		}
	}

	merged, err := reconcile.Merge(current.Config, payload, s.opts())
	if err != nil {
		return nil, err
	}

	next := Agent{Config: merged, ProjectID: current.ProjectID, Region: current.Region}
	if p := params.EffectiveProject(); p != "" {
		next.ProjectID = p
	}
	if params.Region != "" {
		next.Region = params.Region
	}

	// The remote push goes first so a rejected update leaves the stored
	// record matching what is deployed.
	if active != nil {
		wire := reconcile.WirePayload(merged, active.ProjectID, active.Region)
		if _, err := s.deps.Engines.Update(ctx, active.ResourceName, wire); err != nil {
			return nil, err
		}
		s.logger.Info("deployment updated", "id", id, "resource", active.ResourceName)
	}

	updated, err := s.store.Update(ctx, next)
	if err != nil {
		if active != nil {
			s.restoreDeployment(ctx, active, current.Config)
		}
		return nil, err
	}

	return updated, nil
}

// restoreDeployment pushes the previous config back after a failed local
// write. Failures are logged; the caller already has an error to return.
func (s *system) restoreDeployment(ctx context.Context, d *deployments.Deployment, prev *reconcile.AgentConfig) {
	wire := reconcile.WirePayload(prev, d.ProjectID, d.Region)
	if _, err := s.deps.Engines.Update(context.WithoutCancel(ctx), d.ResourceName, wire); err != nil {
		s.logger.Error("deployment restore failed", "resource", d.ResourceName, "error", err)
		return
	}
	s.logger.Warn("deployment restored after failed update", "resource", d.ResourceName)
}

func (s *system) Tests(ctx context.Context, id uuid.UUID, limit int) ([]testruns.TestRecord, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, err
	}
	return s.deps.Tests.List(ctx, id, limit)
}

func (s *system) Deployments(ctx context.Context, id uuid.UUID) ([]deployments.Deployment, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, err
	}
	return s.deps.Deployments.ListByAgent(ctx, id)
}

// mutable loads an agent that may still be changed.
func (s *system) mutable(ctx context.Context, id uuid.UUID) (*Agent, error) {
	a, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Config.Status == reconcile.StatusDeleted {
		return nil, fmt.Errorf("%w: %s", ErrDeleted, id)
	}
	return a, nil
}

// target resolves placement: explicit parameters first, then where the
// agent was created, then the service defaults.
func (s *system) target(a *Agent, params reconcile.Params) (project, region string) {
	project = params.EffectiveProject()
	if project == "" {
		project = a.ProjectID
	}
	if project == "" {
		project = s.cfg.DefaultProject
	}

	region = params.Region
	if region == "" {
		region = a.Region
	}
	if region == "" {
		region = params.EffectiveRegion(s.cfg.DefaultRegion)
	}
	return project, region
}

func (s *system) requireTarget(a *Agent, params reconcile.Params) (string, string, error) {
	project, region := s.target(a, params)
	if project == "" {
		return "", "", reconcile.ErrMissingProjectID
	}
	return project, region, nil
}

func (s *system) advance(ctx context.Context, a *Agent, next reconcile.Status) {
	current := a.Config.Status
	if current.Advance(next) == current {
		return
	}
	if err := s.store.SetStatus(ctx, a.ID(), next); err != nil {
		s.logger.Warn("status change failed", "id", a.ID(), "from", current, "to", next, "error", err)
		return
	}
	a.Config.Status = next
}
