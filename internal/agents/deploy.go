package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JaimeStill/vertex-agent/internal/cloudrun"
	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// remoteDeleteLimit bounds concurrent remote deletes for one agent.
const remoteDeleteLimit = 4

// Deploy materializes the agent on typ in the resolved project and region.
// An ACTIVE deployment for the same placement is returned as is. The agent
// only becomes DEPLOYED after the remote call succeeds; a failed call
// leaves a FAILED record carrying the upstream error.
func (s *system) Deploy(ctx context.Context, id uuid.UUID, params reconcile.Params, typ deployments.Type) (*deployments.Deployment, error) {
	typ, err := deployments.ParseType(string(typ))
	if err != nil {
		return nil, err
	}
	if typ == deployments.TypeCloudRun {
		if _, err := s.cloudRun(); err != nil {
			return nil, err
		}
	}

	a, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	project, region, err := s.requireTarget(a, params)
	if err != nil {
		return nil, err
	}

	key := deployments.Key{AgentID: id, ProjectID: project, Region: region, Type: typ}

	existing, err := s.deps.Deployments.FindActive(ctx, key)
	if err == nil {
		s.logger.Info("deployment already active", "id", id, "resource", existing.ResourceName)
		return existing, nil
	}
	if !errors.Is(err, deployments.ErrNotFound) {
		return nil, err
	}

	pending, err := s.deps.Deployments.Create(ctx, deployments.Deployment{
		AgentID:   id,
		Type:      typ,
		ProjectID: project,
		Region:    region,
	})
	if err != nil {
		return nil, err
	}

	resource, endpoint, err := s.materialize(ctx, a.Config, typ, project, region)
	if err != nil {
		detail := err.Error()
		if serr := s.deps.Deployments.SetStatus(ctx, pending.ID, deployments.StatusFailed, &detail); serr != nil {
			s.logger.Warn("deployment status not recorded", "deployment", pending.ID, "error", serr)
		}
		return nil, err
	}

	active, err := s.deps.Deployments.Activate(ctx, pending.ID, resource, endpoint)
	if errors.Is(err, deployments.ErrDuplicate) {
		s.logger.Warn("concurrent deployment won, remote resource orphaned",
			"id", id, "deployment", pending.ID, "resource", resource)
		detail := "superseded by a concurrent deployment"
		if serr := s.deps.Deployments.SetStatus(ctx, pending.ID, deployments.StatusFailed, &detail); serr != nil {
			s.logger.Warn("deployment status not recorded", "deployment", pending.ID, "error", serr)
		}
		return s.deps.Deployments.FindActive(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	s.advance(ctx, a, reconcile.StatusDeployed)

	s.logger.Info("agent deployed",
		"id", id,
		"type", typ,
		"version", active.Version,
		"resource", resource,
	)
	return active, nil
}

func (s *system) materialize(ctx context.Context, cfg *reconcile.AgentConfig, typ deployments.Type, project, region string) (string, *string, error) {
	switch typ {
	case deployments.TypeCloudRun:
		svc, err := s.deps.CloudRun.Deploy(ctx, cloudrun.Target{Project: project, Region: region}, cloudrun.RunnerConfig(cfg))
		if err != nil {
			return "", nil, err
		}
		uri := svc.URI
		return svc.Name, &uri, nil
	default:
		e, err := s.deps.Engines.Create(ctx, engine.Target{Project: project, Region: region}, reconcile.WirePayload(cfg, project, region))
		if err != nil {
			return "", nil, err
		}
		return e.Name, nil, nil
	}
}

// Delete soft-deletes the agent, then removes every ACTIVE deployment
// remotely. Remote failures are logged and never undo the local delete;
// deleting again retries the deployments still ACTIVE.
func (s *system) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Find(ctx, id); err != nil {
		return err
	}

	if err := s.store.MarkDeleted(ctx, id); err != nil {
		return err
	}
	s.logger.Info("agent deleted", "id", id)

	active, err := s.deps.Deployments.ListActive(ctx, id)
	if err != nil {
		s.logger.Warn("active deployments not listed, remote resources kept", "id", id, "error", err)
		return nil
	}

	var g errgroup.Group
	g.SetLimit(remoteDeleteLimit)

	for _, d := range active {
		g.Go(func() error {
			if err := s.removeRemote(ctx, d); err != nil {
				s.logger.Warn("remote delete failed",
					"id", id,
					"deployment", d.ID,
					"resource", d.ResourceName,
					"error", err,
				)
				return nil
			}
			if err := s.deps.Deployments.SetStatus(ctx, d.ID, deployments.StatusDeleted, nil); err != nil {
				s.logger.Warn("deployment status not recorded", "deployment", d.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	return nil
}

func (s *system) removeRemote(ctx context.Context, d deployments.Deployment) error {
	switch d.Type {
	case deployments.TypeCloudRun:
		run, err := s.cloudRun()
		if err != nil {
			return err
		}
		return run.Delete(ctx, d.ResourceName)
	default:
		return s.deps.Engines.Delete(ctx, d.ResourceName)
	}
}

// Query runs query against the agent's ACTIVE deployment in the resolved
// project and region. Unlike the playground, every failure is returned.
func (s *system) Query(ctx context.Context, id uuid.UUID, params reconcile.Params, query string) (*dispatch.Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	a, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	project, region, err := s.requireTarget(a, params)
	if err != nil {
		return nil, err
	}

	d, err := s.findActive(ctx, deployments.Key{AgentID: id, ProjectID: project, Region: region})
	if err != nil {
		return nil, err
	}

	switch d.Type {
	case deployments.TypeCloudRun:
		if d.EndpointURL == nil || *d.EndpointURL == "" {
			return nil, fmt.Errorf("%w: deployment %s has no endpoint", cloudrun.ErrRemote, d.ID)
		}
		run, err := s.cloudRun()
		if err != nil {
			return nil, err
		}
		return run.Invoke(ctx, *d.EndpointURL, query)
	default:
		return s.deps.Engines.Query(ctx, d.ResourceName, query)
	}
}

func (s *system) findActive(ctx context.Context, key deployments.Key) (*deployments.Deployment, error) {
	d, err := s.deps.Deployments.FindActive(ctx, key)
	if errors.Is(err, deployments.ErrNotFound) {
		return nil, fmt.Errorf("%w: agent %s in %s/%s", ErrNoActiveDeployment, key.AgentID, key.ProjectID, key.Region)
	}
	return d, err
}

// cloudRun returns the runner deployer, which is absent when no runner
// image is configured.
func (s *system) cloudRun() (cloudrun.Deployer, error) {
	if s.deps.CloudRun == nil {
		return nil, fmt.Errorf("%w: cloud run deployments are not configured", ErrInvalidRequest)
	}
	return s.deps.CloudRun, nil
}
