package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/internal/testruns"
	"github.com/google/uuid"
)

var playgroundKeys = []string{"query", "id", "agentId", "agent_id"}

// Playground runs one test turn. The body names a stored agent by id, with
// optional unsaved overrides, or carries a full payload that is saved as a
// new DRAFT first. A test record is written for every run, and a failed
// run is reported in the result rather than as an error.
func (s *system) Playground(ctx context.Context, payload map[string]any, params reconcile.Params) (*PlaygroundResult, error) {
	query, _ := payload["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}

	overrides := make(map[string]any, len(payload))
	for k, v := range payload {
		overrides[k] = v
	}
	for _, k := range playgroundKeys {
		delete(overrides, k)
	}

	a, cfg, err := s.playgroundAgent(ctx, payload, overrides, params)
	if err != nil {
		return nil, err
	}

	project, region := s.target(a, params)

	start := time.Now()
	resp, runErr := s.deps.Runner.Run(ctx, cfg, dispatch.Target{Project: project, Region: region}, query)
	elapsed := time.Since(start)

	metrics := map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"success":     runErr == nil,
		"framework":   string(cfg.Framework),
	}
	if runErr != nil {
		resp = dispatch.ErrorResponse(runErr)
		metrics["error"] = runErr.Error()
	} else {
		metrics["actions"] = len(resp.Actions)
	}

	// The record outlives a client that disconnects mid-run.
	rec, err := s.deps.Tests.Record(context.WithoutCancel(ctx), testruns.TestRecord{
		AgentID:  a.ID(),
		Query:    query,
		Response: resp.TextResponse,
		Metrics:  metrics,
		Success:  runErr == nil,
	})
	if err != nil {
		return nil, err
	}

	if runErr == nil {
		s.advance(ctx, a, reconcile.StatusTested)
	}

	return &PlaygroundResult{
		AgentID:    a.ID(),
		Success:    runErr == nil,
		Response:   resp,
		Test:       rec,
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (s *system) playgroundAgent(ctx context.Context, payload, overrides map[string]any, params reconcile.Params) (*Agent, *reconcile.AgentConfig, error) {
	var rawID string
	for _, k := range playgroundKeys[1:] {
		if v, ok := payload[k].(string); ok && v != "" {
			rawID = v
			break
		}
	}

	if rawID == "" {
		a, err := s.Create(ctx, overrides, params, false)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Config, nil
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid agent id %q", ErrInvalidRequest, rawID)
	}

	a, err := s.mutable(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(overrides) == 0 {
		return a, a.Config, nil
	}

	cfg, err := reconcile.Merge(a.Config, overrides, s.opts())
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}
