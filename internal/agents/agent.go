// Package agents owns the stored agent configurations and orchestrates
// everything done with them: reconciliation on write, playground runs,
// deployment to Agent Engine or Cloud Run, and queries against those
// deployments.
package agents

import (
	"encoding/json"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/internal/testruns"
	"github.com/google/uuid"
)

// Agent is a stored configuration with its placement and bookkeeping.
type Agent struct {
	Config      *reconcile.AgentConfig
	ProjectID   string
	Region      string
	Deployments []deployments.Deployment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarshalJSON flattens the configuration next to the record fields so
// clients see one object.
func (a Agent) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(cfg, &fields); err != nil {
		return nil, err
	}

	extra := map[string]any{
		"projectId": a.ProjectID,
		"region":    a.Region,
		"createdAt": a.CreatedAt,
		"updatedAt": a.UpdatedAt,
	}
	if a.Deployments != nil {
		extra["deployments"] = a.Deployments
	}
	for k, v := range extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}

	return json.Marshal(fields)
}

func (a *Agent) ID() uuid.UUID {
	return a.Config.ID
}

// Config carries the service-wide defaults agents fall back to.
type Config struct {
	DefaultProject string
	DefaultRegion  string
	FallbackModel  string
}

// PlaygroundResult is the outcome of one playground turn. A failed turn is
// still a result: Success is false and the response carries the error text.
type PlaygroundResult struct {
	AgentID    uuid.UUID            `json:"agentId"`
	Success    bool                 `json:"success"`
	Response   *dispatch.Response   `json:"response"`
	Test       *testruns.TestRecord `json:"test"`
	DurationMS int64                `json:"durationMs"`
}

// QueryRequest is the body of a query against a deployed agent.
type QueryRequest struct {
	Query string `json:"query"`
}

// DeployRequest is the body of a deploy call.
type DeployRequest struct {
	DeploymentType string `json:"deploymentType"`
}
