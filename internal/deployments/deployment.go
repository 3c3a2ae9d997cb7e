// Package deployments records where agents have been materialized. At most
// one deployment per agent, project, region and type may be ACTIVE; the
// database enforces this with a partial unique index.
package deployments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAgentEngine Type = "AGENT_ENGINE"
	TypeCloudRun    Type = "CLOUD_RUN"
)

// ParseType accepts either type case-insensitively and defaults to
// AGENT_ENGINE when s is empty.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return TypeAgentEngine, nil
	case TypeAgentEngine, TypeCloudRun:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown deployment type %q", ErrInvalidType, s)
	}
}

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusFailed  Status = "FAILED"
	StatusDeleted Status = "DELETED"
)

// Deployment is one materialization of an agent on a remote target.
type Deployment struct {
	ID           uuid.UUID `json:"id"`
	AgentID      uuid.UUID `json:"agentId"`
	Type         Type      `json:"deploymentType"`
	Version      int       `json:"version"`
	ProjectID    string    `json:"projectId"`
	Region       string    `json:"region"`
	ResourceName string    `json:"resourceName"`
	Status       Status    `json:"status"`
	EndpointURL  *string   `json:"endpointUrl,omitempty"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Key selects the deployments of an agent on a project and region. An
// empty Type matches every type.
type Key struct {
	AgentID   uuid.UUID
	ProjectID string
	Region    string
	Type      Type
}
