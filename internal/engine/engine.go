// Package engine manages agents deployed to Vertex AI Agent Engine
// (reasoning engines). The control plane is treated as opaque: payloads
// produced by the reconciler go in, resource names and normalized query
// responses come out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
)

var (
	ErrRemote      = errors.New("remote service error")
	ErrInvalidName = errors.New("invalid reasoning engine name")
)

// MapHTTPStatus converts engine errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrMissingProjectID), errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Target identifies the project and region that own an engine.
type Target struct {
	Project string
	Region  string
}

// Parent returns the collection path engines are created under.
func (t Target) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", t.Project, t.Region)
}

// Engine is the control plane's view of a deployed agent.
type Engine struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Framework   string    `json:"framework,omitempty"`

	// Config is the agent configuration the engine was deployed with.
	Config map[string]any `json:"config,omitempty"`

	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
}

// ID returns the trailing id segment of the engine's resource name.
func (e *Engine) ID() string {
	_, id, err := ParseName(e.Name)
	if err != nil {
		return ""
	}
	return id
}

// Remote is the Agent Engine control plane.
type Remote interface {
	Create(ctx context.Context, target Target, payload map[string]any) (*Engine, error)
	Get(ctx context.Context, name string) (*Engine, error)
	List(ctx context.Context, target Target) ([]Engine, error)
	Update(ctx context.Context, name string, payload map[string]any) (*Engine, error)
	Delete(ctx context.Context, name string) error
	Query(ctx context.Context, name, query string) (*dispatch.Response, error)
}

// ResourceName builds projects/{p}/locations/{r}/reasoningEngines/{id}.
func ResourceName(target Target, id string) string {
	return target.Parent() + "/reasoningEngines/" + id
}

// ParseName splits a reasoning engine resource name into its target and id.
func ParseName(name string) (Target, string, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "reasoningEngines" {
		return Target{}, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, p := range []string{parts[1], parts[3], parts[5]} {
		if p == "" {
			return Target{}, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return Target{Project: parts[1], Region: parts[3]}, parts[5], nil
}
