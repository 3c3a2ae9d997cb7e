package reconcile

import (
	"fmt"
	"net/url"
	"strings"
)

// Params carries the project and region query parameters of a request.
// Both project_id and projectId spellings are accepted.
type Params struct {
	ProjectID    string
	ProjectIDAlt string
	Region       string
}

// ParamsFromQuery reads project_id, projectId and region.
func ParamsFromQuery(values url.Values) Params {
	return Params{
		ProjectID:    strings.TrimSpace(values.Get("project_id")),
		ProjectIDAlt: strings.TrimSpace(values.Get("projectId")),
		Region:       strings.TrimSpace(values.Get("region")),
	}
}

// EffectiveProject prefers project_id and treats the empty string as absent.
func (p Params) EffectiveProject() string {
	if p.ProjectID != "" {
		return p.ProjectID
	}
	return p.ProjectIDAlt
}

// RequireProject returns the effective project or ErrMissingProjectID.
func (p Params) RequireProject() (string, error) {
	if project := p.EffectiveProject(); project != "" {
		return project, nil
	}
	return "", ErrMissingProjectID
}

// EffectiveRegion returns region, falling back to def and then us-central1.
func (p Params) EffectiveRegion(def string) string {
	if p.Region != "" {
		return p.Region
	}
	if def != "" {
		return def
	}
	return DefaultRegion
}

// WithDefaultProject fills the project from def when the request gave none.
func (p Params) WithDefaultProject(def string) Params {
	if p.EffectiveProject() == "" {
		p.ProjectID = def
	}
	return p
}

// ModelResource returns the fully qualified publisher model name.
func ModelResource(project, region, modelID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", project, region, modelID)
}

// WirePayload renders the canonical Agent Engine request body.
func WirePayload(cfg *AgentConfig, project, region string) map[string]any {
	out := map[string]any{
		"displayName": cfg.DisplayName,
		"description": cfg.Description,
		"generationConfig": map[string]any{
			"temperature":     cfg.Generation.Temperature,
			"maxOutputTokens": cfg.Generation.MaxOutputTokens,
		},
		"systemInstruction": NestSystemInstruction(cfg.SystemInstruction),
		"model":             ModelResource(project, region, cfg.ModelID),
	}

	if cfg.Framework != "" {
		out["framework"] = string(cfg.Framework)
	}
	if fc := frameworkConfigMap(cfg); len(fc) > 0 {
		out["frameworkConfig"] = fc
	}

	return out
}

// frameworkConfigMap flattens the variant into the key layout clients send.
func frameworkConfigMap(cfg *AgentConfig) map[string]any {
	switch fc := cfg.FrameworkConfig.(type) {
	case *LangGraphConfig:
		out := map[string]any{"graphType": fc.GraphType}
		if len(cfg.Tools) > 0 {
			tools := make([]any, len(cfg.Tools))
			for i, t := range cfg.Tools {
				tools[i] = t.String()
			}
			out["tools"] = tools
		}
		if fc.InitialState != nil {
			out["initialState"] = fc.InitialState
		}
		if fc.DataStore != nil {
			out["dataStoreId"] = fc.DataStore.ID
			out["dataStoreRegion"] = fc.DataStore.Region
		}
		return out

	case *CrewAIConfig:
		agents := make([]any, len(fc.Agents))
		for i, a := range fc.Agents {
			agents[i] = map[string]any{"role": a.Role, "goal": a.Goal, "backstory": a.Backstory}
		}
		tasks := make([]any, len(fc.Tasks))
		for i, t := range fc.Tasks {
			tasks[i] = map[string]any{
				"description":          t.Description,
				"expected_output":      t.ExpectedOutput,
				"assigned_agent_index": t.AssignedAgentIndex,
			}
		}
		return map[string]any{
			"processType": fc.ProcessType,
			"agents":      agents,
			"tasks":       tasks,
		}

	default:
		return nil
	}
}
