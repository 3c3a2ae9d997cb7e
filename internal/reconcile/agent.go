package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 1024
	DefaultRegion          = "us-central1"
	DefaultModel           = "gemini-1.5-pro"

	// MaxOutputTokensLimit is the largest value the model API accepts
	// (an int32 field).
	MaxOutputTokensLimit = 1<<31 - 1
	MaxTopK              = 1000
)

// Predefined tool names.
const (
	ToolCalculator   = "calculator"
	ToolCurrentTime  = "current_time"
	ToolRetrieveDocs = "retrieve_docs"
	ToolSearch       = "search"
)

type GenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

// ToolRef names either a predefined tool or a stored custom tool.
// Exactly one field is set.
type ToolRef struct {
	Name         string `json:"name,omitempty"`
	CustomToolID string `json:"customToolId,omitempty"`
}

func (t ToolRef) IsCustom() bool {
	return t.CustomToolID != ""
}

func (t ToolRef) String() string {
	if t.IsCustom() {
		return "custom:" + t.CustomToolID
	}
	return t.Name
}

// HasTool reports whether tools references the predefined tool name.
func HasTool(tools []ToolRef, name string) bool {
	for _, t := range tools {
		if !t.IsCustom() && t.Name == name {
			return true
		}
	}
	return false
}

// AgentConfig is the canonical agent record.
type AgentConfig struct {
	ID                uuid.UUID        `json:"id"`
	DisplayName       string           `json:"displayName"`
	Description       string           `json:"description"`
	Framework         Framework        `json:"framework"`
	ModelID           string           `json:"modelId"`
	Generation        GenerationConfig `json:"generationConfig"`
	SystemInstruction string           `json:"systemInstruction"`
	FrameworkConfig   FrameworkConfig  `json:"frameworkConfig"`
	Tools             []ToolRef        `json:"tools"`
	CustomCode        string           `json:"customCode,omitempty"`
	Status            Status           `json:"status"`
}

type agentJSON struct {
	ID                uuid.UUID        `json:"id"`
	DisplayName       string           `json:"displayName"`
	Description       string           `json:"description"`
	Framework         Framework        `json:"framework"`
	ModelID           string           `json:"modelId"`
	Generation        GenerationConfig `json:"generationConfig"`
	SystemInstruction string           `json:"systemInstruction"`
	FrameworkConfig   json.RawMessage  `json:"frameworkConfig"`
	Tools             []ToolRef        `json:"tools"`
	CustomCode        string           `json:"customCode,omitempty"`
	Status            Status           `json:"status"`
}

func (a AgentConfig) MarshalJSON() ([]byte, error) {
	fc := a.FrameworkConfig
	if fc == nil {
		fc = &CustomConfig{}
	}
	raw, err := json.Marshal(fc)
	if err != nil {
		return nil, err
	}

	tools := a.Tools
	if tools == nil {
		tools = []ToolRef{}
	}

	return json.Marshal(agentJSON{
		ID:                a.ID,
		DisplayName:       a.DisplayName,
		Description:       a.Description,
		Framework:         a.Framework,
		ModelID:           a.ModelID,
		Generation:        a.Generation,
		SystemInstruction: a.SystemInstruction,
		FrameworkConfig:   raw,
		Tools:             tools,
		CustomCode:        a.CustomCode,
		Status:            a.Status,
	})
}

// UnmarshalJSON decodes the canonical form produced by MarshalJSON,
// dispatching frameworkConfig on the framework tag.
func (a *AgentConfig) UnmarshalJSON(data []byte) error {
	var aux agentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fw, err := ParseFramework(string(aux.Framework))
	if err != nil {
		return err
	}

	fc, err := decodeFrameworkConfig(fw, aux.FrameworkConfig)
	if err != nil {
		return err
	}

	*a = AgentConfig{
		ID:                aux.ID,
		DisplayName:       aux.DisplayName,
		Description:       aux.Description,
		Framework:         fw,
		ModelID:           aux.ModelID,
		Generation:        aux.Generation,
		SystemInstruction: aux.SystemInstruction,
		FrameworkConfig:   fc,
		Tools:             aux.Tools,
		CustomCode:        aux.CustomCode,
		Status:            aux.Status,
	}
	return nil
}

// parseTools normalizes tool descriptors. Accepted forms: "calculator",
// "custom:<id>", and objects carrying name, id, customToolId or toolId.
func parseTools(v any) ([]ToolRef, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, validationf("tools must be a list")
	}

	tools := make([]ToolRef, 0, len(items))
	seen := make(map[ToolRef]bool, len(items))

	for i, item := range items {
		var ref ToolRef

		switch t := item.(type) {
		case string:
			t = strings.TrimSpace(t)
			if id, ok := strings.CutPrefix(t, "custom:"); ok {
				ref.CustomToolID = strings.TrimSpace(id)
			} else {
				ref.Name = t
			}
		case map[string]any:
			if id, ok := lookupString(t, []string{"customToolId", "custom_tool_id", "toolId", "tool_id", "id"}); ok && id != "" {
				ref.CustomToolID = id
			} else if name, ok := lookupString(t, []string{"name"}); ok {
				ref.Name = strings.TrimSpace(name)
			}
		default:
			return nil, validationf("tools[%d] must be a string or object", i)
		}

		if ref.Name == "" && ref.CustomToolID == "" {
			return nil, validationf("tools[%d] has no name or id", i)
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		tools = append(tools, ref)
	}

	return tools, nil
}
