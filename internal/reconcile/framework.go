package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FrameworkConfig is the framework-specific part of an agent. Each framework
// has exactly one variant; the set is closed to this package.
type FrameworkConfig interface {
	Framework() Framework
	sealed()
}

// CustomConfig carries no settings; CUSTOM agents use the top-level fields only.
type CustomConfig struct{}

type LangChainConfig struct{}

type LlamaIndexConfig struct{}

// DataStoreRef points at a Vertex AI Search datastore used for grounding.
type DataStoreRef struct {
	ID     string `json:"dataStoreId"`
	Region string `json:"dataStoreRegion"`
}

type LangGraphConfig struct {
	GraphType    string         `json:"graphType"`
	InitialState map[string]any `json:"initialState,omitempty"`
	DataStore    *DataStoreRef  `json:"dataStore,omitempty"`
}

type CrewAgent struct {
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
}

type CrewTask struct {
	Description        string `json:"description"`
	ExpectedOutput     string `json:"expected_output"`
	AssignedAgentIndex int    `json:"assigned_agent_index"`
}

type CrewAIConfig struct {
	ProcessType string      `json:"processType"`
	Agents      []CrewAgent `json:"agents"`
	Tasks       []CrewTask  `json:"tasks"`
}

func (CustomConfig) Framework() Framework     { return FrameworkCustom }
func (LangChainConfig) Framework() Framework  { return FrameworkLangChain }
func (LlamaIndexConfig) Framework() Framework { return FrameworkLlamaIndex }
func (LangGraphConfig) Framework() Framework  { return FrameworkLangGraph }
func (CrewAIConfig) Framework() Framework     { return FrameworkCrewAI }

func (CustomConfig) sealed()     {}
func (LangChainConfig) sealed()  {}
func (LlamaIndexConfig) sealed() {}
func (LangGraphConfig) sealed()  {}
func (CrewAIConfig) sealed()     {}

// buildFrameworkConfig reads framework settings from src, where flat
// top-level keys take precedence over the nested frameworkConfig object.
func buildFrameworkConfig(fw Framework, flat, nested map[string]any, tools []ToolRef) (FrameworkConfig, error) {
	get := func(keys []string) (any, bool) {
		if v, ok := lookup(flat, keys); ok {
			return v, true
		}
		return lookup(nested, keys)
	}
	getString := func(keys []string) string {
		v, ok := get(keys)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return strings.TrimSpace(s)
	}

	switch fw {
	case FrameworkLangGraph:
		cfg := &LangGraphConfig{GraphType: getString(keyGraphType)}
		if cfg.GraphType == "" {
			return nil, validationf("graphType is required for LANGGRAPH")
		}

		if v, ok := get(keyInitialState); ok {
			state, err := parseInitialState(v)
			if err != nil {
				return nil, err
			}
			cfg.InitialState = state
		}

		id := getString(keyDataStoreID)
		region := getString(keyDataStoreRegion)
		if ds, ok := nested["dataStore"].(map[string]any); ok {
			if id == "" {
				id, _ = lookupString(ds, keyDataStoreID)
			}
			if region == "" {
				region, _ = lookupString(ds, keyDataStoreRegion)
			}
		}

		if HasTool(tools, ToolRetrieveDocs) {
			if id == "" || region == "" {
				return nil, validationf("dataStoreId and dataStoreRegion are required when %s is used", ToolRetrieveDocs)
			}
		}
		if id != "" || region != "" {
			cfg.DataStore = &DataStoreRef{ID: id, Region: region}
		}
		return cfg, nil

	case FrameworkCrewAI:
		cfg := &CrewAIConfig{ProcessType: getString(keyProcessType)}
		if cfg.ProcessType == "" {
			return nil, validationf("processType is required for CREWAI")
		}

		if v, ok := get(keyAgents); ok {
			if err := remarshal(v, &cfg.Agents); err != nil {
				return nil, validationf("agents: %v", err)
			}
		}
		if v, ok := get(keyTasks); ok {
			tasks, err := parseTasks(v)
			if err != nil {
				return nil, err
			}
			cfg.Tasks = tasks
		}

		for i, task := range cfg.Tasks {
			if task.AssignedAgentIndex < 0 || task.AssignedAgentIndex >= len(cfg.Agents) {
				return nil, validationf(
					"tasks[%d].assigned_agent_index %d out of range for %d agents",
					i, task.AssignedAgentIndex, len(cfg.Agents),
				)
			}
		}
		return cfg, nil

	case FrameworkLangChain:
		return &LangChainConfig{}, nil
	case FrameworkLlamaIndex:
		return &LlamaIndexConfig{}, nil
	default:
		return &CustomConfig{}, nil
	}
}

// parseInitialState accepts an object or a JSON-encoded object string.
func parseInitialState(v any) (map[string]any, error) {
	switch s := v.(type) {
	case map[string]any:
		return s, nil
	case string:
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, validationf("initialState is not a JSON object: %v", err)
		}
		return out, nil
	default:
		return nil, validationf("initialState must be an object")
	}
}

func parseTasks(v any) ([]CrewTask, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, validationf("tasks must be a list")
	}

	tasks := make([]CrewTask, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, validationf("tasks[%d] must be an object", i)
		}

		task := CrewTask{}
		task.Description, _ = lookupString(m, []string{"description"})
		task.ExpectedOutput, _ = lookupString(m, []string{"expected_output", "expectedOutput"})

		raw, ok := lookup(m, []string{"assigned_agent_index", "assignedAgentIndex"})
		if !ok {
			return nil, validationf("tasks[%d].assigned_agent_index is required", i)
		}
		idx, ok := toInt(raw)
		if !ok {
			return nil, validationf("tasks[%d].assigned_agent_index must be an integer", i)
		}
		task.AssignedAgentIndex = idx

		tasks = append(tasks, task)
	}
	return tasks, nil
}

// decodeFrameworkConfig restores a stored variant from its JSON form.
func decodeFrameworkConfig(fw Framework, raw json.RawMessage) (FrameworkConfig, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	var target FrameworkConfig
	switch fw {
	case FrameworkLangGraph:
		target = &LangGraphConfig{}
	case FrameworkCrewAI:
		target = &CrewAIConfig{}
	case FrameworkLangChain:
		return &LangChainConfig{}, nil
	case FrameworkLlamaIndex:
		return &LlamaIndexConfig{}, nil
	default:
		return &CustomConfig{}, nil
	}

	if !empty {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s framework config: %w", fw, err)
		}
	}
	return target, nil
}

func remarshal(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
