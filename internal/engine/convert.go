package engine

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	queryMethod          = "query"
	defaultPythonVersion = "3.10"

	// configField carries the full wire payload on the query method so the
	// deployed runtime builds its agent from the same model, instruction,
	// generation and framework settings the service stores.
	configField = "agent_config"
)

// BuildEngine converts a wire payload into a reasoning engine resource.
// requirementsURI may be empty when no staging bucket is configured.
func BuildEngine(payload map[string]any, requirementsURI, pythonVersion string) (*aiplatformpb.ReasoningEngine, error) {
	if pythonVersion == "" {
		pythonVersion = defaultPythonVersion
	}

	config, err := plainMap(payload)
	if err != nil {
		return nil, fmt.Errorf("encode agent config: %w", err)
	}

	method, err := structpb.NewStruct(map[string]any{
		"name":        queryMethod,
		"api_mode":    "",
		"description": "Answer a single user query.",
		"framework":   stringValue(payload, "framework"),
		configField:   config,
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"input": map[string]any{"type": "string"}},
			"required":   []any{"input"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build class method: %w", err)
	}

	return &aiplatformpb.ReasoningEngine{
		DisplayName: stringValue(payload, "displayName"),
		Description: stringValue(payload, "description"),
		Spec: &aiplatformpb.ReasoningEngineSpec{
			PackageSpec: &aiplatformpb.ReasoningEngineSpec_PackageSpec{
				RequirementsGcsUri: requirementsURI,
				PythonVersion:      pythonVersion,
			},
			ClassMethods: []*structpb.Struct{method},
		},
	}, nil
}

// FromProto converts a reasoning engine resource into an Engine.
func FromProto(pb *aiplatformpb.ReasoningEngine) *Engine {
	e := &Engine{
		Name:        pb.GetName(),
		DisplayName: pb.GetDisplayName(),
		Description: pb.GetDescription(),
	}
	if ts := pb.GetCreateTime(); ts != nil {
		e.CreateTime = ts.AsTime()
	}
	if ts := pb.GetUpdateTime(); ts != nil {
		e.UpdateTime = ts.AsTime()
	}
	for _, m := range pb.GetSpec().GetClassMethods() {
		fields := m.GetFields()
		if e.Framework == "" {
			e.Framework = fields["framework"].GetStringValue()
		}
		if cfg := fields[configField].GetStructValue(); cfg != nil && e.Config == nil {
			e.Config = cfg.AsMap()
		}
	}
	return e
}

// plainMap reduces payload to the JSON value types structpb accepts.
func plainMap(payload map[string]any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
