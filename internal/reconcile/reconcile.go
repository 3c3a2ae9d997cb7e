// Package reconcile normalizes loosely shaped agent payloads into one
// canonical AgentConfig and renders the canonical wire payload sent to
// Vertex AI Agent Engine.
//
// Accepted spellings vary by client generation: model vs modelId, flat or
// nested system instructions, flat or nested generation and framework
// settings, snake_case or camelCase keys. Unknown keys are ignored.
package reconcile

import (
	"strings"
)

// Options carries server-side defaults applied during reconciliation.
type Options struct {
	FallbackModel string
}

func (o Options) fallbackModel() string {
	if o.FallbackModel != "" {
		return o.FallbackModel
	}
	return DefaultModel
}

// Reconcile builds a canonical DRAFT AgentConfig from payload. It is pure:
// nothing is persisted and no remote call is made.
func Reconcile(payload map[string]any, opts Options) (*AgentConfig, error) {
	cfg := &AgentConfig{Status: StatusDraft}

	name, _ := lookupString(payload, keyDisplayName)
	cfg.DisplayName = strings.TrimSpace(name)
	if cfg.DisplayName == "" {
		return nil, validationf("displayName is required")
	}

	cfg.Description, _ = lookupString(payload, keyDescription)

	fwRaw, _ := lookupString(payload, keyFramework)
	fw, err := ParseFramework(fwRaw)
	if err != nil {
		return nil, err
	}
	cfg.Framework = fw

	cfg.ModelID = ExtractModelID(payload, opts.fallbackModel())

	if v, ok := lookup(payload, keySystemInstruction); ok {
		cfg.SystemInstruction = ExtractSystemInstruction(v)
	}

	gen, err := reconcileGeneration(payload)
	if err != nil {
		return nil, err
	}
	cfg.Generation = gen

	nested := lookupMap(payload, keyFrameworkConfig)

	cfg.Tools = []ToolRef{}
	if v, ok := lookup(payload, keyTools); ok {
		if cfg.Tools, err = parseTools(v); err != nil {
			return nil, err
		}
	} else if v, ok := lookup(nested, keyTools); ok {
		if cfg.Tools, err = parseTools(v); err != nil {
			return nil, err
		}
	}

	if code, ok := lookupString(payload, keyCustomCode); ok {
		cfg.CustomCode = strings.TrimSpace(code)
	}

	cfg.FrameworkConfig, err = buildFrameworkConfig(fw, payload, nested, cfg.Tools)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge applies an update payload over a stored config. Keys absent from
// payload keep their stored values; identity and status are preserved.
func Merge(base *AgentConfig, payload map[string]any, opts Options) (*AgentConfig, error) {
	current := ToPayload(base)

	for _, group := range aliasGroups {
		for _, k := range group {
			if _, ok := payload[k]; ok {
				for _, alias := range group {
					if alias != k {
						delete(current, alias)
					}
				}
				break
			}
		}
	}
	if _, ok := lookup(payload, keyModel); ok {
		if _, explicit := lookup(payload, keyModelID); !explicit {
			for _, k := range keyModelID {
				delete(current, k)
			}
		}
	}

	if _, ok := lookup(payload, keyTools); !ok {
		if _, ok := lookup(lookupMap(payload, keyFrameworkConfig), keyTools); ok {
			delete(current, "tools")
		}
	}

	merged, err := Reconcile(mergeMaps(current, payload), opts)
	if err != nil {
		return nil, err
	}

	merged.ID = base.ID
	merged.Status = base.Status
	return merged, nil
}

// ToPayload renders cfg in the nested canonical shape accepted by Reconcile.
func ToPayload(cfg *AgentConfig) map[string]any {
	gen := map[string]any{
		"temperature":     cfg.Generation.Temperature,
		"maxOutputTokens": cfg.Generation.MaxOutputTokens,
	}
	if cfg.Generation.TopP != nil {
		gen["topP"] = *cfg.Generation.TopP
	}
	if cfg.Generation.TopK != nil {
		gen["topK"] = *cfg.Generation.TopK
	}

	tools := make([]any, len(cfg.Tools))
	for i, t := range cfg.Tools {
		tools[i] = t.String()
	}

	out := map[string]any{
		"displayName":       cfg.DisplayName,
		"description":       cfg.Description,
		"framework":         string(cfg.Framework),
		"modelId":           cfg.ModelID,
		"systemInstruction": cfg.SystemInstruction,
		"generationConfig":  gen,
		"tools":             tools,
	}
	if cfg.CustomCode != "" {
		out["customCode"] = cfg.CustomCode
	}
	if fc := frameworkConfigMap(cfg); len(fc) > 0 {
		out["frameworkConfig"] = fc
	}
	return out
}

// ExtractModelID resolves the model id: modelId wins, then the suffix after
// the last "models/" segment of model, then fallback.
func ExtractModelID(payload map[string]any, fallback string) string {
	if id, ok := lookupString(payload, keyModelID); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}

	if model, ok := lookupString(payload, keyModel); ok {
		if i := strings.LastIndex(model, "models/"); i >= 0 {
			if id := strings.TrimSpace(model[i+len("models/"):]); id != "" {
				return id
			}
		}
	}

	return fallback
}

// ExtractSystemInstruction accepts a plain string or {"parts":[{"text":s}]}.
// Any other shape yields "".
func ExtractSystemInstruction(v any) string {
	switch si := v.(type) {
	case string:
		return si
	case map[string]any:
		parts, ok := si["parts"].([]any)
		if !ok || len(parts) == 0 {
			return ""
		}
		first, ok := parts[0].(map[string]any)
		if !ok {
			return ""
		}
		text, _ := first["text"].(string)
		return text
	default:
		return ""
	}
}

// NestSystemInstruction is the egress inverse of ExtractSystemInstruction.
func NestSystemInstruction(s string) map[string]any {
	return map[string]any{
		"parts": []any{
			map[string]any{"text": s},
		},
	}
}

func reconcileGeneration(payload map[string]any) (GenerationConfig, error) {
	gen := GenerationConfig{
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
	nested := lookupMap(payload, keyGenerationConfig)

	get := func(keys []string) (any, bool) {
		if v, ok := lookup(payload, keys); ok {
			return v, true
		}
		return lookup(nested, keys)
	}

	if v, ok := get(keyTemperature); ok {
		t, ok := toFloat(v)
		if !ok || t < 0 || t > 2 {
			return gen, validationf("temperature must be a number between 0 and 2")
		}
		gen.Temperature = t
	}

	if v, ok := get(keyMaxOutputTokens); ok {
		n, ok := toInt(v)
		if !ok || n <= 0 || n > MaxOutputTokensLimit {
			return gen, validationf("maxOutputTokens must be an integer between 1 and %d", MaxOutputTokensLimit)
		}
		gen.MaxOutputTokens = n
	}

	if v, ok := get(keyTopP); ok {
		p, ok := toFloat(v)
		if !ok || p < 0 || p > 1 {
			return gen, validationf("topP must be a number between 0 and 1")
		}
		gen.TopP = &p
	}

	if v, ok := get(keyTopK); ok {
		k, ok := toInt(v)
		if !ok || k <= 0 || k > MaxTopK {
			return gen, validationf("topK must be an integer between 1 and %d", MaxTopK)
		}
		gen.TopK = &k
	}

	return gen, nil
}
