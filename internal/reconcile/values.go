package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Alias groups list every accepted spelling of a canonical key, in precedence order.
var (
	keyDisplayName       = []string{"displayName", "display_name", "name"}
	keyDescription       = []string{"description"}
	keyFramework         = []string{"framework"}
	keyModelID           = []string{"modelId", "model_id"}
	keyModel             = []string{"model"}
	keySystemInstruction = []string{"systemInstruction", "system_instruction"}
	keyGenerationConfig  = []string{"generationConfig", "generation_config"}
	keyTemperature       = []string{"temperature"}
	keyMaxOutputTokens   = []string{"maxOutputTokens", "max_output_tokens"}
	keyTopP              = []string{"topP", "top_p"}
	keyTopK              = []string{"topK", "top_k"}
	keyFrameworkConfig   = []string{"frameworkConfig", "framework_config"}
	keyTools             = []string{"tools"}
	keyCustomCode        = []string{"customCode", "custom_code"}
	keyGraphType         = []string{"graphType", "graph_type"}
	keyInitialState      = []string{"initialState", "initial_state", "stateDefinition", "state_definition"}
	keyDataStoreID       = []string{"dataStoreId", "data_store_id"}
	keyDataStoreRegion   = []string{"dataStoreRegion", "data_store_region"}
	keyProcessType       = []string{"processType", "process_type"}
	keyAgents            = []string{"agents"}
	keyTasks             = []string{"tasks"}
)

var aliasGroups = [][]string{
	keyDisplayName, keyDescription, keyFramework, keyModelID, keyModel,
	keySystemInstruction, keyGenerationConfig, keyTemperature, keyMaxOutputTokens,
	keyTopP, keyTopK, keyFrameworkConfig, keyTools, keyCustomCode, keyGraphType,
	keyInitialState, keyDataStoreID, keyDataStoreRegion, keyProcessType,
	keyAgents, keyTasks,
}

// lookup returns the first present, non-nil value among keys.
func lookup(m map[string]any, keys []string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(m map[string]any, keys []string) (string, bool) {
	v, ok := lookup(m, keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupMap(m map[string]any, keys []string) map[string]any {
	v, ok := lookup(m, keys)
	if !ok {
		return nil
	}
	sub, _ := v.(map[string]any)
	return sub
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// mergeMaps overlays src onto dst one level deep: nested maps are merged,
// everything else is replaced.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				merged := make(map[string]any, len(dm)+len(sm))
				for dk, dv := range dm {
					merged[dk] = dv
				}
				for sk, sv := range sm {
					merged[sk] = sv
				}
				out[k] = merged
				continue
			}
		}
		out[k] = v
	}
	return out
}
