package config

import (
	"encoding/json"
	"fmt"
	"math"
)

// Merge deep-merges overlay into base and returns base. Mappings present
// on both sides merge recursively; any other overlay value replaces the
// base value at that path.
func Merge(base, overlay map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for key, value := range overlay {
		next, isMap := value.(map[string]any)
		current, baseIsMap := base[key].(map[string]any)
		if isMap && baseIsMap {
			base[key] = Merge(current, next)
			continue
		}
		base[key] = deepCopy(value)
	}
	return base
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

// normalize converts decoder output into plain map[string]any / []any trees
// with int, float64, bool, string and nil leaves
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int64:
		return int(t)
	case int32:
		return int(t)
	case uint64:
		if t <= math.MaxInt {
			return int(t)
		}
		return t
	case float64:
		return t
	default:
		return v
	}
}
