package config

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultPrefix marks environment variables that override configuration
const DefaultPrefix = "CARDFORGE_"

// systemSection keeps flat camelCase keys instead of nesting
const systemSection = "system"

// Override is one parsed prefixed environment variable
type Override struct {
	Variable string
	Path     []string
	Value    any
}

// ParseOverrides extracts the overrides from environ ("KEY=value" pairs).
// The prefix is stripped, the rest split on "_" and lower-cased; the first
// segment names the section. For the system section the remaining segments
// form one camelCase key (CARDFORGE_SYSTEM_LOG_LEVEL -> system.logLevel),
// for any other section every segment is a nesting level
// (CARDFORGE_PROVIDERS_AUDIO_DEFAULT_VOICE -> providers.audio.default.voice).
// Variables without a key below the section are ignored. The result is
// sorted by variable name so application order is stable.
func ParseOverrides(environ []string, prefix string) []Override {
	var overrides []Override

	for _, entry := range environ {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}

		var segments []string
		for _, seg := range strings.Split(strings.TrimPrefix(name, prefix), "_") {
			if seg != "" {
				segments = append(segments, strings.ToLower(seg))
			}
		}
		if len(segments) < 2 {
			continue
		}

		path := segments
		if segments[0] == systemSection {
			path = []string{systemSection, camelJoin(segments[1:])}
		}

		overrides = append(overrides, Override{
			Variable: name,
			Path:     path,
			Value:    ParseValue(raw),
		})
	}

	sort.Slice(overrides, func(i, j int) bool {
		return overrides[i].Variable < overrides[j].Variable
	})
	return overrides
}

// ApplyOverrides writes every override into values, creating intermediate
// mappings as needed. A non-mapping value in the way is replaced.
func ApplyOverrides(values map[string]any, overrides []Override) map[string]any {
	if values == nil {
		values = map[string]any{}
	}
	for _, o := range overrides {
		node := values
		for _, key := range o.Path[:len(o.Path)-1] {
			child, ok := node[key].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[key] = child
			}
			node = child
		}
		node[o.Path[len(o.Path)-1]] = o.Value
	}
	return values
}

// ParseValue interprets an override value as a JSON literal (boolean,
// number, array, object or null) and falls back to the raw string
func ParseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	// quoted strings stay verbatim
	if trimmed[0] == '"' {
		return raw
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return normalize(v)
}

func camelJoin(segments []string) string {
	var b strings.Builder
	for i, seg := range segments {
		if i == 0 {
			b.WriteString(seg)
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]))
		b.WriteString(seg[1:])
	}
	return b.String()
}
