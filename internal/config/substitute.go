package config

import (
	"slices"
	"strings"
)

// LookupFunc reports the value of an environment variable
type LookupFunc func(name string) (string, bool)

// Substitute returns a copy of values with placeholders in every string
// leaf replaced. Lists and nested mappings are walked recursively.
func Substitute(values map[string]any, lookup LookupFunc) map[string]any {
	return substituteValue(values, lookup).(map[string]any)
}

func substituteValue(v any, lookup LookupFunc) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = substituteValue(item, lookup)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = substituteValue(item, lookup)
		}
		return out
	case string:
		return Expand(t, lookup)
	default:
		return v
	}
}

// Expand replaces ${NAME} and ${NAME:default} in s. The environment value
// wins over the default; without either the placeholder stays as written.
// Values and defaults are expanded in turn. A name that is already being
// expanded further up the chain is left literally, which stops cycles
// such as A=${B}, B=${A}.
func Expand(s string, lookup LookupFunc) string {
	return expand(s, lookup, nil)
}

func expand(s string, lookup LookupFunc, chain []string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])

		p, ok := parsePlaceholder(s[i:])
		if !ok {
			b.WriteString("${")
			s = s[i+2:]
			continue
		}
		b.WriteString(p.resolve(lookup, chain))
		s = s[i+len(p.raw):]
	}
}

type placeholder struct {
	raw        string
	name       string
	def        string
	hasDefault bool
}

func (p placeholder) resolve(lookup LookupFunc, chain []string) string {
	if slices.Contains(chain, p.name) {
		return p.raw
	}
	next := append(slices.Clone(chain), p.name)

	if value, ok := lookup(p.name); ok {
		return expand(value, lookup, next)
	}
	if p.hasDefault {
		return expand(p.def, lookup, next)
	}
	return p.raw
}

// parsePlaceholder reads ${NAME} or ${NAME:default} from the start of s.
// Braces inside the default nest, so ${A:${B}} is one placeholder.
func parsePlaceholder(s string) (placeholder, bool) {
	n := 2
	for n < len(s) && isNameByte(s[n], n == 2) {
		n++
	}
	if n == 2 || n == len(s) {
		return placeholder{}, false
	}
	p := placeholder{name: s[2:n]}

	switch s[n] {
	case '}':
		p.raw = s[:n+1]
		return p, true
	case ':':
		depth := 1
		for j := n + 1; j < len(s); j++ {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					p.raw = s[:j+1]
					p.def = s[n+1 : j]
					p.hasDefault = true
					return p, true
				}
			}
		}
	}
	return placeholder{}, false
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
