package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	env := map[string]string{
		"HOST":  "example.org",
		"URL":   "https://${HOST}/api",
		"A":     "${B}",
		"B":     "${A}",
		"SELF":  "x${SELF}",
		"EMPTY": "",
		"X":     "x",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "no placeholders", "no placeholders"},
		{"set", "${HOST}", "example.org"},
		{"default unused", "${HOST:other}", "example.org"},
		{"default used", "${PORT:8080}", "8080"},
		{"empty default", "[${PORT:}]", "[]"},
		{"empty value wins", "[${EMPTY:fallback}]", "[]"},
		{"unresolved stays", "${NOPE}", "${NOPE}"},
		{"embedded", "http://${HOST}:${PORT:80}/", "http://example.org:80/"},
		{"recursive", "${URL}", "https://example.org/api"},
		{"cycle", "${A}", "${A}"},
		{"self reference", "${SELF}", "x${SELF}"},
		{"nested default", "${MISSING:${X}}", "x"},
		{"nested default unused", "${HOST:${X}}", "example.org"},
		{"deeply nested default", "${M1:${M2:${X}-y}}", "x-y"},
		{"nested default unresolved", "${M1:${M2}}", "${M2}"},
		{"nested default cycle", "${M1:${M1}}", "${M1}"},
		{"text after nested default", "${M1:${X}}/tail}", "x/tail}"},
		{"unterminated", "cost ${X", "cost ${X"},
		{"not a name", "${1X} ${}", "${1X} ${}"},
		{"dollar before placeholder", "$${X}", "$x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.input, mapLookup(env)); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSubstituteIsIdempotent(t *testing.T) {
	env := mapLookup(map[string]string{"A": "${B}", "B": "${A}", "K": "v"})
	input := map[string]any{
		"a": "${A}",
		"k": []any{"${K}", map[string]any{"deep": "${K:d}"}},
		"n": 3,
	}

	first := Substitute(input, env)
	second := Substitute(input, env)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Substitute() not idempotent (-first +second):\n%s", diff)
	}

	want := map[string]any{
		"a": "${A}",
		"k": []any{"v", map[string]any{"deep": "v"}},
		"n": 3,
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("Substitute() mismatch (-want +got):\n%s", diff)
	}
	if input["a"] != "${A}" {
		t.Error("Substitute() modified its input")
	}
}
