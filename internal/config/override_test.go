package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseOverrides(t *testing.T) {
	environ := []string{
		"CARDFORGE_SYSTEM_LOG_LEVEL=debug",
		"CARDFORGE_PROVIDERS_DATA_VOCAB_READONLY=true",
		"CARDFORGE_ENV=dev",
		"OTHER_SYSTEM_X=1",
		"CARDFORGE_PIPELINES_VOCABULARY_DECK=Bulgarian Words",
	}

	got := ParseOverrides(environ, DefaultPrefix)
	want := []Override{
		{Variable: "CARDFORGE_PIPELINES_VOCABULARY_DECK", Path: []string{"pipelines", "vocabulary", "deck"}, Value: "Bulgarian Words"},
		{Variable: "CARDFORGE_PROVIDERS_DATA_VOCAB_READONLY", Path: []string{"providers", "data", "vocab", "readonly"}, Value: true},
		{Variable: "CARDFORGE_SYSTEM_LOG_LEVEL", Path: []string{"system", "logLevel"}, Value: "debug"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseOverrides() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", 42},
		{"-3", -3},
		{"1.5", 1.5},
		{"null", nil},
		{`["a", 2]`, []any{"a", 2}},
		{`{"k": {"n": 1}}`, map[string]any{"k": map[string]any{"n": 1}}},
		{"debug", "debug"},
		{`"quoted"`, `"quoted"`},
		{"1 2", "1 2"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseValue(tt.raw)); diff != "" {
				t.Errorf("ParseValue(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestApplyOverridesReplacesScalars(t *testing.T) {
	values := map[string]any{"providers": "legacy"}
	ApplyOverrides(values, []Override{{Path: []string{"providers", "audio", "x"}, Value: 1}})

	want := map[string]any{"providers": map[string]any{"audio": map[string]any{"x": 1}}}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("ApplyOverrides() mismatch (-want +got):\n%s", diff)
	}
}
