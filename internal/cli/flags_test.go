package cli

import (
	"reflect"
	"testing"
)

func TestNewFlags(t *testing.T) {
	flags := NewFlags()

	if flags.ProjectRoot != "." {
		t.Errorf("ProjectRoot = %q, want .", flags.ProjectRoot)
	}
	if flags.DryRun || flags.Verbose || flags.ShowSecrets {
		t.Error("boolean flags should default to false")
	}
	if flags.Phase != "" || len(flags.Args) != 0 || len(flags.ConfigFiles) != 0 {
		t.Errorf("unexpected defaults %+v", flags)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "empty",
			pairs: nil,
			want:  map[string]any{},
		},
		{
			name:  "simple pairs",
			pairs: []string{"words=words.txt", "deck=My Deck"},
			want:  map[string]any{"words": "words.txt", "deck": "My Deck"},
		},
		{
			name:  "value with equals sign",
			pairs: []string{"note=a=b"},
			want:  map[string]any{"note": "a=b"},
		},
		{
			name:  "values stay strings",
			pairs: []string{"force=true", "limit=3"},
			want:  map[string]any{"force": "true", "limit": "3"},
		},
		{
			name:  "later pair wins",
			pairs: []string{"deck=a", "deck=b"},
			want:  map[string]any{"deck": "b"},
		},
		{
			name:  "empty value",
			pairs: []string{"voice="},
			want:  map[string]any{"voice": ""},
		},
		{
			name:    "missing equals",
			pairs:   []string{"words"},
			wantErr: true,
		},
		{
			name:    "missing key",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}
