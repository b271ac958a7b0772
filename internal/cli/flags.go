package cli

import (
	"fmt"
	"strings"
)

// Flags holds all command-line flag values
type Flags struct {
	// Global flags
	SettingsFile string
	ConfigFiles  []string
	Env          string
	ProjectRoot  string
	LogLevel     string
	LogFormat    string
	Verbose      bool

	// run flags
	Phase  string
	DryRun bool
	Args   []string

	// config flags
	ShowSecrets bool
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		ProjectRoot: ".",
	}
}

// ParseArgs turns key=value pairs into stage arguments. Values stay
// strings; a later pair overrides an earlier one with the same key.
func ParseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", pair)
		}
		args[key] = value
	}
	return args, nil
}
