package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestCreateRootCommand(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := CreateRootCommand(NewFlags())

	if cmd.Use != "cardforge" {
		t.Errorf("Expected Use to be 'cardforge', got %s", cmd.Use)
	}

	for _, name := range []string{"list", "info", "run", "config", "providers"} {
		t.Run("command_"+name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			if err != nil || sub == cmd {
				t.Errorf("Expected subcommand %s to exist", name)
			}
		})
	}

	for _, name := range []string{"settings", "config", "env", "project-root", "log-level", "log-format", "verbose"} {
		t.Run("flag_"+name, func(t *testing.T) {
			if cmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("Expected persistent flag %s to exist", name)
			}
		})
	}

	run, _, _ := cmd.Find([]string{"run"})
	for _, name := range []string{"phase", "dry-run", "arg"} {
		if run.Flags().Lookup(name) == nil {
			t.Errorf("Expected run flag %s to exist", name)
		}
	}
}

func TestNormalizeFlagName(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	flags := NewFlags()
	cmd := CreateRootCommand(flags)
	if err := cmd.PersistentFlags().Parse([]string{"--log_level", "debug", "--project_root", "/tmp/x"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if flags.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", flags.LogLevel)
	}
	if flags.ProjectRoot != "/tmp/x" {
		t.Errorf("ProjectRoot = %q, want /tmp/x", flags.ProjectRoot)
	}
}

func TestBindFlagsToViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{}
	setupFlags(cmd, NewFlags())

	cmd.PersistentFlags().Set("project-root", "/test/project")
	cmd.PersistentFlags().Set("env", "staging")

	if got := viper.GetString("project_root"); got != "/test/project" {
		t.Errorf("Expected project_root to be /test/project, got %s", got)
	}
	if got := viper.GetString("env"); got != "staging" {
		t.Errorf("Expected env to be staging, got %s", got)
	}
	if got := viper.GetString("log_level"); got != "" {
		t.Errorf("Expected empty log_level, got %s", got)
	}
}

func TestInitConfig(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		wantKey   string
	}{
		{
			name: "with settings file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "settings.yaml")
				content := "openai_api_key: file-key\nenv: production\n"
				if err := os.WriteFile(path, []byte(content), 0644); err != nil {
					t.Fatalf("Failed to create settings file: %v", err)
				}
				return path
			},
			wantKey: "file-key",
		},
		{
			name:      "without settings file",
			setupFunc: func(t *testing.T) string { return "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv("HOME", t.TempDir())

			InitConfig(tt.setupFunc(t))

			t.Setenv("CARDFORGE_TEST_VAR", "test-value")
			if viper.GetString("test_var") != "test-value" {
				t.Error("Environment variable not properly loaded")
			}
			if got := viper.GetString("openai_api_key"); got != tt.wantKey {
				t.Errorf("openai_api_key = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestGetOpenAIKey(t *testing.T) {
	tests := []struct {
		name      string
		envKey    string
		configKey string
		expected  string
	}{
		{name: "from environment", envKey: "env-test-key", configKey: "config-test-key", expected: "env-test-key"},
		{name: "from settings when no env", configKey: "config-test-key", expected: "config-test-key"},
		{name: "empty when neither set", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv("OPENAI_API_KEY", tt.envKey)

			if tt.configKey != "" {
				viper.Set("openai_api_key", tt.configKey)
			}

			if got := GetOpenAIKey(); got != tt.expected {
				t.Errorf("GetOpenAIKey() = %v, want %v", got, tt.expected)
			}
		})
	}
}
