package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/snonux/cardforge/internal"
)

// CreateRootCommand creates and configures the root cobra command with
// all subcommands
func CreateRootCommand(flags *Flags) *cobra.Command {
	app := NewApp(flags)

	rootCmd := &cobra.Command{
		Use:   "cardforge",
		Short: "Flashcard content pipelines",
		Long: `cardforge runs content pipelines that turn word lists into Anki
flashcards with audio, pronunciation and images.

Providers (storage, speech, images, Anki targets) are declared in
config/core.yaml below the project root and may be overridden per
environment and through CARDFORGE_* variables.

Examples:
  cardforge list                                  # Show pipelines
  cardforge run vocabulary --phase full --arg words=words.txt
  cardforge run vocabulary audio --dry-run        # Show what would run
  cardforge providers vocabulary                  # Show configured providers`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, flags)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.AddCommand(
		app.listCommand(),
		app.infoCommand(),
		app.runCommand(),
		app.configCommand(),
		app.providersCommand(),
	)
	return rootCmd
}

// normalizeFlagName accepts --log_level for --log-level, matching the
// spelling of the settings keys
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.SettingsFile, "settings", "", "settings file (default is $HOME/.cardforge.yaml)")
	pf.StringArrayVarP(&flags.ConfigFiles, "config", "c", nil, "extra configuration file, may be repeated (highest priority last)")
	pf.StringVarP(&flags.Env, "env", "e", "", "environment; loads config/<env>.* on top of config/core.*")
	pf.StringVarP(&flags.ProjectRoot, "project-root", "C", flags.ProjectRoot, "project root holding config/")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error (default from system.logLevel, else warn)")
	pf.StringVar(&flags.LogFormat, "log-format", "", "log format: console or json (default from system.logFormat)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "debug logging")

	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	viper.BindPFlag("env", pf.Lookup("env"))
	viper.BindPFlag("project_root", pf.Lookup("project-root"))
	viper.BindPFlag("log_level", pf.Lookup("log-level"))
	viper.BindPFlag("log_format", pf.Lookup("log-format"))
}

// InitConfig initializes viper configuration
func InitConfig(settingsFile string) {
	if settingsFile != "" {
		viper.SetConfigFile(settingsFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".cardforge" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cardforge")
	}

	viper.SetEnvPrefix("CARDFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using settings file:", viper.ConfigFileUsed())
	}
}

// GetOpenAIKey retrieves the OpenAI API key from environment or settings
func GetOpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("openai_api_key")
}
