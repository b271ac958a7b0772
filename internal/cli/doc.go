// Package cli provides the cardforge command line: listing pipelines,
// describing them, running stages and phases, and inspecting the resolved
// configuration and providers. It uses cobra for commands and viper for
// the user's own settings file.
package cli
