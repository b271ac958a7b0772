package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/cardforge/internal/cli"
)

func main() {
	flags := cli.NewFlags()
	rootCmd := cli.CreateRootCommand(flags)

	cobra.OnInitialize(func() {
		cli.InitConfig(flags.SettingsFile)
	})

	// Cancel provider calls on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
