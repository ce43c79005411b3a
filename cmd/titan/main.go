package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "titan",
		Short: "TITAN - agent-based HIV transmission simulation",
		Long: `titan simulates HIV transmission over a dynamic partnership network.

It builds a synthetic population from hierarchical YAML parameters, steps it
through partnering, interactions and interventions, and writes stratified
reports for every run of a parameter sweep.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (default from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newGraphCmd(),
		newSummaryCmd(),
	)
	return rootCmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
