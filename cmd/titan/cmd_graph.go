package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/popio"
	"github.com/titan-sim/titan/internal/population"
	"github.com/titan-sim/titan/internal/runner"
	"github.com/titan-sim/titan/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize a saved population's partnership network",
		Long: `Output the partnership network of a saved population in DOT (Graphviz)
or JSON format, or serve it over HTTP.

Parameters are read from --setting/--params, or from the params.yml of the
run directory the population was saved in.

Examples:
  titan graph --poppath out/<run id>/pop/<run id>.tar.gz
  titan graph --poppath out/<run id>/pop --format json --centrality
  titan graph --poppath out/<run id>/pop --serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			popPath, _ := cmd.Flags().GetString("poppath")
			setting, _ := cmd.Flags().GetString("setting")
			files, _ := cmd.Flags().GetStringSlice("params")
			format, _ := cmd.Flags().GetString("format")
			component, _ := cmd.Flags().GetString("component")
			centrality, _ := cmd.Flags().GetBool("centrality")
			serve, _ := cmd.Flags().GetBool("serve")
			addr, _ := cmd.Flags().GetString("addr")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			level, _ := cmd.Flags().GetString("log-level")

			if popPath == "" {
				return fmt.Errorf("--poppath is required")
			}
			p, err := graphParams(popPath, setting, files)
			if err != nil {
				return err
			}
			pop, err := popio.Read(popPath, p, population.Options{
				Logger: logging.NewLogger(level, cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("load population: %w", err)
			}

			if serve {
				return runGraphServer(cmd, pop, addr, noOpen)
			}

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}
			opts := visualization.Options{Component: component, Centrality: centrality}
			switch f {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(pop, opts))
			case visualization.FormatJSON:
				result, err := visualization.RenderJSON(pop, opts)
				if err != nil {
					return fmt.Errorf("render JSON: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("poppath", "", "Saved population directory or archive")
	cmd.Flags().StringSliceP("params", "p", nil, "Params file(s), merged over the setting in order")
	cmd.Flags().StringP("setting", "s", "", "Embedded setting name or setting file")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().String("component", "", "Only render the component with this label")
	cmd.Flags().Bool("centrality", false, "Add eigenvector centrality to JSON nodes")
	cmd.Flags().Bool("serve", false, "Serve the network over HTTP until interrupted")
	cmd.Flags().String("addr", "localhost:0", "Listen address for --serve")
	cmd.Flags().Bool("no-open", false, "Don't open a browser with --serve")

	return cmd
}

// graphParams loads the parameters a saved population was built with.
func graphParams(popPath, setting string, files []string) (*params.Tree, error) {
	if setting != "" || len(files) > 0 {
		return params.Load(setting, files...)
	}
	dir := filepath.Dir(filepath.Clean(popPath))
	for _, candidate := range []string{
		filepath.Join(dir, runner.ParamsFile),
		filepath.Join(filepath.Dir(dir), runner.ParamsFile),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return params.Load("", candidate)
		}
	}
	return nil, errors.New("no params found next to the population; pass --setting or --params")
}

// runGraphServer serves the network and blocks until the command's context
// is cancelled.
func runGraphServer(cmd *cobra.Command, pop *population.Population, addr string, noOpen bool) error {
	srv := visualization.NewServer(pop)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && srv.Addr() == "" {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if srv.Addr() == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + srv.Addr()
	fmt.Fprintf(cmd.OutOrStdout(), "Graph server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	// Block until server exits
	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
