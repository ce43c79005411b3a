package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/titan-sim/titan/internal/config"
	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/runner"
)

// runSummary is the JSON form of a finished run.
type runSummary struct {
	ID         string `json:"run_id"`
	Row        int    `json:"row"`
	Rep        int    `json:"rep"`
	Sweep      string `json:"sweep,omitempty"`
	Dir        string `json:"dir"`
	RunSeed    int64  `json:"rseed"`
	PopSeed    int64  `json:"pseed"`
	NetSeed    int64  `json:"nseed"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func newRunSummary(r *runner.Run) runSummary {
	s := runSummary{
		ID:         r.ID,
		Row:        r.Row,
		Rep:        r.Rep,
		Sweep:      r.Definition.String(),
		Dir:        r.Dir,
		RunSeed:    r.RunSeed,
		PopSeed:    r.PopSeed,
		NetSeed:    r.NetSeed,
		Status:     string(r.Status),
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run simulations",
		Long: `Run one or more simulations and write their reports.

Every run gets its own directory under the output directory holding the
effective parameters, the reports and, at debug level, the event log. A
runs.tsv index lists the seeds and status of every run.

Examples:
  titan run --setting basic
  titan run -p params.yml --nMC 5 --outdir out
  titan run -p params.yml --sweep model.num_pop:100:300:100 --sweep calibration.acquisition:0.5:1.5:0.5
  titan run -p params.yml --sweepfile sweep.csv --rows 2:4
  titan run -p params.yml --poppath out/<run id>/pop/<run id>.tar.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			opts, err := runOptions(cmd, cfg)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(opts.LogLevel, cmd.ErrOrStderr())
			r, err := runner.New(opts, logger)
			if err != nil {
				return err
			}
			logger.Info("starting runs", "definitions", len(r.Definitions()), "nMC", opts.NMC, "outdir", opts.OutDir)

			start := time.Now()
			runs, runErr := r.Run(cmd.Context())
			if err := printRuns(cmd, runs); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("runs failed: %w", runErr)
			}
			logger.Info("all runs finished", "runs", len(runs), "duration", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringSliceP("params", "p", nil, "Params file(s), merged over the setting in order")
	cmd.Flags().StringP("setting", "s", "", "Embedded setting name or setting file")
	cmd.Flags().Int("nMC", 1, "Number of Monte Carlo repetitions of each definition")
	cmd.Flags().StringP("outdir", "o", "", "Output directory (default from config)")
	cmd.Flags().StringArray("sweep", nil, "Sweep a parameter: param:start:stop[:step] (repeatable)")
	cmd.Flags().String("sweepfile", "", "CSV file of sweep definitions, one per row")
	cmd.Flags().String("rows", "", "Rows start:stop of the sweep file to run (1-based, inclusive)")
	cmd.Flags().Bool("savepop", false, "Save each run's population before it runs")
	cmd.Flags().String("poppath", "", "Load a saved population instead of creating one")
	cmd.Flags().Bool("force", false, "Write into a non-empty output directory")
	cmd.Flags().Int("parallel", 0, "Maximum concurrent runs (default from config)")

	return cmd
}

// runOptions combines the flags with the config defaults.
func runOptions(cmd *cobra.Command, cfg *config.TitanConfig) (runner.Options, error) {
	flags := cmd.Flags()
	opts := runner.Options{
		OutDir:   cfg.Output.Dir,
		Parallel: cfg.Runner.Parallel,
		Compress: cfg.Output.CompressPopulations,
		LogLevel: cfg.Logging.Level,
	}
	opts.ParamsFiles, _ = flags.GetStringSlice("params")
	opts.Setting, _ = flags.GetString("setting")
	opts.NMC, _ = flags.GetInt("nMC")
	opts.Sweeps, _ = flags.GetStringArray("sweep")
	opts.SweepFile, _ = flags.GetString("sweepfile")
	opts.Rows, _ = flags.GetString("rows")
	opts.SavePop, _ = flags.GetBool("savepop")
	opts.PopPath, _ = flags.GetString("poppath")
	opts.Force, _ = flags.GetBool("force")

	if dir, _ := flags.GetString("outdir"); dir != "" {
		opts.OutDir = dir
	}
	if n, _ := flags.GetInt("parallel"); n > 0 {
		opts.Parallel = n
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		opts.LogLevel = level
	}
	if opts.Setting == "" && len(opts.ParamsFiles) == 0 {
		return opts, fmt.Errorf("either --setting or --params is required")
	}
	return opts, opts.Validate()
}

func printRuns(cmd *cobra.Command, runs []*runner.Run) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		summaries := make([]runSummary, len(runs))
		for i, r := range runs {
			summaries[i] = newRunSummary(r)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"runs": summaries})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tROW\tREP\tSTATUS\tDURATION\tSWEEP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n", r.ID, r.Row, r.Rep, r.Status, r.Duration.Round(time.Millisecond), r.Definition)
	}
	return w.Flush()
}
