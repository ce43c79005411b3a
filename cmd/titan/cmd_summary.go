package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/titan-sim/titan/internal/output"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <dir>...",
		Short: "Summarize a counter across runs",
		Long: `Summarize one counter, summed over strata, for every run and step.

Each argument is a run directory or an output directory of run directories.
Runs need the sqliteReport in outputs.reports.

Examples:
  titan summary out
  titan summary out/<run id> --stat hiv_new --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			stat, _ := cmd.Flags().GetString("stat")

			dbs, err := findReportDBs(args)
			if err != nil {
				return err
			}
			if len(dbs) == 0 {
				return fmt.Errorf("no %s found (enable sqliteReport in outputs.reports)", output.SQLiteReportFile)
			}

			var points []output.Point
			for _, db := range dbs {
				ps, err := output.ReadTotals(cmd.Context(), db, stat)
				if err != nil {
					return fmt.Errorf("%s: %w", db, err)
				}
				points = append(points, ps...)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"stat": stat, "points": points})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "RUN\tT\t%s\n", stat)
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%d\t%d\n", p.RunID, p.T, p.Value)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("stat", "hiv", "Counter to summarize")

	return cmd
}

// findReportDBs returns the report databases in or directly below each dir.
func findReportDBs(dirs []string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
		own := filepath.Join(dir, output.SQLiteReportFile)
		if _, err := os.Stat(own); err == nil {
			out = append(out, own)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*", output.SQLiteReportFile))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}
