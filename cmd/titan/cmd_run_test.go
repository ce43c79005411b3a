package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/output"
	"github.com/titan-sim/titan/internal/runner"
)

func TestRunCmd(t *testing.T) {
	outDir, runs := runOnce(t)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, "done", r.Status, "run %s: %s", r.ID, r.Error)
		assert.Equal(t, []int64{21, 22, 23}, []int64{r.RunSeed, r.PopSeed, r.NetSeed}, "run %s seeds", r.ID)
		for _, f := range []string{output.BasicReportFile, output.SQLiteReportFile, "params.yml"} {
			assert.FileExists(t, filepath.Join(outDir, r.ID, f))
		}
	}
	assert.FileExists(t, filepath.Join(outDir, "runs.tsv"))

	// A second run into the same directory needs --force.
	_, err := execute(t, "run", "-s", "basic", "-p", writeTestParams(t), "--outdir", outDir)
	assert.ErrorIs(t, err, runner.ErrOutDirNotEmpty)
}

func TestRunCmd_FlagErrors(t *testing.T) {
	isolateHome(t)
	params := writeTestParams(t)
	sweepFile := writeFile(t, "sweep.csv", "model.num_pop\n40\n50\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no setting or params", nil, "either --setting or --params is required"},
		{"zero repetitions", []string{"-p", params, "--nMC", "0"}, "NMC"},
		{"sweep and sweep file", []string{"-p", params, "--sweep", "model.num_pop:40:60:10", "--sweepfile", sweepFile}, "mutually exclusive"},
		{"rows without sweep file", []string{"-p", params, "--rows", "1:2"}, "rows require a sweep file"},
		{"unknown log level", []string{"-p", params, "--log-level", "verbose"}, "LogLevel"},
		{"malformed sweep", []string{"-p", params, "--sweep", "model.num_pop"}, "invalid sweep"},
		{"rows out of range", []string{"-p", params, "--sweepfile", sweepFile, "--rows", "2:5"}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "out")
			args := append([]string{"run", "--outdir", outDir}, tt.args...)
			_, err := execute(t, args...)
			require.ErrorContains(t, err, tt.want)
			assert.NoFileExists(t, filepath.Join(outDir, "runs.tsv"))
		})
	}
}

func TestRunCmd_Sweep(t *testing.T) {
	isolateHome(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "run", "-s", "basic", "-p", writeTestParams(t),
		"--sweep", "model.num_pop:40:60:10", "--outdir", outDir, "--json")
	require.NoError(t, err)

	runs := decodeRuns(t, out)
	require.Len(t, runs, 2)
	var sweeps []string
	for _, r := range runs {
		assert.Equal(t, "done", r.Status, "run %s: %s", r.ID, r.Error)
		assert.Equal(t, 1, r.Rep)
		sweeps = append(sweeps, r.Sweep)
	}
	assert.ElementsMatch(t, []string{"model.num_pop=40", "model.num_pop=50"}, sweeps)
}

func TestRunCmd_SweepFileRows(t *testing.T) {
	isolateHome(t)
	outDir := filepath.Join(t.TempDir(), "out")
	sweepFile := writeFile(t, "sweep.csv", "model.num_pop\n40\n50\n60\n")

	out, err := execute(t, "run", "-s", "basic", "-p", writeTestParams(t),
		"--sweepfile", sweepFile, "--rows", "2:3", "--nMC", "2", "--outdir", outDir, "--json")
	require.NoError(t, err)

	runs := decodeRuns(t, out)
	require.Len(t, runs, 4)
	counts := make(map[string]int)
	for _, r := range runs {
		assert.Equal(t, "done", r.Status, "run %s: %s", r.ID, r.Error)
		counts[r.Sweep]++
	}
	assert.Equal(t, map[string]int{"model.num_pop=50": 2, "model.num_pop=60": 2}, counts)
}

func TestRunCmd_TableOutput(t *testing.T) {
	isolateHome(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "run", "-s", "basic", "-p", writeTestParams(t), "-o", outDir)
	require.NoError(t, err)
	assert.Regexp(t, `^RUN\s+ROW\s+REP\s+STATUS\s+DURATION\s+SWEEP\n`, out)
	assert.Contains(t, out, "done")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	// One run directory plus the run index.
	assert.Len(t, entries, 2)
}
