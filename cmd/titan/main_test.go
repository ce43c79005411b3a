package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/output"
)

const testParams = `
model:
  num_pop: 60
  seed:
    run: 21
    ppl: 22
    net: 23
  time:
    num_steps: 2
outputs:
  reports: [basicReport, sqliteReport]
`

// isolateHome points HOME at a temp directory and clears the TITAN_*
// overrides so the user's config is never read.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"TITAN_OUTDIR", "TITAN_COMPRESS_POPULATIONS", "TITAN_PARALLEL", "TITAN_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return home
}

func writeTestParams(t *testing.T) string {
	t.Helper()
	return writeFile(t, "params.yml", testParams)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// decodeRuns decodes the --json output of the run command.
func decodeRuns(t *testing.T, out string) []runSummary {
	t.Helper()
	var decoded struct {
		Runs []runSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	return decoded.Runs
}

// runOnce runs two repetitions with saved populations and returns the output
// directory and the decoded run summaries.
func runOnce(t *testing.T) (string, []runSummary) {
	t.Helper()
	isolateHome(t)
	outDir := filepath.Join(t.TempDir(), "out")
	out, err := execute(t, "run", "-s", "basic", "-p", writeTestParams(t),
		"--nMC", "2", "--outdir", outDir, "--savepop", "--parallel", "2", "--json")
	require.NoError(t, err)
	return outDir, decodeRuns(t, out)
}

func TestNewRootCmd(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "run", "validate", "graph", "summary"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"json", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "persistent flag --%s", flag)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Regexp(t, `^titan version `, out)
	assert.Contains(t, out, version)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, version, v["version"])
}

func TestSummaryCmd(t *testing.T) {
	outDir, runs := runOnce(t)

	out, err := execute(t, "summary", outDir, "--stat", "agents", "--json")
	require.NoError(t, err)
	var decoded struct {
		Stat   string         `json:"stat"`
		Points []output.Point `json:"points"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	// Steps 0, 1 and 2 of both runs.
	require.Len(t, decoded.Points, 3*len(runs))
	for _, p := range decoded.Points {
		assert.Equal(t, 60, p.Value, "run %s step %d", p.RunID, p.T)
	}

	_, err = execute(t, "summary", t.TempDir())
	assert.Error(t, err, "directory without reports")
}
