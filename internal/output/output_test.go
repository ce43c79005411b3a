package output

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/params"
)

const testModel = `
model:
  num_pop: 120
  seed:
    run: 5
    ppl: 6
    net: 7
  time:
    num_steps: 2
`

func newModel(t *testing.T, runID string, overlays ...string) *model.Model {
	t.Helper()
	docs := [][]byte{[]byte(testModel)}
	for _, o := range overlays {
		docs = append(docs, []byte(o))
	}
	p, err := params.LoadWith("basic", docs...)
	require.NoError(t, err)
	m, err := model.New(p, model.Options{RunID: runID})
	require.NoError(t, err)
	return m
}

func readTSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func run(t *testing.T, m *model.Model, dir string) {
	t.Helper()
	reps, err := New(m.Params, dir, nil)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background(), reps...))
	require.NoError(t, CloseAll(reps))
}

func TestCollectStrata(t *testing.T) {
	m := newModel(t, "collect")
	s, err := Collect(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"race", "sex_type"}, s.Classes)
	require.Len(t, s.Strata, 6)
	assert.Equal(t, []string{"White", "MSM"}, s.Strata[0].Values)
	assert.NotNil(t, s.Lookup("Black", "HF"))

	assert.Equal(t, m.Pop.All.Len(), s.Total("agents"))
	assert.Equal(t, m.Features.HIV.Active(), s.Total("hiv"))
	assert.Equal(t, m.Features.HAART.Count(), s.Total("haart"))
	for _, k := range ExitKeys {
		assert.Contains(t, s.Keys, k)
		assert.Zero(t, s.Total(k))
	}
	for _, st := range s.Strata {
		assert.Len(t, st.Counts, len(s.Keys))
	}
}

func TestCollectReportsEmptyStrata(t *testing.T) {
	m := newModel(t, "empty", "outputs:\n  classes: [race, prep.active, location.category]\n")
	s, err := Collect(m)
	require.NoError(t, err)

	require.Len(t, s.Strata, 4)
	assert.Equal(t, []string{"White", "false", "world"}, s.Strata[0].Values)
	// PrEP is disabled, so nobody is on it, but the strata are still there.
	for _, race := range []string{"White", "Black"} {
		st := s.Lookup(race, "true", "world")
		require.NotNil(t, st, race)
		assert.Zero(t, st.Counts["agents"])
		assert.Len(t, st.Counts, len(s.Keys))
	}
	assert.Equal(t, m.Pop.All.Len(), s.Total("agents"))
}

func TestCollectPartitionsAgents(t *testing.T) {
	for _, classes := range []string{"[drug_type]", "[location]", "[sex_role, hiv.active]", "[component]"} {
		t.Run(classes, func(t *testing.T) {
			m := newModel(t, "partition", "outputs:\n  classes: "+classes+"\n")
			require.NoError(t, m.Step())
			s, err := Collect(m)
			require.NoError(t, err)
			assert.Equal(t, m.Pop.All.Len(), s.Total("agents"))
		})
	}
}

func TestCollectUnknownClass(t *testing.T) {
	m := newModel(t, "bad", "outputs:\n  classes: [shoe_size]\n")
	_, err := Collect(m)
	assert.ErrorIs(t, err, params.ErrInvalidParam)
}

func TestCollectExits(t *testing.T) {
	m := newModel(t, "exits", `
features:
  enter_and_exit: true
enter_exit:
  exit:
    death:
      exit_type: death
      prob: 1.0
`)
	before := m.Pop.All.Len()
	hiv := m.Features.HIV.Active()
	require.NoError(t, m.Step())

	s, err := Collect(m)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Total("agents"))
	assert.Equal(t, before, s.Total("death"))
	assert.Equal(t, hiv, s.Total("deaths_hiv"))
}

func TestBasicReport(t *testing.T) {
	m := newModel(t, "basic-run")
	dir := t.TempDir()
	run(t, m, dir)

	rows := readTSV(t, filepath.Join(dir, BasicReportFile))
	require.NotEmpty(t, rows)
	header := rows[0]
	assert.Equal(t, []string{"run_id", "t", "rseed", "pseed", "race", "sex_type", "agents"}, header[:7])
	assert.Contains(t, header, "hiv_new")
	assert.Contains(t, header, "deaths_hiv")
	assert.NotContains(t, header, "monkeypox")

	// Six strata at t = 0, 1, 2.
	require.Len(t, rows, 1+3*6)
	agentsCol := 6
	total := map[string]int{}
	for _, row := range rows[1:] {
		assert.Len(t, row, len(header))
		assert.Equal(t, "basic-run", row[0])
		assert.Equal(t, "5", row[2])
		assert.Equal(t, "6", row[3])
		n, err := strconv.Atoi(row[agentsCol])
		require.NoError(t, err)
		total[row[1]] += n
	}
	assert.Equal(t, m.Pop.All.Len(), total["2"])
}

func TestBasicReportIsReproducible(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	run(t, newModel(t, "same"), dirA)
	run(t, newModel(t, "same"), dirB)

	a, err := os.ReadFile(filepath.Join(dirA, BasicReportFile))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dirB, BasicReportFile))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSQLiteReport(t *testing.T) {
	m := newModel(t, "sqlite-run", "outputs:\n  reports: [sqliteReport]\n")
	dir := t.TempDir()
	run(t, m, dir)
	assert.NoFileExists(t, filepath.Join(dir, BasicReportFile))

	points, err := ReadTotals(context.Background(), filepath.Join(dir, SQLiteReportFile), "agents")
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, "sqlite-run", p.RunID)
		assert.Equal(t, i, p.T)
	}
	assert.Equal(t, m.Pop.All.Len(), points[2].Value)

	hiv, err := ReadTotals(context.Background(), filepath.Join(dir, SQLiteReportFile), "hiv")
	require.NoError(t, err)
	assert.Equal(t, m.Features.HIV.Active(), hiv[2].Value)
}

func TestSQLiteReportReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), SQLiteReportFile)
	r, err := NewSQLiteReport(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r, err = NewSQLiteReport(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestComponentReport(t *testing.T) {
	m := newModel(t, "components", "outputs:\n  reports: [componentReport]\n")
	dir := t.TempDir()
	run(t, m, dir)

	rows := readTSV(t, filepath.Join(dir, ComponentReportFile))
	require.NotEmpty(t, rows)
	assert.Equal(t, componentHeader, rows[0])
	var last int
	for _, row := range rows[1:] {
		if row[1] == "2" {
			last++
		}
	}
	assert.Equal(t, len(m.Pop.Components), last)
}

func TestComponentReportRequiresGraph(t *testing.T) {
	m := newModel(t, "nograph", "model:\n  network:\n    enable: false\n")
	r, err := NewComponentReport(filepath.Join(t.TempDir(), ComponentReportFile))
	require.NoError(t, err)
	defer r.Close()
	assert.Error(t, r.Report(m))
}

func TestEdgeList(t *testing.T) {
	m := newModel(t, "edges", `
outputs:
  reports: []
  network:
    edge_list: true
`)
	dir := t.TempDir()
	run(t, m, dir)

	for _, step := range []string{"0", "1", "2"} {
		assert.FileExists(t, filepath.Join(dir, EdgeListDir, "edges_"+step+".tsv"))
	}
	rows := readTSV(t, filepath.Join(dir, EdgeListDir, "edges_2.tsv"))
	assert.Equal(t, edgeHeader, rows[0])
	assert.Len(t, rows, 1+m.Pop.Relationships.Len())
}

func TestMetricsReport(t *testing.T) {
	m := newModel(t, "metrics")
	path := filepath.Join(t.TempDir(), MetricsFile)
	r := NewMetricsReport(path)

	require.NoError(t, r.Report(m))
	require.NoError(t, m.Step())
	require.NoError(t, r.Report(m))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.Step))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.Reports))
	assert.Equal(t, float64(m.Pop.All.Len()), testutil.ToFloat64(r.Agents))
	assert.Equal(t, float64(m.Pop.Relationships.Len()), testutil.ToFloat64(r.Relationships))
	assert.Equal(t, float64(m.Features.HIV.Active()), testutil.ToFloat64(r.Counters.WithLabelValues("hiv")))
	assert.Equal(t, len(metricStats), testutil.CollectAndCount(r.Counters))

	require.NoError(t, r.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "titan_agents"))
	assert.True(t, strings.Contains(string(data), `titan_stat{stat="hiv_new"}`))
}

func TestNewRejectsUnknownReport(t *testing.T) {
	p, err := params.LoadWith("basic", []byte(testModel))
	require.NoError(t, err)
	p.Sub("outputs").Put("reports", params.NewList(params.NewScalar("fancyReport")))
	_, err = New(p, t.TempDir(), nil)
	assert.ErrorContains(t, err, "fancyReport")
}
