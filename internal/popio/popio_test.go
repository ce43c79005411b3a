package popio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/population"
	"github.com/titan-sim/titan/internal/stochastic"
)

func loadParams(t *testing.T) *params.Tree {
	t.Helper()
	p, err := params.LoadWith("basic", []byte("model:\n  num_pop: 120\n"))
	require.NoError(t, err)
	return p
}

// newPopulation builds a population with feature hooks bound, as a model
// would.
func newPopulation(t *testing.T, p *params.Tree, load string) (*population.Population, *features.Registry) {
	t.Helper()
	reg := features.NewRegistry(p)
	env := &features.Env{
		Params: p,
		Rand:   stochastic.NewRand(3),
		Dist:   stochastic.NewDist(3),
		Logger: logging.Discard(),
	}
	reg.Bind(env)
	opts := population.Options{Hooks: reg, Seed: 21, NetSeed: 22}
	var pop *population.Population
	var err error
	if load == "" {
		pop, err = population.New(p, opts)
	} else {
		pop, err = Read(load, p, opts)
	}
	require.NoError(t, err)
	env.Pop = pop
	return pop, reg
}

func assertSamePopulation(t *testing.T, want, got *population.Population) {
	t.Helper()
	require.Equal(t, want.All.Len(), got.All.Len())
	require.Equal(t, want.Relationships.Len(), got.Relationships.Len())

	for a := range want.All.All() {
		b := got.Agent(a.ID)
		require.NotNil(t, b, "agent %d", a.ID)
		assert.Equal(t, a.Race, b.Race)
		assert.Equal(t, a.SexType, b.SexType)
		assert.Equal(t, a.DrugType, b.DrugType)
		assert.Equal(t, a.SexRole, b.SexRole)
		assert.Equal(t, a.Age, b.Age)
		assert.Equal(t, a.Location.Name, b.Location.Name)
		assert.Equal(t, a.MeanNumPartners, b.MeanNumPartners)
		assert.Equal(t, a.TargetPartners, b.TargetPartners)
		for _, name := range agent.RecordNames {
			assert.Equal(t, a.FeatureRecord(name), b.FeatureRecord(name), "agent %d %s", a.ID, name)
		}
		assert.Equal(t, a.NumPartners(), b.NumPartners(), "agent %d partners", a.ID)
		assert.Equal(t, want.PWID.Contains(a), got.PWID.Contains(b))
	}

	gotRels := make(map[int64]*agent.Relationship)
	for r := range got.Relationships.All() {
		gotRels[r.ID] = r
	}
	for r := range want.Relationships.All() {
		g, ok := gotRels[r.ID]
		require.True(t, ok, "relationship %d", r.ID)
		assert.Equal(t, r.Agent1.ID, g.Agent1.ID)
		assert.Equal(t, r.Agent2.ID, g.Agent2.ID)
		assert.Equal(t, r.BondType, g.BondType)
		assert.Equal(t, r.Duration, g.Duration)
		assert.Equal(t, r.TotalSexActs, g.TotalSexActs)
	}
}

func TestRoundTripDirectory(t *testing.T) {
	p := loadParams(t)
	pop, reg := newPopulation(t, p, "")
	require.Greater(t, pop.Relationships.Len(), 0)
	for r := range pop.Relationships.All() {
		r.TotalSexActs = 7
		break
	}

	dir := t.TempDir()
	path, err := Write(pop, dir, WriteOptions{ID: "run1"})
	require.NoError(t, err)
	assert.Equal(t, dir, path)
	assert.FileExists(t, filepath.Join(dir, "run1_agents.csv"))
	assert.FileExists(t, filepath.Join(dir, "run1_relationships.csv"))

	loaded, loadedReg := newPopulation(t, p, path)
	assertSamePopulation(t, pop, loaded)
	assert.Equal(t, reg.HIV.Active(), loadedReg.HIV.Active())
	assert.Equal(t, reg.HAART.Count(), loadedReg.HAART.Count())
	assert.Equal(t, reg.PrEP.Count(), loadedReg.PrEP.Count())

	if pop.Graph != nil {
		assert.Equal(t, pop.Graph.NumEdges(), loaded.Graph.NumEdges())
		assert.Equal(t, len(pop.Components), len(loaded.Components))
	}
}

func TestRoundTripArchive(t *testing.T) {
	p := loadParams(t)
	pop, _ := newPopulation(t, p, "")

	dir := t.TempDir()
	path, err := Write(pop, dir, WriteOptions{ID: "saved", Compress: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "saved.tar.gz"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, _ := newPopulation(t, p, path)
	assertSamePopulation(t, pop, loaded)
}

func TestNewAgentsContinueIDs(t *testing.T) {
	p := loadParams(t)
	pop, _ := newPopulation(t, p, "")
	dir := t.TempDir()
	path, err := Write(pop, dir, WriteOptions{ID: "ids"})
	require.NoError(t, err)

	loaded, _ := newPopulation(t, p, path)
	var maxID int64
	for a := range loaded.All.All() {
		maxID = max(maxID, a.ID)
	}
	loc := loaded.Geography.All()[0]
	a, err := loaded.CreateAgent(loc, "White", 0, population.AgentOptions{})
	require.NoError(t, err)
	assert.Greater(t, a.ID, maxID)
}

func TestArchiveChecksumMismatch(t *testing.T) {
	files := []archiveFile{
		{name: "x_agents.csv", data: []byte("id\n")},
		{name: "x_relationships.csv", data: []byte("id\n")},
	}
	m := newManifest("x", 0, 0, files)
	m.Checksums["x_agents.csv"] = checksum([]byte("something else"))

	path := filepath.Join(t.TempDir(), "x.tar.gz")
	require.NoError(t, writeArchive(path, m, files))

	_, err := readArchive(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestArchiveUnsupportedVersion(t *testing.T) {
	files := []archiveFile{{name: "x_agents.csv", data: []byte("id\n")}}
	m := newManifest("x", 0, 0, files)
	m.Version = FormatVersion + 1

	path := filepath.Join(t.TempDir(), "x.tar.gz")
	require.NoError(t, writeArchive(path, m, files))

	_, err := readArchive(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive version")
}

func TestReadErrors(t *testing.T) {
	p := loadParams(t)
	opts := population.Options{}

	t.Run("empty directory", func(t *testing.T) {
		_, err := Read(t.TempDir(), p, opts)
		assert.Error(t, err)
	})

	t.Run("unknown location", func(t *testing.T) {
		dir := t.TempDir()
		agents := "id,location,race,sex_type,drug_type,sex_role,age,mean_num_partners,target_partners\n" +
			"1,Nowhere,White,MSM,None,versatile,30,{},{}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_agents.csv"), []byte(agents), 0600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_relationships.csv"),
			[]byte("id,agent1,agent2,duration,bond_type,total_sex_acts\n"), 0600))
		_, err := Read(dir, p, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown location")
	})

	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_agents.csv"), []byte("id,race\n1,White\n"), 0600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_relationships.csv"),
			[]byte("id,agent1,agent2,duration,bond_type,total_sex_acts\n"), 0600))
		_, err := Read(dir, p, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing column")
	})

	t.Run("unknown partner", func(t *testing.T) {
		pop, _ := newPopulation(t, p, "")
		dir := t.TempDir()
		_, err := Write(pop, dir, WriteOptions{ID: "rel"})
		require.NoError(t, err)
		rels := "id,agent1,agent2,duration,bond_type,total_sex_acts\n1,999999,999998,3,Sex,0\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rel_relationships.csv"), []byte(rels), 0600))
		_, err = Read(dir, p, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown agent")
	})
}

func TestWriteRequiresID(t *testing.T) {
	p := loadParams(t)
	pop, _ := newPopulation(t, p, "")
	_, err := Write(pop, t.TempDir(), WriteOptions{})
	assert.Error(t, err)
}
