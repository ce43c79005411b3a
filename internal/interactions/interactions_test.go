package interactions

import (
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

type fixture struct {
	env   *features.Env
	feats *features.Registry
	acts  *Registry
	next  int64
}

func newFixture(t *testing.T, overlay string) *fixture {
	t.Helper()
	p, err := params.LoadWith("basic", []byte("model: {num_pop: 0}"), []byte(overlay))
	require.NoError(t, err)
	feats := features.NewRegistry(p)
	env := &features.Env{
		Params: p,
		Rand:   stochastic.NewRand(3),
		Dist:   stochastic.NewDist(3),
		Logger: logging.Discard(),
		Time:   5,
	}
	feats.Bind(env)
	pop, err := population.New(p, population.Options{Hooks: feats, Seed: 1, NetSeed: 2})
	require.NoError(t, err)
	env.Pop = pop

	// Certain transmission: every act transmits and nobody uses condoms.
	for _, path := range []string{
		"partnership.sex.acquisition.MSM.receptive",
		"partnership.sex.acquisition.MSM.insertive",
		"partnership.sex.acquisition.MSM.versatile",
		"partnership.injection.transmission.base",
	} {
		require.NoError(t, p.Set(path, 1.0))
	}
	for _, bin := range []string{"1", "2"} {
		require.NoError(t, p.Set("partnership.sex.frequency.Sex.bins."+bin+".min", 40))
		require.NoError(t, p.Set("partnership.sex.frequency.Sex.bins."+bin+".max", 40))
	}
	return &fixture{env: env, feats: feats, acts: NewRegistry(feats), next: 1}
}

func (f *fixture) agent(t *testing.T, drugType string) *agent.Agent {
	t.Helper()
	a := agent.New(f.next, f.env.Pop.BondTypes())
	f.next++
	a.Race, a.SexType, a.DrugType, a.SexRole, a.Age = "White", "MSM", drugType, "versatile", 30
	a.Location = f.env.Pop.Geography.All()[0]
	f.env.Pop.AddAgent(a)

	demo := population.DemographicPath(a)
	loc := a.Location.Params
	require.NoError(t, loc.Set(demo+".safe_sex.Sex.prob", 0.0))
	if drugType == "Inj" {
		require.NoError(t, loc.Set(demo+".injection.num_acts", 40.0))
		require.NoError(t, loc.Set(demo+".injection.unsafe_prob", 1.0))
	}
	return a
}

func (f *fixture) relate(t *testing.T, a, b *agent.Agent, bond string) *agent.Relationship {
	t.Helper()
	rel, err := f.env.Pop.AddRelationship(a, b, bond, 10)
	require.NoError(t, err)
	return rel
}

func TestSexTransmits(t *testing.T) {
	f := newFixture(t, "")
	infected, partner := f.agent(t, "None"), f.agent(t, "None")
	infected.HIV.Active = true
	infected.HIV.Time = -20
	rel := f.relate(t, infected, partner, "Sex")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.True(t, partner.HIV.Active)
	assert.Equal(t, 5, partner.HIV.Time)
	assert.Positive(t, rel.TotalSexActs)
}

func TestSexSkipsConcordantAndEarly(t *testing.T) {
	f := newFixture(t, "hiv: {start_time: 10}")
	a, b := f.agent(t, "None"), f.agent(t, "None")
	a.HIV.Active = true
	rel := f.relate(t, a, b, "Sex")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.False(t, b.HIV.Active, "no transmission before hiv.start_time")
	assert.Zero(t, rel.TotalSexActs)

	f.env.Time = 10
	b.HIV.Active = true
	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.Zero(t, rel.TotalSexActs, "concordant pairs do not count acts")
}

func TestSafeSexBlocksTransmission(t *testing.T) {
	f := newFixture(t, "")
	infected, partner := f.agent(t, "None"), f.agent(t, "None")
	infected.HIV.Active = true
	require.NoError(t, infected.Location.Params.Set(population.DemographicPath(infected)+".safe_sex.Sex.prob", 1.0))
	rel := f.relate(t, infected, partner, "Sex")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.False(t, partner.HIV.Active)
	assert.Zero(t, rel.TotalSexActs)
}

func TestIncarceratedPartnersDoNotInteract(t *testing.T) {
	f := newFixture(t, "")
	infected, partner := f.agent(t, "None"), f.agent(t, "None")
	infected.HIV.Active = true
	partner.Incar.Active = true
	rel := f.relate(t, infected, partner, "Sex")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.False(t, partner.HIV.Active)
}

func TestInjection(t *testing.T) {
	t.Run("shares between PWID", func(t *testing.T) {
		f := newFixture(t, "")
		infected, partner := f.agent(t, "Inj"), f.agent(t, "Inj")
		infected.HIV.Active = true
		rel := f.relate(t, infected, partner, "Inj")

		require.NoError(t, f.acts.Interact(f.env, rel))
		assert.True(t, partner.HIV.Active)
	})

	t.Run("needs two PWID", func(t *testing.T) {
		f := newFixture(t, "")
		infected, partner := f.agent(t, "Inj"), f.agent(t, "None")
		infected.HIV.Active = true
		rel := f.relate(t, infected, partner, "SexInj")

		inj, ok := f.acts.Get("injection")
		require.True(t, ok)
		require.NoError(t, inj.Interact(f.env, rel))
		assert.False(t, partner.HIV.Active)
	})

	t.Run("syringe services risk", func(t *testing.T) {
		f := newFixture(t, `
features: {syringe_services: true}
syringe_services:
  timeline:
    all: {start_time: 0, stop_time: 100, num_slots_start: 10, num_slots_stop: 10, risk: 0.0}
`)
		infected, partner := f.agent(t, "Inj"), f.agent(t, "Inj")
		infected.HIV.Active = true
		rel := f.relate(t, infected, partner, "Inj")
		require.NoError(t, f.feats.SyringeServices.UpdatePop(f.env))
		require.True(t, partner.SyringeServices.Active)

		require.NoError(t, f.acts.Interact(f.env, rel))
		assert.False(t, partner.HIV.Active, "enrolled agents share at the program risk")
	})
}

func TestPCASpreadsKnowledge(t *testing.T) {
	f := newFixture(t, `
features: {pca: true}
exposures: {knowledge: true}
partnership:
  pca:
    knowledge: {prob: 1.0}
`)
	a, b := f.agent(t, "None"), f.agent(t, "None")
	a.Knowledge.Active = true
	rel := f.relate(t, a, b, "Social")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.True(t, b.Knowledge.Active)
	assert.Equal(t, 1, f.feats.Knowledge.Aware(), "only the conversion is counted")
}

func TestPCARequiresGraph(t *testing.T) {
	f := newFixture(t, `
model:
  network: {enable: false}
features: {pca: true}
exposures: {knowledge: true}
`)
	a, b := f.agent(t, "None"), f.agent(t, "None")
	a.Knowledge.Active = true
	rel := f.relate(t, a, b, "Social")

	err := f.acts.Interact(f.env, rel)
	require.ErrorIs(t, err, features.ErrGraphRequired)
}

func TestPCADisabled(t *testing.T) {
	f := newFixture(t, "exposures: {knowledge: true}")
	a, b := f.agent(t, "None"), f.agent(t, "None")
	a.Knowledge.Active = true
	rel := f.relate(t, a, b, "Social")

	require.NoError(t, f.acts.Interact(f.env, rel))
	assert.False(t, b.Knowledge.Active)
}
