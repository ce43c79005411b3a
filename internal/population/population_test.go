package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/params"
)

const smallPop = `
model:
  num_pop: 200
  seed: {ppl: 3, net: 4}
`

func loadParams(t *testing.T, overlays ...string) *params.Tree {
	t.Helper()
	docs := make([][]byte, 0, len(overlays))
	for _, o := range overlays {
		docs = append(docs, []byte(o))
	}
	p, err := params.LoadWith("basic", docs...)
	require.NoError(t, err)
	return p
}

func newPop(t *testing.T, overlays ...string) *Population {
	t.Helper()
	pop, err := New(loadParams(t, append([]string{smallPop}, overlays...)...), Options{Seed: 3, NetSeed: 4})
	require.NoError(t, err)
	return pop
}

func assertConsistent(t *testing.T, pop *Population) {
	t.Helper()
	for a := range pop.All.All() {
		for _, b := range pop.BondTypes() {
			partners := a.Partners(b)
			assert.False(t, partners.Contains(a), "%s partners with itself", a)
			for p := range partners.All() {
				assert.True(t, p.Partners(b).Contains(a), "%s-%s not symmetric in %s", a, p, b)
			}
			assert.Equal(t, a.Partnerable(b, pop.buffer), pop.Partnerable(b).Contains(a),
				"partnerable index out of sync for %s in %s", a, b)
		}
	}
	for r := range pop.Relationships.All() {
		assert.NotSame(t, r.Agent1, r.Agent2)
		assert.Contains(t, r.Agent1.Relationships(), r)
		assert.Contains(t, r.Agent2.Relationships(), r)
		if pop.Graph != nil {
			assert.True(t, pop.Graph.HasEdge(r.Agent1.ID, r.Agent2.ID))
		}
	}
}

func TestNewPopulation(t *testing.T) {
	pop := newPop(t)

	assert.Equal(t, 200, pop.All.Len())
	assert.Positive(t, pop.Relationships.Len())
	assert.Positive(t, pop.PWID.Len())
	assert.Equal(t, int64(3), pop.Seed)
	assertConsistent(t, pop)

	for a := range pop.All.All() {
		assert.Equal(t, a.IsPWID(), pop.PWID.Contains(a))
		if !a.IsPWID() {
			assert.Zero(t, a.TargetPartners["Inj"], "non-PWID %s has injection targets", a)
			assert.Zero(t, a.TargetPartners["SexInj"])
			assert.Zero(t, a.Partners("Inj").Len())
		}
		assert.NotEmpty(t, a.SexRole)
		assert.GreaterOrEqual(t, a.Age, 15)
		assert.LessOrEqual(t, a.Age, 64)
		assert.NotEqual(t, RemovedComponent, a.Component)
	}
}

func TestSexPartnersRespectSleepsWith(t *testing.T) {
	pop := newPop(t)
	for r := range pop.Relationships.All() {
		if !pop.BondAllows(r.BondType, "sex") {
			continue
		}
		assert.True(t, pop.SleepsWith(r.Agent1.SexType, r.Agent2.SexType), "%s", r)
		assert.True(t, pop.SleepsWith(r.Agent2.SexType, r.Agent1.SexType), "%s", r)
	}
}

func TestPopulationReproducible(t *testing.T) {
	a, b := newPop(t), newPop(t)
	require.Equal(t, a.All.Len(), b.All.Len())
	require.Equal(t, a.Relationships.Len(), b.Relationships.Len())
	ra, rb := a.Relationships.Slice(), b.Relationships.Slice()
	for i := range ra {
		assert.Equal(t, ra[i].Agent1.ID, rb[i].Agent1.ID)
		assert.Equal(t, ra[i].Agent2.ID, rb[i].Agent2.ID)
		assert.Equal(t, ra[i].Duration, rb[i].Duration)
	}
}

func TestRemoveAgent(t *testing.T) {
	pop := newPop(t)
	var victim *agent.Agent
	for a := range pop.All.All() {
		if a.NumPartners() > 0 {
			victim = a
			break
		}
	}
	require.NotNil(t, victim)
	partners := victim.AllPartners()
	rels := pop.Relationships.Len()
	n := victim.NumPartners()

	pop.RemoveAgent(victim)

	assert.False(t, pop.All.Contains(victim))
	assert.False(t, pop.PWID.Contains(victim))
	assert.Nil(t, pop.Agent(victim.ID))
	assert.Equal(t, rels-n, pop.Relationships.Len())
	assert.Equal(t, RemovedComponent, victim.Component)
	assert.False(t, pop.Graph.HasNode(victim.ID))
	for _, p := range partners {
		assert.NotContains(t, p.AllPartners(), victim)
	}
	assertConsistent(t, pop)
}

func TestProgressRelationships(t *testing.T) {
	pop := newPop(t)
	for range 40 {
		pop.ProgressRelationships()
	}
	// Every duration in the basic setting is at most 36 steps.
	assert.Zero(t, pop.Relationships.Len())
	assert.Zero(t, pop.Graph.NumEdges())
	assertConsistent(t, pop)

	require.NoError(t, pop.UpdatePartnerAssignments(1))
	assert.Positive(t, pop.Relationships.Len())
	assertConsistent(t, pop)
}

func TestNetworkDisabled(t *testing.T) {
	pop := newPop(t, "model:\n  network:\n    enable: false")
	assert.Nil(t, pop.Graph)
	assert.Positive(t, pop.Relationships.Len())
	pop.UpdateComponents()
	assert.Empty(t, pop.Components)
}

func TestComponentsLabelled(t *testing.T) {
	pop := newPop(t)
	total := 0
	for i, comp := range pop.Components {
		total += len(comp)
		for _, a := range comp {
			assert.Equal(t, comp[0].Component, a.Component, "component %d", i)
		}
	}
	assert.Equal(t, pop.All.Len(), total)
}

func TestComponentTrimming(t *testing.T) {
	pop := newPop(t, `
model:
  network:
    component_size: {max: 10, min: 2}
calibration:
  network:
    trim: {prob: 0.5}
`)
	for _, comp := range pop.Components {
		assert.LessOrEqual(t, len(comp), 10)
		assert.GreaterOrEqual(t, len(comp), 2)
	}
	assertConsistent(t, pop)
}

func TestAssortSameRace(t *testing.T) {
	pop := newPop(t, `
features:
  assort_mix: true
assort_mix:
  same_race:
    attribute: race
    partner_values:
      __same__: 1.0
`)
	require.NotZero(t, pop.Relationships.Len())
	for r := range pop.Relationships.All() {
		assert.Equal(t, r.Agent1.Race, r.Agent2.Race, "%s", r)
	}
}

func TestAssortRuleValidation(t *testing.T) {
	p := loadParams(t, smallPop, `
features:
  assort_mix: true
assort_mix:
  bad:
    attribute: shoe_size
    partner_values: {__same__: 1.0}
`)
	_, err := New(p, Options{})
	require.ErrorIs(t, err, params.ErrUnknownParam)
}

func TestAddRelationshipErrors(t *testing.T) {
	pop := newPop(t)
	a := pop.All.Members()[0]
	_, err := pop.AddRelationship(a, a, "Sex", 1)
	require.ErrorIs(t, err, ErrSelfRelationship)

	for r := range pop.Relationships.All() {
		_, err := pop.AddRelationship(r.Agent2, r.Agent1, r.BondType, 1)
		require.ErrorIs(t, err, ErrDuplicatePartner)
		break
	}
}

func TestMeanRelDuration(t *testing.T) {
	pop := newPop(t)
	// 0.5*2 + 0.3*8 + 0.2*24.5
	assert.InDelta(t, 8.3, pop.MeanRelDuration("Sex", "White"), 1e-9)
}

func TestShedExcess(t *testing.T) {
	pop := newPop(t)
	var a *agent.Agent
	for c := range pop.All.All() {
		if c.Partners("Sex").Len() >= 2 {
			a = c
			break
		}
	}
	require.NotNil(t, a, "expected an agent with two sex partners")

	had := a.Partners("Sex").Len()
	social := a.Partners("Social").Len()
	a.TargetPartners["Sex"] = 1
	assert.Equal(t, had-1, pop.ShedExcess(a, "Sex"))
	assert.Equal(t, 1, a.Partners("Sex").Len())
	assert.Equal(t, social, a.Partners("Social").Len(), "other bonds are kept")
	assert.Zero(t, pop.ShedExcess(a, "Sex"))
	assertConsistent(t, pop)
}

func TestUpdatePartnerTargetsShedsExcess(t *testing.T) {
	pop := newPop(t)
	for range 3 {
		pop.UpdatePartnerTargets()
		for a := range pop.All.All() {
			for _, b := range pop.BondTypes() {
				assert.LessOrEqual(t, a.Partners(b).Len(), a.TargetPartners[b], "%s in %s", a, b)
			}
		}
		assertConsistent(t, pop)
		require.NoError(t, pop.UpdatePartnerAssignments(1))
	}
}
