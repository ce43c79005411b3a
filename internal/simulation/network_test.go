package simulation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/params"
)

// noHIV delays HIV past the end of every scenario, so the population starts
// and stays uninfected.
const noHIV = `
hiv:
  start_time: 1000
`

func TestNetworkWithoutHIV(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:   "no-hiv",
		Params: []string{noHIV},
		NumPop: 1000,
		Steps:  36,
		Seed:   3,
	})

	AssertCounterZero(t, result, "hiv", 0, 36)
	AssertCounterZero(t, result, "hiv_new", 0, 36)
	AssertRelationshipsStable(t, result, 12, 36, 0.10)

	if t.Failed() {
		for _, sr := range result.Steps {
			t.Log(FormatStepDebug(sr))
		}
	}
}

// doublePartners scales every mean partner count of the demographics.
func doublePartners(p *params.Tree) error {
	return ScaleLeaves(p, func(path string) bool {
		return strings.HasPrefix(path, "demographics.") &&
			strings.Contains(path, ".num_partners.") &&
			strings.HasSuffix(path, ".value")
	}, 2)
}

// shortRelationships makes every relationship last a single step, so the mean
// relationship duration is 1 and mean partner counts follow the demographic
// draws instead of rounding up to one partner.
func shortRelationships(p *params.Tree) error {
	return SetLeaves(p, func(path string) bool {
		return strings.HasPrefix(path, "partnership.duration.") &&
			(strings.HasSuffix(path, ".min") || strings.HasSuffix(path, ".max"))
	}, 1)
}

func TestDoubledPartnersGrowNetwork(t *testing.T) {
	r := NewRunner(t)
	base := Scenario{
		Name:   "baseline",
		Params: []string{noHIV},
		NumPop: 500,
		Steps:  10,
		Seed:   5,
		Modify: shortRelationships,
	}
	baseline := r.Run(base)

	doubled := base
	doubled.Name = "doubled"
	doubled.Modify = func(p *params.Tree) error {
		if err := shortRelationships(p); err != nil {
			return err
		}
		return doublePartners(p)
	}
	result := r.Run(doubled)

	before, ok := baseline.Step(10)
	require.True(t, ok, "baseline step 10 not recorded")
	after, ok := result.Step(10)
	require.True(t, ok, "doubled step 10 not recorded")
	require.NotZero(t, before.Edges, "baseline network has no edges")
	ratio := float64(after.Edges) / float64(before.Edges)
	assert.GreaterOrEqual(t, ratio, 1.5, "doubling mean partners grew edges %d -> %d", before.Edges, after.Edges)
}

func TestDoublePartnersScalesAliasesOnce(t *testing.T) {
	p, err := params.LoadWith("basic")
	require.NoError(t, err)
	const path = "demographics.White.sex_type.MSM.drug_type.None.num_partners.Sex.vars.1.value"
	const shared = "demographics.Black.sex_type.MSM.drug_type.None.num_partners.Sex.vars.1.value"
	want := p.Float(path) * 2

	require.NoError(t, doublePartners(p))
	assert.Equal(t, want, p.Float(path), path)
	assert.Equal(t, want, p.Float(shared), shared)
}

func TestShortRelationshipsHaveUnitMeanDuration(t *testing.T) {
	p, err := params.LoadWith("basic")
	require.NoError(t, err)
	require.NoError(t, shortRelationships(p))
	for _, bond := range []string{"Sex", "Inj", "SexInj", "Social"} {
		for _, race := range []string{"White", "Black"} {
			for _, bin := range p.BinsAt("partnership.duration." + bond + "." + race).Bins {
				assert.Equal(t, 1.0, bin.Min, "%s %s bin %s", bond, race, bin.Key)
				assert.Equal(t, 1.0, bin.Max, "%s %s bin %s", bond, race, bin.Key)
			}
		}
	}
}

func TestAssortativeMixingByRace(t *testing.T) {
	const sameRace = `
features:
  assort_mix: true
assort_mix:
  same_race:
    attribute: race
    partner_values:
      __same__: 0.9
      __other__: 0.1
`
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:   "assort-race",
		Params: []string{noHIV, sameRace},
		NumPop: 600,
		Steps:  6,
		Seed:   7,
	})
	AssertSameAttributeFraction(t, result, "race", 0.8)

	mixed := r.Run(Scenario{
		Name:   "random-race",
		Params: []string{noHIV},
		NumPop: 600,
		Steps:  6,
		Seed:   7,
	})
	total, same := 0, 0
	for rel := range mixed.Model.Pop.Relationships.All() {
		total++
		if rel.Agent1.Race == rel.Agent2.Race {
			same++
		}
	}
	require.NotZero(t, total)
	assert.LessOrEqual(t, float64(same)/float64(total), 0.7, "without assortative mixing about half of relationships share race")
}
