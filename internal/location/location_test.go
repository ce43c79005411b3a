package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/stochastic"
)

const twoCities = `
classes:
  locations:
    world: {ppl: 0.0}
    north: {category: urban, ppl: 0.6}
    south: {category: rural, ppl: 0.4}
location:
  scaling:
    south:
      demographics|White|sex_type|MSM|drug_type|None|hiv|init:
        field: scalar
        value: 2.0
      model|network|type:
        field: override
        value: random
  edges:
    road:
      location_1: north
      location_2: south
      distance: 10
  migration:
    enable: true
    attribute: name
    prob: 0.1
    values:
      north: {north: 0.0, south: 1.0}
      south: {north: 1.0, south: 0.0}
      world: {world: 1.0}
`

func loadTree(t *testing.T, overlay string) *params.Tree {
	t.Helper()
	p, err := params.LoadWith("basic", []byte(overlay))
	require.NoError(t, err)
	return p
}

func TestLocationWeights(t *testing.T) {
	p := loadTree(t, "")
	loc, err := New("world", p)
	require.NoError(t, err)

	assert.Equal(t, "world", loc.Category)
	assert.Equal(t, []string{"White", "Black"}, loc.RaceWeights().Keys)
	assert.InDelta(t, 0.4, loc.SexTypeWeights("White").Prob("MSM"), 1e-9)
	assert.InDelta(t, 0.10, loc.DrugWeights("Black", "HF").Prob("Inj"), 1e-9)
	assert.InDelta(t, 0.5, loc.RoleWeights("White", "MSM").Prob("versatile"), 1e-9)
	assert.Zero(t, loc.RoleWeights("White", "HF").Prob("insertive"))
}

func TestLocationScaling(t *testing.T) {
	p := loadTree(t, twoCities)
	g, err := NewGeography(p)
	require.NoError(t, err)

	north, south := g.Location("north"), g.Location("south")
	require.NotNil(t, north)
	require.NotNil(t, south)

	path := "demographics.White.sex_type.MSM.drug_type.None.hiv.init"
	assert.InDelta(t, 0.05, north.Params.Float(path), 1e-12)
	assert.InDelta(t, 0.10, south.Params.Float(path), 1e-12)
	assert.Equal(t, "random", south.Params.String("model.network.type"))
	assert.InDelta(t, 0.05, p.Float(path), 1e-12, "base tree must not be scaled")

	assert.True(t, north.IsNeighbor(south))
	assert.True(t, south.IsNeighbor(north))
	assert.False(t, north.IsNeighbor(north))
	assert.Equal(t, []string{"south"}, north.Neighbors())
}

func TestMigrationDestination(t *testing.T) {
	p := loadTree(t, twoCities)
	g, err := NewGeography(p)
	require.NoError(t, err)

	r := stochastic.NewRand(1)
	for range 20 {
		dest, err := g.Destination(r, g.Location("north"))
		require.NoError(t, err)
		assert.Equal(t, "south", dest.Name)
	}
}

func TestGeographyScale(t *testing.T) {
	p := loadTree(t, twoCities)
	g, err := NewGeography(p)
	require.NoError(t, err)

	require.NoError(t, g.Scale("calibration|acquisition", 0.5))
	for _, loc := range g.All() {
		assert.InDelta(t, 0.5, loc.Params.Float("calibration.acquisition"), 1e-12)
	}
	assert.Error(t, g.Scale("calibration|missing", 2))

	w := g.Weights()
	assert.Equal(t, []string{"world", "north", "south"}, w.Keys)
	assert.Zero(t, w.Prob("world"))
}
