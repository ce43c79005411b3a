package visualization

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/population"
)

// testPopulation builds four agents: 1-2-3 form a chain (Sex then SexInj)
// and 4 is isolated. Agent 1 is diagnosed HIV+, 2 is on PrEP and 3 injects.
func testPopulation(t *testing.T, overlays ...string) *population.Population {
	t.Helper()
	docs := make([][]byte, len(overlays))
	for i, o := range overlays {
		docs[i] = []byte(o)
	}
	p, err := params.LoadWith("basic", docs...)
	require.NoError(t, err)
	pop, err := population.NewEmpty(p, population.Options{Seed: 1, NetSeed: 2})
	require.NoError(t, err)

	world := pop.Geography.Location("world")
	agents := make([]*agent.Agent, 4)
	for i := range agents {
		a := agent.New(int64(i+1), pop.BondTypes())
		a.Race = "White"
		a.SexType = "MSM"
		a.DrugType = "None"
		a.SexRole = "versatile"
		a.Age = 30 + i
		a.Location = world
		agents[i] = a
	}
	agents[0].HIV.Active, agents[0].HIV.Dx = true, true
	agents[1].PrEP.Active = true
	agents[2].DrugType = "Inj"
	for _, a := range agents {
		pop.AddAgent(a)
	}
	_, err = pop.AddRelationship(agents[0], agents[1], "Sex", 5)
	require.NoError(t, err)
	_, err = pop.AddRelationship(agents[1], agents[2], "SexInj", 7)
	require.NoError(t, err)
	pop.UpdateComponents()
	return pop
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"dot", "json", "DOT"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("svg")
	assert.Error(t, err, "unknown format")
}

func TestRenderDOT(t *testing.T) {
	pop := testPopulation(t)
	dot := RenderDOT(pop, Options{})

	assert.True(t, strings.HasPrefix(dot, "graph titan {"), "DOT should start with 'graph titan {'")
	assert.True(t, strings.HasSuffix(dot, "}\n"), "DOT should end with '}'")
	for _, want := range []string{
		`1 [label="1", shape=ellipse, fillcolor="tomato"`,
		`2 [label="2", shape=ellipse, fillcolor="mediumseagreen"`,
		`3 [label="3", shape=diamond, fillcolor="steelblue"`,
		`4 [label="4"`,
		`1 -- 2 [label="Sex", style=solid, tooltip="duration=5"]`,
		`2 -- 3 [label="SexInj", style=bold, tooltip="duration=7"]`,
	} {
		assert.Contains(t, dot, want)
	}
}

func TestRenderDOT_Component(t *testing.T) {
	pop := testPopulation(t)
	dot := RenderDOT(pop, Options{Component: "1"})

	assert.Contains(t, dot, "  4 [", "isolated agent 4 is component 1")
	assert.NotContains(t, dot, "  1 [")
	assert.NotContains(t, dot, "--", "component 1 has no relationships")
}

func TestRenderJSON(t *testing.T) {
	pop := testPopulation(t)
	g, err := RenderJSON(pop, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, g.NodeCount)
	assert.Len(t, g.Nodes, 4)
	assert.Equal(t, 2, g.EdgeCount)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 2, g.Components)

	first := g.Nodes[0]
	assert.Equal(t, int64(1), first.ID)
	assert.True(t, first.HIV)
	assert.True(t, first.Dx)
	assert.Equal(t, "world", first.Location)
	assert.Equal(t, "0", first.Component)
	assert.Nil(t, first.Centrality, "centrality is omitted unless requested")

	assert.Equal(t, JSONEdge{ID: g.Edges[1].ID, Source: 2, Target: 3, BondType: "SexInj", Duration: 7}, g.Edges[1])

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "centrality")
}

func TestRenderJSON_Centrality(t *testing.T) {
	pop := testPopulation(t)
	g, err := RenderJSON(pop, Options{Centrality: true})
	require.NoError(t, err)

	scores := make(map[int64]float64)
	for _, n := range g.Nodes {
		require.NotNil(t, n.Centrality, "node %d has no centrality", n.ID)
		scores[n.ID] = *n.Centrality
	}
	// The middle of the chain is the most central.
	assert.Greater(t, scores[2], scores[1])
	assert.Greater(t, scores[2], scores[3])
	assert.Equal(t, scores[1], scores[3], "chain ends score equally")
}

func TestRenderJSON_CentralityRequiresGraph(t *testing.T) {
	pop := testPopulation(t, "model:\n  network:\n    enable: false\n")
	_, err := RenderJSON(pop, Options{Centrality: true})
	assert.Error(t, err)
}
