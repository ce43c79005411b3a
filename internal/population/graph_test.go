package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// path 1-2-3 plus triangle 4-5-6 joined to 3 by 3-4, and isolated 7.
func testGraph() *Graph {
	g := NewGraph()
	for _, e := range [][2]int64{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 4}} {
		g.AddEdge(e[0], e[1])
	}
	g.AddNode(7)
	return g
}

func TestGraphMultiplicity(t *testing.T) {
	g := NewGraph()
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	assert.Equal(t, 1, g.NumEdges())

	g.RemoveEdge(1, 2)
	assert.True(t, g.HasEdge(1, 2), "edge must survive while a relationship remains")
	g.RemoveEdge(1, 2)
	assert.False(t, g.HasEdge(1, 2))
	assert.Equal(t, 2, g.NumNodes())

	g.AddEdge(3, 3)
	assert.False(t, g.HasEdge(3, 3))
}

func TestGraphComponents(t *testing.T) {
	g := testGraph()
	assert.Equal(t, [][]int64{{1, 2, 3, 4, 5, 6}, {7}}, g.Components())

	g.RemoveEdge(3, 4)
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7}}, g.Components())

	g.RemoveNode(5)
	assert.Equal(t, []int64{6}, g.Neighbors(4))
	assert.Equal(t, 1, g.Degree(4))
}

func TestGraphBridges(t *testing.T) {
	g := testGraph()
	assert.Equal(t, [][2]int64{{1, 2}, {2, 3}, {3, 4}}, g.Bridges())
	assert.Empty(t, NewGraph().Bridges())
}

func TestEigenvectorCentrality(t *testing.T) {
	g := NewGraph()
	// Star centred on 1.
	for i := int64(2); i <= 5; i++ {
		g.AddEdge(1, i)
	}
	scores := g.EigenvectorCentrality([]int64{1, 2, 3, 4, 5}, DefaultCentralityConfig())
	require.Len(t, scores, 5)
	assert.InDelta(t, 1.0, scores[1], 1e-9)
	for i := int64(2); i <= 5; i++ {
		assert.Less(t, scores[i], scores[1])
		assert.InDelta(t, scores[2], scores[i], 1e-9)
	}
	assert.Empty(t, g.EigenvectorCentrality(nil, DefaultCentralityConfig()))
}

func TestDensity(t *testing.T) {
	g := testGraph()
	assert.InDelta(t, 1.0, g.Density([]int64{4, 5, 6}), 1e-9)
	assert.InDelta(t, 2.0/3.0, g.Density([]int64{1, 2, 3}), 1e-9)
	assert.Zero(t, g.Density([]int64{7}))
}
