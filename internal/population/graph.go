package population

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is the undirected partnership network. Nodes are agent ids. Two
// agents bound by several relationships (different bond types) share one
// edge, which is removed when the last of those relationships ends.
type Graph struct {
	g            *simple.UndirectedGraph
	multiplicity map[[2]int64]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		g:            simple.NewUndirectedGraph(),
		multiplicity: make(map[[2]int64]int),
	}
}

func edgeKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

// AddNode inserts a node; adding an existing node is a no-op.
func (gr *Graph) AddNode(id int64) {
	if gr.g.Node(id) == nil {
		gr.g.AddNode(simple.Node(id))
	}
}

// RemoveNode deletes a node and its edges.
func (gr *Graph) RemoveNode(id int64) {
	for _, n := range graph.NodesOf(gr.g.From(id)) {
		delete(gr.multiplicity, edgeKey(id, n.ID()))
	}
	gr.g.RemoveNode(id)
}

// HasNode reports whether id is in the graph.
func (gr *Graph) HasNode(id int64) bool { return gr.g.Node(id) != nil }

// AddEdge links a and b, counting parallel relationships.
func (gr *Graph) AddEdge(a, b int64) {
	if a == b {
		return
	}
	gr.AddNode(a)
	gr.AddNode(b)
	k := edgeKey(a, b)
	gr.multiplicity[k]++
	if gr.multiplicity[k] == 1 {
		gr.g.SetEdge(gr.g.NewEdge(simple.Node(a), simple.Node(b)))
	}
}

// RemoveEdge drops one relationship between a and b, removing the edge when
// none remain.
func (gr *Graph) RemoveEdge(a, b int64) {
	k := edgeKey(a, b)
	if gr.multiplicity[k] == 0 {
		return
	}
	gr.multiplicity[k]--
	if gr.multiplicity[k] == 0 {
		delete(gr.multiplicity, k)
		gr.g.RemoveEdge(a, b)
	}
}

// HasEdge reports whether a and b are adjacent.
func (gr *Graph) HasEdge(a, b int64) bool { return gr.g.HasEdgeBetween(a, b) }

// Neighbors returns the ids adjacent to id in ascending order.
func (gr *Graph) Neighbors(id int64) []int64 {
	if gr.g.Node(id) == nil {
		return nil
	}
	nodes := graph.NodesOf(gr.g.From(id))
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	slices.Sort(out)
	return out
}

// Degree returns the number of distinct neighbours of id.
func (gr *Graph) Degree(id int64) int {
	if gr.g.Node(id) == nil {
		return 0
	}
	return gr.g.From(id).Len()
}

// NumNodes returns the number of nodes.
func (gr *Graph) NumNodes() int { return gr.g.Nodes().Len() }

// NumEdges returns the number of distinct edges.
func (gr *Graph) NumEdges() int { return len(gr.multiplicity) }

// Nodes returns every node id in ascending order.
func (gr *Graph) Nodes() []int64 {
	nodes := graph.NodesOf(gr.g.Nodes())
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	slices.Sort(out)
	return out
}

// Edges returns every edge as an ordered pair, sorted.
func (gr *Graph) Edges() [][2]int64 {
	out := make([][2]int64, 0, len(gr.multiplicity))
	for k := range gr.multiplicity {
		out = append(out, k)
	}
	slices.SortFunc(out, func(x, y [2]int64) int {
		if x[0] != y[0] {
			return cmp.Compare(x[0], y[0])
		}
		return cmp.Compare(x[1], y[1])
	})
	return out
}

// Components returns the connected components. Node ids within a component
// are ascending and components are ordered by their smallest id.
func (gr *Graph) Components() [][]int64 {
	raw := topo.ConnectedComponents(gr.g)
	out := make([][]int64, 0, len(raw))
	for _, comp := range raw {
		ids := make([]int64, len(comp))
		for i, n := range comp {
			ids[i] = n.ID()
		}
		slices.Sort(ids)
		out = append(out, ids)
	}
	slices.SortFunc(out, func(x, y []int64) int { return cmp.Compare(x[0], y[0]) })
	return out
}

// Bridges returns the edges whose removal disconnects their component,
// found with Tarjan's low-link method.
func (gr *Graph) Bridges() [][2]int64 {
	nodes := gr.Nodes()
	disc := make(map[int64]int, len(nodes))
	low := make(map[int64]int, len(nodes))
	var bridges [][2]int64
	timer := 0

	type frame struct {
		node, parent int64
		next         int
		neighbors    []int64
	}
	for _, root := range nodes {
		if _, seen := disc[root]; seen {
			continue
		}
		timer++
		disc[root], low[root] = timer, timer
		stack := []frame{{node: root, parent: -1, neighbors: gr.Neighbors(root)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.neighbors) {
				v := top.neighbors[top.next]
				top.next++
				if v == top.parent {
					continue
				}
				if d, seen := disc[v]; seen {
					low[top.node] = min(low[top.node], d)
					continue
				}
				timer++
				disc[v], low[v] = timer, timer
				stack = append(stack, frame{node: v, parent: top.node, neighbors: gr.Neighbors(v)})
				continue
			}
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1].node
			low[parent] = min(low[parent], low[done.node])
			if low[done.node] > disc[parent] {
				bridges = append(bridges, edgeKey(parent, done.node))
			}
		}
	}
	slices.SortFunc(bridges, func(x, y [2]int64) int {
		if x[0] != y[0] {
			return cmp.Compare(x[0], y[0])
		}
		return cmp.Compare(x[1], y[1])
	})
	return bridges
}

// Density returns edges over possible edges among the given nodes.
func (gr *Graph) Density(ids []int64) float64 {
	n := len(ids)
	if n < 2 {
		return 0
	}
	in := make(map[int64]bool, n)
	for _, id := range ids {
		in[id] = true
	}
	edges := 0
	for k := range gr.multiplicity {
		if in[k[0]] && in[k[1]] {
			edges++
		}
	}
	return float64(edges) / float64(n*(n-1)/2)
}
