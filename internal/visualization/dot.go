// Package visualization renders the partnership network of a population in
// various output formats.
package visualization

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/population"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (valid: dot, json)", s)
}

// Node colors by HIV and prevention status.
const (
	colorDiagnosed = "tomato"
	colorHIV       = "orange"
	colorPrEP      = "mediumseagreen"
	colorDefault   = "steelblue"
)

// edgeStyles maps bond types of the standard settings to DOT styles. Other
// bond types are drawn solid.
var edgeStyles = map[string]string{
	"Sex":    "solid",
	"Inj":    "dashed",
	"SexInj": "bold",
	"Social": "dotted",
}

// Options selects what is rendered.
type Options struct {
	// Component restricts rendering to one component label; empty renders
	// the whole population.
	Component string
	// Centrality adds eigenvector centrality scores to JSON nodes. It needs
	// the network graph.
	Centrality bool
}

func nodeColor(a *agent.Agent) string {
	switch {
	case a.HIV.Active && a.HIV.Dx:
		return colorDiagnosed
	case a.HIV.Active:
		return colorHIV
	case a.PrEP.Active:
		return colorPrEP
	}
	return colorDefault
}

func nodeShape(a *agent.Agent) string {
	if a.IsPWID() {
		return "diamond"
	}
	return "ellipse"
}

// selectAgents returns the agents to render in population order.
func selectAgents(pop *population.Population, opts Options) []*agent.Agent {
	var out []*agent.Agent
	for a := range pop.All.All() {
		if opts.Component == "" || a.Component == opts.Component {
			out = append(out, a)
		}
	}
	return out
}

// selectRelationships returns the relationships with both agents selected.
func selectRelationships(pop *population.Population, opts Options) []*agent.Relationship {
	var out []*agent.Relationship
	for r := range pop.Relationships.All() {
		if opts.Component == "" || (r.Agent1.Component == opts.Component && r.Agent2.Component == opts.Component) {
			out = append(out, r)
		}
	}
	return out
}

// RenderDOT produces a Graphviz DOT representation of the partnership network.
func RenderDOT(pop *population.Population, opts Options) string {
	var b strings.Builder
	b.WriteString("graph titan {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  overlap=false;\n")
	b.WriteString("  node [style=filled, fontname=\"Helvetica\", fontsize=9];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	for _, a := range selectAgents(pop, opts) {
		fmt.Fprintf(&b, "  %d [label=%q, shape=%s, fillcolor=%q, tooltip=%q];\n",
			a.ID, strconv.FormatInt(a.ID, 10), nodeShape(a), nodeColor(a),
			fmt.Sprintf("%s %s %s age=%d", a.Race, a.SexType, a.DrugType, a.Age))
	}
	b.WriteString("\n")

	for _, r := range selectRelationships(pop, opts) {
		style := edgeStyles[r.BondType]
		if style == "" {
			style = "solid"
		}
		fmt.Fprintf(&b, "  %d -- %d [label=%q, style=%s, tooltip=\"duration=%d\"];\n",
			r.Agent1.ID, r.Agent2.ID, r.BondType, style, r.Duration)
	}

	b.WriteString("}\n")
	return b.String()
}

// JSONNode is one agent in the JSON rendering.
type JSONNode struct {
	ID         int64    `json:"id"`
	Race       string   `json:"race"`
	SexType    string   `json:"sex_type"`
	DrugType   string   `json:"drug_type"`
	Age        int      `json:"age"`
	Location   string   `json:"location"`
	Component  string   `json:"component"`
	HIV        bool     `json:"hiv"`
	Dx         bool     `json:"dx"`
	PrEP       bool     `json:"prep"`
	HAART      bool     `json:"haart"`
	Centrality *float64 `json:"centrality,omitempty"`
}

func newJSONNode(a *agent.Agent) JSONNode {
	n := JSONNode{
		ID:        a.ID,
		Race:      a.Race,
		SexType:   a.SexType,
		DrugType:  a.DrugType,
		Age:       a.Age,
		Component: a.Component,
		HIV:       a.HIV.Active,
		Dx:        a.HIV.Dx,
		PrEP:      a.PrEP.Active,
		HAART:     a.HAART.Active,
	}
	if a.Location != nil {
		n.Location = a.Location.Name
	}
	return n
}

// JSONEdge is one relationship in the JSON rendering.
type JSONEdge struct {
	ID       int64  `json:"id"`
	Source   int64  `json:"source"`
	Target   int64  `json:"target"`
	BondType string `json:"bond_type"`
	Duration int    `json:"duration"`
}

// JSONGraph is the JSON rendering of the network.
type JSONGraph struct {
	Nodes      []JSONNode `json:"nodes"`
	Edges      []JSONEdge `json:"edges"`
	NodeCount  int        `json:"node_count"`
	EdgeCount  int        `json:"edge_count"`
	Components int        `json:"components"`
}

// RenderJSON produces a JSON graph representation with nodes and edges arrays.
func RenderJSON(pop *population.Population, opts Options) (*JSONGraph, error) {
	agents := selectAgents(pop, opts)

	var scores map[int64]float64
	if opts.Centrality {
		if pop.Graph == nil {
			return nil, fmt.Errorf("centrality requires the network graph")
		}
		scores = centrality(pop, agents)
	}

	nodes := make([]JSONNode, 0, len(agents))
	for _, a := range agents {
		n := newJSONNode(a)
		if s, ok := scores[a.ID]; ok {
			n.Centrality = &s
		}
		nodes = append(nodes, n)
	}

	rels := selectRelationships(pop, opts)
	edges := make([]JSONEdge, 0, len(rels))
	for _, r := range rels {
		edges = append(edges, JSONEdge{
			ID:       r.ID,
			Source:   r.Agent1.ID,
			Target:   r.Agent2.ID,
			BondType: r.BondType,
			Duration: r.Duration,
		})
	}

	comps := len(pop.Components)
	if opts.Component != "" {
		comps = 1
	}
	return &JSONGraph{
		Nodes:      nodes,
		Edges:      edges,
		NodeCount:  len(nodes),
		EdgeCount:  len(edges),
		Components: comps,
	}, nil
}

// centrality scores agents within their own components.
func centrality(pop *population.Population, agents []*agent.Agent) map[int64]float64 {
	byComp := make(map[string][]int64)
	var order []string
	for _, a := range agents {
		if _, ok := byComp[a.Component]; !ok {
			order = append(order, a.Component)
		}
		byComp[a.Component] = append(byComp[a.Component], a.ID)
	}
	scores := make(map[int64]float64, len(agents))
	for _, c := range order {
		for id, s := range pop.Graph.EigenvectorCentrality(byComp[c], population.DefaultCentralityConfig()) {
			scores[id] = s
		}
	}
	return scores
}
