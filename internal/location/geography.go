package location

import (
	"fmt"

	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/stochastic"
)

// Geography is the set of locations of a population, with their adjacency
// and migration tables.
type Geography struct {
	locations map[string]*Location
	order     []*Location

	migrationAttr string
	migration     map[string]Weights // origin name or category -> destination weights
}

// NewGeography builds every location declared in classes.locations.
func NewGeography(p *params.Tree) (*Geography, error) {
	g := &Geography{
		locations:     make(map[string]*Location),
		migrationAttr: p.String("location.migration.attribute"),
		migration:     make(map[string]Weights),
	}
	for _, name := range p.Sub("classes.locations").Keys() {
		loc, err := New(name, p)
		if err != nil {
			return nil, err
		}
		g.locations[name] = loc
		g.order = append(g.order, loc)
	}

	edges := p.Sub("location.edges")
	for _, name := range edges.Keys() {
		a := g.locations[edges.String(name+".location_1")]
		b := g.locations[edges.String(name+".location_2")]
		if a == nil || b == nil {
			return nil, &params.ConfigError{Path: "location.edges." + name, Err: params.ErrInvalidParam, Reason: "edge endpoint is not a location"}
		}
		a.neighbors.Add(b.Name)
		b.neighbors.Add(a.Name)
	}

	if p.Bool("location.migration.enable") {
		values := p.Sub("location.migration.values")
		for _, origin := range values.Keys() {
			var w Weights
			dest := values.Sub(origin)
			for _, k := range dest.Keys() {
				w.add(k, dest.Float(k))
			}
			g.migration[origin] = w
		}
	}
	return g, nil
}

// Location returns the named location, or nil.
func (g *Geography) Location(name string) *Location { return g.locations[name] }

// All returns the locations in declaration order.
func (g *Geography) All() []*Location { return g.order }

// Weights returns the population share of each location.
func (g *Geography) Weights() Weights {
	var w Weights
	for _, loc := range g.order {
		w.add(loc.Name, loc.Ppl)
	}
	return w
}

// Destination draws where an agent living at origin moves to. When migration
// is keyed by category a destination category is drawn first, then a location
// of that category by population share.
func (g *Geography) Destination(r *stochastic.Rand, origin *Location) (*Location, error) {
	key := origin.Name
	if g.migrationAttr == "category" {
		key = origin.Category
	}
	w, ok := g.migration[key]
	if !ok {
		return origin, nil
	}
	dest, ok := w.Draw(r)
	if !ok {
		return origin, nil
	}
	if g.migrationAttr != "category" {
		loc := g.locations[dest]
		if loc == nil {
			return nil, fmt.Errorf("migration destination %q is not a location", dest)
		}
		return loc, nil
	}
	var candidates Weights
	for _, loc := range g.order {
		if loc.Category == dest {
			candidates.add(loc.Name, loc.Ppl)
		}
	}
	name, ok := candidates.Draw(r)
	if !ok {
		return nil, fmt.Errorf("migration destination category %q has no populated location", dest)
	}
	return g.locations[name], nil
}

// Scale multiplies path by factor in every location's parameters.
func (g *Geography) Scale(path string, factor float64) error {
	for _, loc := range g.order {
		if err := loc.Params.Scale(path, factor); err != nil {
			return fmt.Errorf("location %s: %w", loc.Name, err)
		}
	}
	return nil
}
