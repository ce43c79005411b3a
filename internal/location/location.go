// Package location resolves the per-location parameter trees and the
// categorical weights used when creating and migrating agents.
package location

import (
	"fmt"
	"slices"

	"github.com/titan-sim/titan/internal/ordered"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/stochastic"
)

// Weights is a categorical distribution over string keys.
type Weights struct {
	Keys  []string
	Probs []float64
}

// Draw picks a key by weight.
func (w Weights) Draw(r *stochastic.Rand) (string, bool) {
	return stochastic.WeightedChoice(r, w.Keys, w.Probs)
}

// Prob returns the weight of key.
func (w Weights) Prob(key string) float64 {
	if i := slices.Index(w.Keys, key); i >= 0 {
		return w.Probs[i]
	}
	return 0
}

func (w *Weights) add(key string, prob float64) {
	w.Keys = append(w.Keys, key)
	w.Probs = append(w.Probs, prob)
}

// Location is a place agents live. It owns a copy of the parameter tree with
// the location's scaling applied.
type Location struct {
	Name     string
	Category string
	Ppl      float64
	Params   *params.Tree

	neighbors *ordered.Set[string]

	raceWeights    Weights
	sexTypeWeights map[string]Weights
	drugWeights    map[string]map[string]Weights
	roleWeights    map[string]map[string]Weights
}

// New builds a location from the base tree. Scaling entries under
// location.scaling.<name> are applied to a deep copy of base.
func New(name string, base *params.Tree) (*Location, error) {
	loc := &Location{
		Name:      name,
		Category:  base.String("classes.locations." + name + ".category"),
		Ppl:       base.Float("classes.locations." + name + ".ppl"),
		Params:    base.Clone(),
		neighbors: ordered.New[string](),
	}
	if err := loc.applyScaling(base.Sub("location.scaling").Child(name)); err != nil {
		return nil, fmt.Errorf("location %s: %w", name, err)
	}
	loc.initWeights()
	return loc, nil
}

func (l *Location) applyScaling(scaling *params.Tree) error {
	for _, path := range scaling.Keys() {
		entry := scaling.Child(path)
		switch entry.String("field") {
		case "override":
			if err := l.Params.Set(path, entry.Value("value")); err != nil {
				return err
			}
		default:
			if err := l.Params.Scale(path, entry.Float("value")); err != nil {
				return err
			}
		}
	}
	return nil
}

// initWeights precomputes the demographic draws for this location.
func (l *Location) initWeights() {
	p := l.Params
	l.sexTypeWeights = make(map[string]Weights)
	l.drugWeights = make(map[string]map[string]Weights)
	l.roleWeights = make(map[string]map[string]Weights)
	for _, race := range p.Sub("classes.races").Keys() {
		racePath := "demographics." + race
		l.raceWeights.add(race, p.Float(racePath+".ppl"))

		var sexTypes Weights
		l.drugWeights[race] = make(map[string]Weights)
		l.roleWeights[race] = make(map[string]Weights)
		for _, st := range p.Sub("classes.sex_types").Keys() {
			stPath := racePath + ".sex_type." + st
			sexTypes.add(st, p.Float(stPath+".ppl"))

			var drugs Weights
			for _, dt := range p.Strings("classes.drug_types") {
				drugs.add(dt, p.Float(stPath+".drug_type."+dt+".ppl"))
			}
			l.drugWeights[race][st] = drugs

			var roles Weights
			init := p.Sub(stPath + ".sex_role.init")
			for _, role := range init.Keys() {
				roles.add(role, init.Float(role))
			}
			l.roleWeights[race][st] = roles
		}
		l.sexTypeWeights[race] = sexTypes
	}
}

// RaceWeights returns the race proportions.
func (l *Location) RaceWeights() Weights { return l.raceWeights }

// SexTypeWeights returns the sex type proportions within race.
func (l *Location) SexTypeWeights(race string) Weights { return l.sexTypeWeights[race] }

// DrugWeights returns the drug type proportions within race and sex type.
func (l *Location) DrugWeights(race, sexType string) Weights {
	return l.drugWeights[race][sexType]
}

// RoleWeights returns the sex role proportions within race and sex type.
func (l *Location) RoleWeights(race, sexType string) Weights {
	return l.roleWeights[race][sexType]
}

// IsNeighbor reports whether other shares an edge with l.
func (l *Location) IsNeighbor(other *Location) bool {
	return other != nil && l.neighbors.Contains(other.Name)
}

// Neighbors returns the names of adjacent locations.
func (l *Location) Neighbors() []string { return l.neighbors.Slice() }

func (l *Location) String() string { return l.Name }
