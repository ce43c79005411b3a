// Package interactions resolves the acts that take place across a
// relationship in one step (sex, injection, peer-change contact) and hands
// them to the exposures that can spread through them.
package interactions

import (
	"fmt"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
	"github.com/titan-sim/titan/internal/population"
)

// Interaction is one kind of act between partners.
type Interaction interface {
	// Name is the act name used in classes.bond_types.<bond>.acts_allowed.
	Name() string
	// Interact resolves one step of the act across rel.
	Interact(env *features.Env, rel *agent.Relationship) error
}

// Registry holds the interactions by name.
type Registry struct {
	byName map[string]Interaction
}

// NewRegistry registers sex, injection and pca.
func NewRegistry(reg *features.Registry) *Registry {
	r := &Registry{byName: make(map[string]Interaction)}
	for _, i := range []Interaction{
		&Sex{features: reg},
		&Injection{features: reg},
		&PCA{features: reg},
	} {
		r.byName[i.Name()] = i
	}
	return r
}

// Get returns the named interaction.
func (r *Registry) Get(name string) (Interaction, bool) {
	i, ok := r.byName[name]
	return i, ok
}

// Interact runs every act the relationship's bond type allows, in
// declaration order. Relationships with an incarcerated end do not interact.
func (r *Registry) Interact(env *features.Env, rel *agent.Relationship) error {
	if rel.Agent1.Incar.Active || rel.Agent2.Incar.Active {
		return nil
	}
	for _, act := range env.Pop.ActsAllowed(rel.BondType) {
		i, ok := r.byName[act]
		if !ok {
			return fmt.Errorf("bond type %s: unknown interaction %q", rel.BondType, act)
		}
		if err := i.Interact(env, rel); err != nil {
			return fmt.Errorf("%s interaction on %s: %w", act, rel, err)
		}
	}
	return nil
}

// transmitting returns the enabled exposures that travel over the
// interaction, have started and are discordant across rel.
func transmitting(env *features.Env, reg *features.Registry, interaction string, rel *agent.Relationship) []features.Exposure {
	var out []features.Exposure
	for _, e := range reg.Exposures() {
		if e.Transmits(interaction) && env.Time >= e.StartTime(env) && features.Discordant(e, rel) {
			out = append(out, e)
		}
	}
	return out
}

// demo reads a demographic field of a from the parameters of its location.
func demo(env *features.Env, a *agent.Agent, field string) float64 {
	p := env.Params
	if a.Location != nil {
		p = a.Location.Params
	}
	return p.Float(population.DemographicPath(a) + "." + field)
}

// eitherDiagnosed reports whether an end of rel has an HIV diagnosis.
func eitherDiagnosed(rel *agent.Relationship) bool {
	return rel.Agent1.HIV.Dx || rel.Agent2.HIV.Dx
}

// actCount samples a per-step act count from a bond-keyed frequency table.
func actCount(env *features.Env, path string) (int, error) {
	bins := env.Params.BinsAt(path)
	if bins.Empty() {
		return 0, nil
	}
	n, err := env.Dist.SampleBins(bins)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return max(n, 0), nil
}
