// Package features implements the per-agent state machines of a simulation:
// the exposures (HIV, knowledge, monkeypox) that spread across relationships
// and the features (treatment, prevention, incarceration, ...) that change
// how agents partner and acquire infection.
//
// Every exposure and feature is registered explicitly in a Registry, which
// fixes the order hooks are called in and keeps class-level counters in sync
// with agent state.
package features

import (
	"errors"
	"log/slog"
	"math"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/population"
	"github.com/titan-sim/titan/internal/stochastic"
)

// ErrGraphRequired is returned when a feature that walks the partnership
// graph runs with the network disabled.
var ErrGraphRequired = errors.New("feature requires model.network.enable")

// Env is the simulation state handed to feature hooks.
type Env struct {
	Params *params.Tree
	Pop    *population.Population
	Rand   *stochastic.Rand
	Dist   *stochastic.Dist
	Time   int
	Logger *slog.Logger
	Events *logging.EventLogger
}

// StepsPerYear returns model.time.steps_per_year, at least 1.
func (e *Env) StepsPerYear() int {
	return max(e.Params.Int("model.time.steps_per_year"), 1)
}

// Feature is one per-agent state machine.
type Feature interface {
	// Name is the params key of the feature ("prep", "high_risk").
	Name() string

	// InitAgent draws the initial state of a newly created agent.
	InitAgent(env *Env, a *agent.Agent)
	// UpdateAgent advances one agent by a step.
	UpdateAgent(env *Env, a *agent.Agent)
	// UpdatePop runs population-level work once per step, before any
	// UpdateAgent call.
	UpdatePop(env *Env) error

	// AddAgent and RemoveAgent keep class counters in sync with the
	// population.
	AddAgent(a *agent.Agent)
	RemoveAgent(a *agent.Agent)

	// TransmissionRiskMultiplier scales the chance that an infected agent
	// transmits; AcquisitionRiskMultiplier the chance that a susceptible
	// agent acquires.
	TransmissionRiskMultiplier(env *Env, a *agent.Agent, interaction string) float64
	AcquisitionRiskMultiplier(env *Env, a *agent.Agent, interaction string) float64

	// StatKeys lists the report counters the feature contributes.
	StatKeys() []string
	// SetStats adds a's contribution to the counters of its stratum.
	SetStats(stats map[string]int, a *agent.Agent, t int)
}

// Exposure is a feature that spreads across relationships.
type Exposure interface {
	Feature

	// StartTime is the first step at which the exposure transmits.
	StartTime(env *Env) int
	// Transmits reports whether the interaction can carry the exposure.
	Transmits(interaction string) bool
	// Infected reports whether a carries the exposure.
	Infected(a *agent.Agent) bool
	// Convert makes a carry the exposure.
	Convert(env *Env, a *agent.Agent)
	// Expose resolves numActs acts of an interaction across rel.
	Expose(env *Env, interaction string, rel *agent.Relationship, numActs int) error
}

// Diagnosable is an exposure with a diagnosis state.
type Diagnosable interface {
	Exposure
	Diagnosed(a *agent.Agent) bool
	DxTime(a *agent.Agent) int
	Diagnose(env *Env, a *agent.Agent)
}

// base supplies no-op hooks for embedding.
type base struct {
	name string
	reg  *Registry
}

func (b *base) Name() string                               { return b.name }
func (b *base) InitAgent(*Env, *agent.Agent)               {}
func (b *base) UpdateAgent(*Env, *agent.Agent)             {}
func (b *base) UpdatePop(*Env) error                       { return nil }
func (b *base) AddAgent(*agent.Agent)                      {}
func (b *base) RemoveAgent(*agent.Agent)                   {}
func (b *base) StatKeys() []string                         { return nil }
func (b *base) SetStats(map[string]int, *agent.Agent, int) {}

func (b *base) TransmissionRiskMultiplier(*Env, *agent.Agent, string) float64 { return 1 }
func (b *base) AcquisitionRiskMultiplier(*Env, *agent.Agent, string) float64  { return 1 }

// agentParams returns the parameters in force where a lives.
func agentParams(env *Env, a *agent.Agent) *params.Tree {
	if a.Location != nil {
		return a.Location.Params
	}
	return env.Params
}

// demo reads a field of a's demographic leaf, e.g. demo(env, a, "hiv.init").
func demo(env *Env, a *agent.Agent, field string) float64 {
	return agentParams(env, a).Float(population.DemographicPath(a) + "." + field)
}

// drawDuration samples a duration bin and returns a step count within it.
func drawDuration(env *Env, bins params.Bins) int {
	if bins.Empty() {
		return 1
	}
	n, err := env.Dist.SampleBins(bins)
	if err != nil {
		env.Logger.Warn("duration draw failed", "error", err)
		return 1
	}
	return n
}

// cumulative turns a per-act probability into the probability of at least
// one success in n acts.
func cumulative(p float64, n int) float64 {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p, float64(n))
}

// inc adds 1 to stats[key] when cond holds.
func inc(stats map[string]int, key string, cond bool) {
	if cond {
		stats[key]++
	}
}

// counter is a race by sex type tally.
type counter map[string]map[string]int

func (c counter) add(race, sexType string, n int) {
	m, ok := c[race]
	if !ok {
		m = make(map[string]int)
		c[race] = m
	}
	m[sexType] += n
}

func (c counter) get(race, sexType string) int { return c[race][sexType] }

func (c counter) total() int {
	n := 0
	for _, m := range c {
		for _, v := range m {
			n += v
		}
	}
	return n
}
