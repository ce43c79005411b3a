// Package model runs a simulation: it owns the population, the feature and
// interaction registries and the model random sources, and advances them one
// step at a time.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
	"github.com/titan-sim/titan/internal/interactions"
	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/popio"
	"github.com/titan-sim/titan/internal/population"
	"github.com/titan-sim/titan/internal/stochastic"
)

// ErrNoAgentZero is returned when no agent qualifies as agent zero and the
// highest-degree fallback is disabled.
var ErrNoAgentZero = errors.New("no eligible agent zero")

// Reporter receives the model after every reported step.
type Reporter interface {
	Report(m *Model) error
	Close() error
}

// Options configures a model.
type Options struct {
	// RunID identifies the run in reports and logs.
	RunID  string
	Logger *slog.Logger
	Events *logging.EventLogger

	// PopPath, when set, loads a saved population instead of creating one.
	PopPath string
}

// Model is one simulation run.
type Model struct {
	RunID  string
	Params *params.Tree

	Pop          *population.Population
	Features     *features.Registry
	Interactions *interactions.Registry

	// Seed seeds Rand and Dist, which drive interactions and feature
	// updates (model.seed.run).
	Seed int64
	Rand *stochastic.Rand
	Dist *stochastic.Dist

	// Time is the last completed step. It starts at -burn_steps.
	Time int

	// Exits lists the agents that left the population in the current step.
	Exits []Exit

	Logger *slog.Logger
	Events *logging.EventLogger

	env *features.Env
}

// New builds a model and its population from finalized parameters.
func New(p *params.Tree, opts Options) (*Model, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	m := &Model{
		RunID:  opts.RunID,
		Params: p,
		Seed:   stochastic.ResolveSeed(int64(p.Int("model.seed.run"))),
		Time:   -p.Int("model.time.burn_steps"),
		Logger: opts.Logger,
		Events: opts.Events,
	}
	m.Rand, m.Dist = stochastic.NewRand(m.Seed), stochastic.NewDist(m.Seed)
	m.Features = features.NewRegistry(p)
	m.Interactions = interactions.NewRegistry(m.Features)
	m.env = &features.Env{
		Params: p,
		Rand:   m.Rand,
		Dist:   m.Dist,
		Time:   m.Time,
		Logger: m.Logger,
		Events: m.Events,
	}
	m.Features.Bind(m.env)

	popOpts := population.Options{
		Logger:    m.Logger,
		Hooks:     m.Features,
		Seed:      int64(p.Int("model.seed.ppl")),
		NetSeed:   int64(p.Int("model.seed.net")),
		StartTime: m.Time,
	}
	var err error
	if opts.PopPath != "" {
		m.Pop, err = popio.Read(opts.PopPath, p, popOpts)
	} else {
		m.Pop, err = population.New(p, popOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("building population: %w", err)
	}
	m.env.Pop = m.Pop

	m.Logger.Info("model created",
		"run_id", m.RunID,
		"agents", m.Pop.All.Len(),
		"relationships", m.Pop.Relationships.Len(),
		"seed", m.Seed, "pop_seed", m.Pop.Seed, "net_seed", m.Pop.NetSeed)
	return m, nil
}

// Env returns the feature environment of the current step.
func (m *Model) Env() *features.Env { return m.env }

// Run steps the model to model.time.num_steps, reporting every
// outputs.print_frequency steps and at the last step. Burn-in steps (t <= 0)
// are not reported; a model without burn-in reports its initial state.
func (m *Model) Run(ctx context.Context, reporters ...Reporter) error {
	start := time.Now()
	last := m.Params.Int("model.time.num_steps")
	every := max(m.Params.Int("outputs.print_frequency"), 1)

	if m.Time == 0 {
		if err := m.report(reporters); err != nil {
			return err
		}
	}
	for m.Time < last {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Step(); err != nil {
			return fmt.Errorf("step %d: %w", m.Time, err)
		}
		if m.Time > 0 && (m.Time%every == 0 || m.Time == last) {
			if err := m.report(reporters); err != nil {
				return err
			}
		}
	}
	m.Logger.Info("run finished", "run_id", m.RunID, "steps", last, "agents", m.Pop.All.Len(),
		"hiv", m.Features.HIV.Active(), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (m *Model) report(reporters []Reporter) error {
	for _, r := range reporters {
		if err := r.Report(m); err != nil {
			return fmt.Errorf("reporting step %d: %w", m.Time, err)
		}
	}
	m.Logger.Debug("step reported", "t", m.Time, "agents", m.Pop.All.Len(),
		"relationships", m.Pop.Relationships.Len(), "hiv", m.Features.HIV.Active())
	return nil
}

// Step advances the model by one step.
func (m *Model) Step() error {
	t := m.Time + 1
	m.Time = t
	m.env.Time = t
	m.Exits = m.Exits[:0]
	p := m.Params
	static := p.Bool("features.static_network")

	if p.Bool("features.timeline_scaling") {
		if err := m.scaleTimeline(t); err != nil {
			return err
		}
	}
	if !static {
		m.Pop.ProgressRelationships()
	}
	if p.Bool("features.enter_and_exit") {
		if err := m.exitAgents(); err != nil {
			return err
		}
		if err := m.enterAgents(); err != nil {
			return err
		}
	}
	if p.Bool("location.migration.enable") {
		if err := m.Pop.Migrate(m.Rand); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	if !static {
		if err := m.Pop.UpdatePartnerAssignments(t); err != nil {
			return fmt.Errorf("updating partners: %w", err)
		}
	}
	if p.Bool("features.agent_zero") && t == p.Int("agent_zero.start_time") {
		if err := m.makeAgentZero(); err != nil {
			return err
		}
	}

	for _, rel := range m.Pop.Relationships.Slice() {
		if err := m.Interactions.Interact(m.env, rel); err != nil {
			return err
		}
	}
	if err := m.Features.UpdatePop(m.env); err != nil {
		return err
	}
	spy := m.env.StepsPerYear()
	for _, a := range m.Pop.All.Members() {
		if t > 0 && t%spy == 0 {
			a.Age++
		}
		m.Features.UpdateAgent(m.env, a)
	}
	m.Pop.UpdateComponents()
	return nil
}

// makeAgentZero converts one agent with at least agent_zero.num_partners
// partners in bonds allowing the configured interaction. Without such an
// agent it falls back to the best-connected one when allowed.
func (m *Model) makeAgentZero() error {
	p := m.Params
	name := p.String("agent_zero.exposure")
	exp := m.Features.Exposure(name)
	if exp == nil {
		return fmt.Errorf("agent zero: unknown exposure %q", name)
	}
	interaction := p.String("agent_zero.interaction_type")
	var bonds []string
	for _, b := range m.Pop.BondTypes() {
		if m.Pop.BondAllows(b, interaction) {
			bonds = append(bonds, b)
		}
	}
	need := p.Int("agent_zero.num_partners")

	var eligible []*agent.Agent
	var best *agent.Agent
	bestDegree := -1
	for a := range m.Pop.All.All() {
		if exp.Infected(a) {
			continue
		}
		degree := 0
		if len(bonds) > 0 {
			degree = a.NumPartners(bonds...)
		}
		if degree >= need {
			eligible = append(eligible, a)
		}
		if degree > bestDegree {
			best, bestDegree = a, degree
		}
	}

	zero, ok := stochastic.Choice(m.Rand, eligible)
	if !ok {
		if !p.Bool("agent_zero.fallback") || best == nil {
			return fmt.Errorf("agent zero with %d %s partners: %w", need, interaction, ErrNoAgentZero)
		}
		zero = best
		m.Logger.Info("agent zero fallback to highest degree", "agent", zero.ID, "degree", bestDegree)
	}
	exp.Convert(m.env, zero)
	m.Events.Agent("agent_zero", m.Time, zero.ID, map[string]any{"exposure": name})
	return nil
}
