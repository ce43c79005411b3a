// Package population owns the agents and relationships of a simulation: agent
// creation, the partnerable and sex-partner indices, partner selection and the
// partnership graph.
package population

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/location"
	"github.com/titan-sim/titan/internal/ordered"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/stochastic"
)

var (
	// ErrSelfRelationship is returned when a relationship would join an agent
	// to itself.
	ErrSelfRelationship = agent.ErrSelfRelationship

	// ErrDuplicatePartner is returned when a relationship would repeat an
	// existing partnership in the same bond type.
	ErrDuplicatePartner = agent.ErrDuplicatePartner
)

// RemovedComponent is the component label of an agent no longer in the
// population.
const RemovedComponent = "-1"

// Hooks receives agent lifecycle events so per-feature class state (counters,
// class sets) stays in sync with the population.
type Hooks interface {
	// InitAgent draws the initial feature state of a newly created agent.
	InitAgent(pop *Population, a *agent.Agent, t int)
	// AddAgent registers an agent's feature state with the class counters.
	AddAgent(a *agent.Agent)
	// RemoveAgent unregisters an agent's feature state.
	RemoveAgent(a *agent.Agent)
}

type noHooks struct{}

func (noHooks) InitAgent(*Population, *agent.Agent, int) {}
func (noHooks) AddAgent(*agent.Agent)                    {}
func (noHooks) RemoveAgent(*agent.Agent)                 {}

// Options configures a population.
type Options struct {
	Logger *slog.Logger
	Hooks  Hooks

	// Seed seeds agent creation (model.seed.ppl); NetSeed seeds partnering
	// (model.seed.net). Zero draws a fresh seed.
	Seed    int64
	NetSeed int64

	// StartTime is the step agents are created at: 0, or -burn_steps.
	StartTime int
}

// Population is the set of agents and relationships of one simulation.
type Population struct {
	Params    *params.Tree
	Geography *location.Geography
	Logger    *slog.Logger

	Seed    int64
	NetSeed int64
	Rand    *stochastic.Rand // agent creation
	Dist    *stochastic.Dist
	NetRand *stochastic.Rand // partner selection, durations, trimming
	NetDist *stochastic.Dist

	All           *agent.Set
	PWID          *agent.Set
	Relationships *ordered.Set[*agent.Relationship]
	Graph         *Graph // nil when the network is disabled
	Components    [][]*agent.Agent

	hooks       Hooks
	byID        map[int64]*agent.Agent
	partnerable map[string]*ordered.Set[*agent.Agent]
	sexPartners map[string]*ordered.Set[*agent.Agent]
	sleepsWith  map[string][]string
	bondTypes   []string
	bondActs    map[string][]string
	assortRules []AssortRule
	buffer      float64

	meanRelDuration map[string]map[string]float64

	nextAgentID int64
	nextRelID   int64
}

// NewEmpty returns a population with no agents. It is the starting point for
// loading a saved population.
func NewEmpty(p *params.Tree, opts Options) (*Population, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Hooks == nil {
		opts.Hooks = noHooks{}
	}
	geo, err := location.NewGeography(p)
	if err != nil {
		return nil, fmt.Errorf("building geography: %w", err)
	}

	pop := &Population{
		Params:        p,
		Geography:     geo,
		Logger:        opts.Logger,
		Seed:          stochastic.ResolveSeed(opts.Seed),
		NetSeed:       stochastic.ResolveSeed(opts.NetSeed),
		All:           agent.NewSet("AllAgents", nil, nil),
		Relationships: ordered.New[*agent.Relationship](),
		hooks:         opts.Hooks,
		byID:          make(map[int64]*agent.Agent),
		partnerable:   make(map[string]*ordered.Set[*agent.Agent]),
		sexPartners:   make(map[string]*ordered.Set[*agent.Agent]),
		sleepsWith:    make(map[string][]string),
		bondActs:      make(map[string][]string),
		buffer:        p.Float("calibration.partnership.buffer"),
		nextAgentID:   1,
		nextRelID:     1,
	}
	pop.PWID = agent.NewSet("PWID", pop.All, pop.All)
	pop.Rand, pop.Dist = stochastic.NewRand(pop.Seed), stochastic.NewDist(pop.Seed)
	pop.NetRand, pop.NetDist = stochastic.NewRand(pop.NetSeed), stochastic.NewDist(pop.NetSeed)

	if p.Bool("model.network.enable") {
		pop.Graph = NewGraph()
	}
	for _, b := range p.Sub("classes.bond_types").Keys() {
		pop.bondTypes = append(pop.bondTypes, b)
		pop.bondActs[b] = p.Strings("classes.bond_types." + b + ".acts_allowed")
		pop.partnerable[b] = ordered.New[*agent.Agent]()
	}
	for _, st := range p.Sub("classes.sex_types").Keys() {
		pop.sleepsWith[st] = p.Strings("classes.sex_types." + st + ".sleeps_with")
		pop.sexPartners[st] = ordered.New[*agent.Agent]()
	}
	if err := pop.initMeanRelDuration(); err != nil {
		return nil, err
	}
	if p.Bool("features.assort_mix") {
		rules, err := ParseAssortRules(p)
		if err != nil {
			return nil, err
		}
		pop.assortRules = rules
	}
	return pop, nil
}

// New creates a population of model.num_pop agents spread over locations and
// races by their population shares, then forms the initial relationships.
func New(p *params.Tree, opts Options) (*Population, error) {
	pop, err := NewEmpty(p, opts)
	if err != nil {
		return nil, err
	}
	numPop := p.Int("model.num_pop")
	for _, loc := range pop.Geography.All() {
		locPop := int(math.Round(float64(numPop) * loc.Ppl))
		races := loc.RaceWeights()
		for i, race := range races.Keys {
			n := int(math.Round(float64(locPop) * races.Probs[i]))
			for range n {
				a, err := pop.CreateAgent(loc, race, opts.StartTime, AgentOptions{})
				if err != nil {
					return nil, err
				}
				pop.AddAgent(a)
			}
		}
	}
	pop.Logger.Debug("population created", "agents", pop.All.Len(), "seed", pop.Seed, "net_seed", pop.NetSeed)

	if err := pop.UpdatePartnerAssignments(opts.StartTime); err != nil {
		return nil, err
	}
	if pop.Graph != nil {
		if err := pop.trimComponents(); err != nil {
			return nil, err
		}
		pop.UpdateComponents()
	}
	return pop, nil
}

// BondTypes returns the bond types in declaration order.
func (p *Population) BondTypes() []string { return p.bondTypes }

// ActsAllowed returns the interactions allowed on a bond type.
func (p *Population) ActsAllowed(bond string) []string { return p.bondActs[bond] }

// BondAllows reports whether a bond type allows the interaction.
func (p *Population) BondAllows(bond, act string) bool {
	return slices.Contains(p.bondActs[bond], act)
}

// Agent returns the agent with the given id, or nil.
func (p *Population) Agent(id int64) *agent.Agent { return p.byID[id] }

// Partnerable returns the partnerable index of a bond type.
func (p *Population) Partnerable(bond string) *ordered.Set[*agent.Agent] {
	return p.partnerable[bond]
}

// SexPartners returns the agents a member of sexType may have sex with.
func (p *Population) SexPartners(sexType string) *ordered.Set[*agent.Agent] {
	return p.sexPartners[sexType]
}

// SleepsWith reports whether sexType a partners with sexType b.
func (p *Population) SleepsWith(a, b string) bool {
	return slices.Contains(p.sleepsWith[a], b)
}

// MeanRelDuration returns the mean relationship duration for a bond type and
// race.
func (p *Population) MeanRelDuration(bond, race string) float64 {
	return p.meanRelDuration[bond][race]
}

func (p *Population) initMeanRelDuration() error {
	p.meanRelDuration = make(map[string]map[string]float64)
	for _, b := range p.bondTypes {
		p.meanRelDuration[b] = make(map[string]float64)
		for _, race := range p.Params.Sub("classes.races").Keys() {
			bins := p.Params.BinsAt("partnership.duration." + b + "." + race)
			if bins.Empty() {
				continue
			}
			mean, err := stochastic.BinsMean(bins)
			if err != nil {
				return &params.ConfigError{Path: "partnership.duration." + b + "." + race, Err: params.ErrInvalidParam, Reason: err.Error()}
			}
			p.meanRelDuration[b][race] = mean
		}
	}
	return nil
}

// AgentOptions fixes attributes of a created agent instead of drawing them.
type AgentOptions struct {
	SexType  string
	DrugType string
	Age      int // 0 draws from the age bins
}

// CreateAgent draws a new agent living at loc. The agent is not added to the
// population; call AddAgent.
func (p *Population) CreateAgent(loc *location.Location, race string, t int, opts AgentOptions) (*agent.Agent, error) {
	a := agent.New(p.nextAgentID, p.bondTypes)
	p.nextAgentID++
	a.Race = race
	a.Location = loc
	a.Component = RemovedComponent
	lp := loc.Params

	a.SexType = opts.SexType
	if a.SexType == "" {
		st, ok := loc.SexTypeWeights(race).Draw(p.Rand)
		if !ok {
			return nil, &params.ConfigError{Path: "demographics." + race + ".sex_type", Err: params.ErrInvalidParam, Reason: "no sex type has a positive share"}
		}
		a.SexType = st
	}
	a.DrugType = opts.DrugType
	if a.DrugType == "" {
		dt, ok := loc.DrugWeights(race, a.SexType).Draw(p.Rand)
		if !ok {
			dt = "None"
		}
		a.DrugType = dt
	}
	a.Age = opts.Age
	if a.Age == 0 {
		if bins := lp.BinsAt("demographics." + race + ".age"); !bins.Empty() {
			age, err := p.Dist.SampleBins(bins)
			if err != nil {
				return nil, fmt.Errorf("drawing age: %w", err)
			}
			a.Age = age
		}
	}
	a.SexRole = "versatile"
	if role, ok := loc.RoleWeights(race, a.SexType).Draw(p.Rand); ok {
		a.SexRole = role
	}

	demo := DemographicPath(a)
	scale := lp.Float("calibration.sex.partner")
	for _, b := range p.bondTypes {
		if p.BondAllows(b, "injection") && !a.IsPWID() {
			a.MeanNumPartners[b] = 0
			a.TargetPartners[b] = 0
			continue
		}
		path := demo + ".num_partners." + b
		if !lp.Has(path + ".dist_type") {
			continue
		}
		draw, err := p.Dist.Sample(lp.DistributionAt(path))
		if err != nil {
			return nil, &params.ConfigError{Path: path, Err: params.ErrInvalidParam, Reason: err.Error()}
		}
		dur := p.meanRelDuration[b][race]
		if dur <= 0 {
			dur = 1
		}
		a.MeanNumPartners[b] = math.Ceil(draw * scale / dur)
		a.TargetPartners[b] = p.Dist.Poisson(a.MeanNumPartners[b])
	}

	p.hooks.InitAgent(p, a, t)
	return a, nil
}

// DemographicPath is the params path of an agent's demographic leaf:
// demographics.<race>.sex_type.<sex_type>.drug_type.<drug_type>.
func DemographicPath(a *agent.Agent) string {
	return "demographics." + a.Race + ".sex_type." + a.SexType + ".drug_type." + a.DrugType
}

// AddAgent inserts a into every set and index it belongs to.
func (p *Population) AddAgent(a *agent.Agent) {
	if a.IsPWID() {
		p.PWID.Add(a)
	} else {
		p.All.Add(a)
	}
	p.byID[a.ID] = a
	if a.ID >= p.nextAgentID {
		p.nextAgentID = a.ID + 1
	}
	for st, set := range p.sexPartners {
		if slices.Contains(p.sleepsWith[st], a.SexType) {
			set.Add(a)
		}
	}
	p.UpdatePartnerability(a)
	if p.Graph != nil {
		p.Graph.AddNode(a.ID)
	}
	p.hooks.AddAgent(a)
}

// RemoveAgent ends every relationship of a and removes it from the
// population, its indices and the graph.
func (p *Population) RemoveAgent(a *agent.Agent) {
	for _, r := range a.Relationships() {
		r.Progress(true)
		p.dropRelationship(r)
	}
	p.All.Remove(a)
	delete(p.byID, a.ID)
	for _, set := range p.partnerable {
		set.Remove(a)
	}
	for _, set := range p.sexPartners {
		set.Remove(a)
	}
	p.hooks.RemoveAgent(a)
	if p.Graph != nil {
		p.Graph.RemoveNode(a.ID)
	}
	a.Component = RemovedComponent
}

// AddRelationship forms a relationship between a1 and a2.
func (p *Population) AddRelationship(a1, a2 *agent.Agent, bond string, duration int) (*agent.Relationship, error) {
	r, err := agent.NewRelationship(p.nextRelID, a1, a2, bond, duration)
	if err != nil {
		return nil, err
	}
	p.nextRelID++
	p.insertRelationship(r)
	return r, nil
}

// RestoreRelationship re-forms a saved relationship keeping its id.
func (p *Population) RestoreRelationship(id int64, a1, a2 *agent.Agent, bond string, duration, totalSexActs int) (*agent.Relationship, error) {
	r, err := agent.NewRelationship(id, a1, a2, bond, duration)
	if err != nil {
		return nil, err
	}
	r.TotalSexActs = totalSexActs
	if id >= p.nextRelID {
		p.nextRelID = id + 1
	}
	p.insertRelationship(r)
	return r, nil
}

func (p *Population) insertRelationship(r *agent.Relationship) {
	p.Relationships.Add(r)
	if p.Graph != nil {
		p.Graph.AddEdge(r.Agent1.ID, r.Agent2.ID)
	}
	p.UpdatePartnerability(r.Agent1)
	p.UpdatePartnerability(r.Agent2)
}

// RemoveRelationship ends r immediately.
func (p *Population) RemoveRelationship(r *agent.Relationship) {
	r.Progress(true)
	p.dropRelationship(r)
}

// dropRelationship removes an already unbonded relationship from the
// population.
func (p *Population) dropRelationship(r *agent.Relationship) {
	if !p.Relationships.Remove(r) {
		return
	}
	if p.Graph != nil {
		p.Graph.RemoveEdge(r.Agent1.ID, r.Agent2.ID)
	}
	p.UpdatePartnerability(r.Agent1)
	p.UpdatePartnerability(r.Agent2)
}

// ProgressRelationships ages every relationship, dropping those that end.
func (p *Population) ProgressRelationships() {
	for _, r := range p.Relationships.Slice() {
		if r.Progress(false) {
			p.dropRelationship(r)
		}
	}
}

// UpdatePartnerability refreshes a's membership in the partnerable indices.
func (p *Population) UpdatePartnerability(a *agent.Agent) {
	if !p.All.Contains(a) {
		return
	}
	for _, b := range p.bondTypes {
		if a.Partnerable(b, p.buffer) {
			p.partnerable[b].Add(a)
		} else {
			p.partnerable[b].Remove(a)
		}
	}
}

// UpdatePartnerTargets re-draws every agent's target partner counts and ends
// the relationships of agents left above their new targets.
func (p *Population) UpdatePartnerTargets() {
	for _, a := range p.All.Members() {
		p.DrawTargets(a, p.NetDist)
		for _, b := range p.bondTypes {
			p.ShedExcess(a, b)
		}
	}
}

// ShedExcess ends a's oldest relationships in bond until a is back at its
// target partner count. It returns the number of relationships ended.
func (p *Population) ShedExcess(a *agent.Agent, bond string) int {
	ended := 0
	for _, r := range a.Relationships() {
		if a.Partners(bond).Len() <= a.TargetPartners[bond] {
			break
		}
		if r.BondType == bond {
			p.RemoveRelationship(r)
			ended++
		}
	}
	return ended
}

// DrawTargets re-draws a's target partner counts around its means.
func (p *Population) DrawTargets(a *agent.Agent, d *stochastic.Dist) {
	for _, b := range p.bondTypes {
		a.TargetPartners[b] = d.Poisson(a.MeanNumPartners[b])
	}
	p.UpdatePartnerability(a)
}

// UpdateComponents recomputes the connected components and labels every
// agent with the index of its component.
func (p *Population) UpdateComponents() {
	if p.Graph == nil {
		return
	}
	comps := p.Graph.Components()
	p.Components = make([][]*agent.Agent, 0, len(comps))
	for i, ids := range comps {
		label := strconv.Itoa(i)
		members := make([]*agent.Agent, 0, len(ids))
		for _, id := range ids {
			if a := p.byID[id]; a != nil {
				a.Component = label
				members = append(members, a)
			}
		}
		p.Components = append(p.Components, members)
	}
}

// Migrate moves each agent, with probability location.migration.prob, to a
// destination drawn from the migration table of its current location.
func (p *Population) Migrate(r *stochastic.Rand) error {
	prob := p.Params.Float("location.migration.prob")
	for _, a := range p.All.Members() {
		if !r.Bernoulli(prob) {
			continue
		}
		dest, err := p.Geography.Destination(r, a.Location)
		if err != nil {
			return err
		}
		a.Location = dest
	}
	return nil
}
