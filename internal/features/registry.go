package features

import (
	"log/slog"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/population"
)

// Registry holds every exposure and feature in hook order. Exposures come
// first, then features in the order haart, prep, vaccine, incar, high_risk,
// syringe_services, partner_tracing, random_trial, msmw, external_exposure.
//
// All components exist whether enabled or not, so features can call into
// each other (HIV conversion discontinues PrEP even with PrEP disabled) and
// counters stay consistent. Only enabled components receive InitAgent,
// UpdateAgent and UpdatePop.
type Registry struct {
	HIV       *HIV
	Knowledge *Knowledge
	MonkeyPox *MonkeyPox

	HAART            *HAART
	PrEP             *PrEP
	Vaccine          *Vaccine
	Incar            *Incar
	HighRisk         *HighRisk
	SyringeServices  *SyringeServices
	PartnerTracing   *PartnerTracing
	RandomTrial      *RandomTrial
	MSMW             *MSMW
	ExternalExposure *ExternalExposure

	exposures []Exposure
	features  []Feature
	enabled   map[string]bool
	reported  []Feature

	env *Env
}

// optional features only add report columns when enabled.
var optional = map[string]bool{
	"monkeypox":         true,
	"syringe_services":  true,
	"partner_tracing":   true,
	"msmw":              true,
	"external_exposure": true,
}

// NewRegistry builds the registry and marks components enabled from
// exposures.* and features.*.
func NewRegistry(p *params.Tree) *Registry {
	r := &Registry{enabled: make(map[string]bool)}
	r.HIV = &HIV{base: base{name: "hiv", reg: r}, dx: counter{}}
	r.Knowledge = &Knowledge{base: base{name: "knowledge", reg: r}}
	r.MonkeyPox = &MonkeyPox{base: base{name: "monkeypox", reg: r}}
	r.HAART = &HAART{base: base{name: "haart", reg: r}, counts: counter{}}
	r.PrEP = &PrEP{base: base{name: "prep", reg: r}, counts: map[string]int{}, totals: map[string]int{}}
	r.Vaccine = &Vaccine{base: base{name: "vaccine", reg: r}}
	r.Incar = &Incar{base: base{name: "incar", reg: r}}
	r.HighRisk = &HighRisk{base: base{name: "high_risk", reg: r}}
	r.SyringeServices = &SyringeServices{base: base{name: "syringe_services", reg: r}}
	r.PartnerTracing = &PartnerTracing{base: base{name: "partner_tracing", reg: r}}
	r.RandomTrial = &RandomTrial{base: base{name: "random_trial", reg: r}}
	r.MSMW = &MSMW{base: base{name: "msmw", reg: r}}
	r.ExternalExposure = &ExternalExposure{base: base{name: "external_exposure", reg: r}}

	for _, e := range []Exposure{r.HIV, r.Knowledge, r.MonkeyPox} {
		r.exposures = append(r.exposures, e)
		r.enabled[e.Name()] = p.Bool("exposures." + e.Name())
	}
	for _, f := range []Feature{
		r.HAART, r.PrEP, r.Vaccine, r.Incar, r.HighRisk, r.SyringeServices,
		r.PartnerTracing, r.RandomTrial, r.MSMW, r.ExternalExposure,
	} {
		r.features = append(r.features, f)
		r.enabled[f.Name()] = p.Bool("features." + f.Name())
	}
	for _, f := range r.all() {
		if !optional[f.Name()] || r.enabled[f.Name()] {
			r.reported = append(r.reported, f)
		}
	}
	return r
}

// Bind sets the environment used for hooks the population triggers.
func (r *Registry) Bind(env *Env) { r.env = env }

// Enabled reports whether the named exposure or feature is enabled.
func (r *Registry) Enabled(name string) bool { return r.enabled[name] }

func (r *Registry) all() []Feature {
	out := make([]Feature, 0, len(r.exposures)+len(r.features))
	for _, e := range r.exposures {
		out = append(out, e)
	}
	return append(out, r.features...)
}

// Exposures returns the enabled exposures in hook order.
func (r *Registry) Exposures() []Exposure {
	var out []Exposure
	for _, e := range r.exposures {
		if r.enabled[e.Name()] {
			out = append(out, e)
		}
	}
	return out
}

// Features returns the enabled features in hook order.
func (r *Registry) Features() []Feature {
	var out []Feature
	for _, f := range r.features {
		if r.enabled[f.Name()] {
			out = append(out, f)
		}
	}
	return out
}

// Exposure returns the named exposure whether or not it is enabled.
func (r *Registry) Exposure(name string) Exposure {
	for _, e := range r.exposures {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// InitAgent implements population.Hooks. Draws use the population's random
// sources so agent creation does not consume the model stream.
func (r *Registry) InitAgent(pop *population.Population, a *agent.Agent, t int) {
	env := Env{Params: pop.Params, Logger: pop.Logger}
	if r.env != nil {
		env = *r.env
	}
	env.Pop, env.Rand, env.Dist, env.Time = pop, pop.Rand, pop.Dist, t
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	for _, f := range r.all() {
		if r.enabled[f.Name()] {
			f.InitAgent(&env, a)
		}
	}
}

// AddAgent implements population.Hooks.
func (r *Registry) AddAgent(a *agent.Agent) {
	for _, f := range r.all() {
		f.AddAgent(a)
	}
}

// RemoveAgent implements population.Hooks.
func (r *Registry) RemoveAgent(a *agent.Agent) {
	for _, f := range r.all() {
		f.RemoveAgent(a)
	}
}

// UpdatePop runs the population-level hooks of enabled exposures, then
// features.
func (r *Registry) UpdatePop(env *Env) error {
	for _, f := range r.all() {
		if !r.enabled[f.Name()] {
			continue
		}
		if err := f.UpdatePop(env); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAgent runs the agent-level hooks of enabled exposures, then
// features.
func (r *Registry) UpdateAgent(env *Env, a *agent.Agent) {
	for _, f := range r.all() {
		if r.enabled[f.Name()] {
			f.UpdateAgent(env, a)
		}
	}
}

// RiskMultiplier is the product of the transmission multipliers of the
// infected agent and the acquisition multipliers of the susceptible one over
// the enabled features.
func (r *Registry) RiskMultiplier(env *Env, infected, susceptible *agent.Agent, interaction string) float64 {
	m := 1.0
	for _, f := range r.Features() {
		m *= f.TransmissionRiskMultiplier(env, infected, interaction)
		m *= f.AcquisitionRiskMultiplier(env, susceptible, interaction)
	}
	return m
}

// StatKeys lists the report counters in column order. Core components are
// always reported; optional ones only when enabled.
func (r *Registry) StatKeys() []string {
	var keys []string
	for _, f := range r.reported {
		keys = append(keys, f.StatKeys()...)
	}
	return keys
}

// SetStats adds a's contribution to stats.
func (r *Registry) SetStats(stats map[string]int, a *agent.Agent, t int) {
	for _, f := range r.reported {
		f.SetStats(stats, a, t)
	}
}
