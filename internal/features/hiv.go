package features

import (
	"github.com/titan-sim/titan/internal/agent"
)

// HIV is the HIV exposure: infection, diagnosis and progression to AIDS.
type HIV struct {
	base

	active int
	dx     counter // diagnosed agents by race and sex type
}

// Active returns the number of HIV+ agents in the population.
func (h *HIV) Active() int { return h.active }

// DxCount returns the number of diagnosed agents of a race and sex type.
func (h *HIV) DxCount(race, sexType string) int { return h.dx.get(race, sexType) }

// DxTotal returns the number of diagnosed agents.
func (h *HIV) DxTotal() int { return h.dx.total() }

func (h *HIV) StartTime(env *Env) int { return env.Params.Int("hiv.start_time") }

func (h *HIV) Transmits(interaction string) bool {
	return interaction == "sex" || interaction == "injection"
}

func (h *HIV) Infected(a *agent.Agent) bool  { return a.HIV.Active }
func (h *HIV) Diagnosed(a *agent.Agent) bool { return a.HIV.Dx }
func (h *HIV) DxTime(a *agent.Agent) int     { return a.HIV.DxTime }

func (h *HIV) InitAgent(env *Env, a *agent.Agent) {
	t := env.Time
	if t < h.StartTime(env) || !env.Rand.Bernoulli(demo(env, a, "hiv.init")) {
		return
	}
	a.HIV.Active = true
	a.HIV.Time = env.Rand.IntRange(t-env.Params.Int("hiv.max_init_time"), t)
	if env.Rand.Bernoulli(demo(env, a, "hiv.aids.init")) {
		a.HIV.AIDS = true
	}
	if env.Rand.Bernoulli(demo(env, a, "hiv.dx.init")) {
		a.HIV.Dx = true
		a.HIV.DxTime = env.Rand.IntRange(a.HIV.Time, t)
	}
}

func (h *HIV) UpdateAgent(env *Env, a *agent.Agent) {
	if env.Time < h.StartTime(env) || !a.HIV.Active {
		return
	}
	if !a.HIV.Dx {
		p := demo(env, a, "hiv.dx.prob") * env.Params.Float("calibration.test_frequency")
		if env.Rand.Bernoulli(p) {
			h.Diagnose(env, a)
		}
	}
	h.progressToAIDS(env, a)
}

func (h *HIV) progressToAIDS(env *Env, a *agent.Agent) {
	if a.HIV.AIDS {
		return
	}
	p := env.Params.Float("hiv.aids.prob") * h.reg.HAART.AIDSScale(env, a)
	if env.Rand.Bernoulli(p) {
		a.HIV.AIDS = true
	}
}

// Convert infects a. Conversion ends any vaccination and forces PrEP
// discontinuation.
func (h *HIV) Convert(env *Env, a *agent.Agent) {
	if a.HIV.Active {
		return
	}
	a.HIV.Active = true
	a.HIV.Time = env.Time
	a.Vaccine.Active = false
	h.active++
	if a.PrEP.Active {
		h.reg.PrEP.Discontinue(a)
	}
	env.Events.Agent("hiv_convert", env.Time, a.ID, nil)
}

// Diagnose marks a as diagnosed at the current step.
func (h *HIV) Diagnose(env *Env, a *agent.Agent) {
	if a.HIV.Dx {
		return
	}
	a.HIV.Dx = true
	a.HIV.DxTime = env.Time
	h.dx.add(a.Race, a.SexType, 1)
	env.Events.Agent("hiv_diagnose", env.Time, a.ID, nil)
}

// TransmissionProbability is the probability that infected passes HIV to
// partner over numActs acts of interaction.
func (h *HIV) TransmissionProbability(env *Env, interaction string, infected, partner *agent.Agent, numActs int) float64 {
	var p float64
	switch interaction {
	case "injection":
		p = env.Params.Float("partnership.injection.transmission.base")
	case "sex":
		p = env.Params.Float("partnership.sex.acquisition." + partner.SexType + "." + effectiveRole(infected.SexRole, partner.SexRole))
	default:
		return 0
	}

	p *= h.reg.RiskMultiplier(env, infected, partner, interaction)
	if env.Time-infected.HIV.Time <= env.Params.Int("hiv.acute.duration") {
		p *= env.Params.Float("hiv.acute.infectivity")
	}
	if infected.HIV.Dx {
		p *= 1 - env.Params.Float("hiv.dx.risk_reduction."+interaction)
	}
	p *= agentParams(env, partner).Float("demographics." + partner.Race + ".hiv.transmission")
	p *= env.Params.Float("calibration.acquisition")
	return cumulative(p, numActs)
}

// effectiveRole is the role the partner takes against the agent: a versatile
// partner takes the opposite of a fixed role, and two versatile agents stay
// versatile.
func effectiveRole(agentRole, partnerRole string) string {
	if partnerRole != "versatile" {
		return partnerRole
	}
	switch agentRole {
	case "insertive":
		return "receptive"
	case "receptive":
		return "insertive"
	}
	return "versatile"
}

// Expose draws HIV transmission across a serodiscordant relationship.
func (h *HIV) Expose(env *Env, interaction string, rel *agent.Relationship, numActs int) error {
	infected, partner, ok := discordant(rel, h.Infected)
	if !ok {
		return nil
	}
	if env.Rand.Bernoulli(h.TransmissionProbability(env, interaction, infected, partner, numActs)) {
		h.Convert(env, partner)
	}
	return nil
}

func (h *HIV) AddAgent(a *agent.Agent) {
	if a.HIV.Active {
		h.active++
	}
	if a.HIV.Dx {
		h.dx.add(a.Race, a.SexType, 1)
	}
}

func (h *HIV) RemoveAgent(a *agent.Agent) {
	if a.HIV.Active {
		h.active--
	}
	if a.HIV.Dx {
		h.dx.add(a.Race, a.SexType, -1)
	}
}

func (h *HIV) StatKeys() []string {
	return []string{"hiv", "hiv_new", "hiv_aids", "hiv_dx", "hiv_dx_new"}
}

func (h *HIV) SetStats(stats map[string]int, a *agent.Agent, t int) {
	if !a.HIV.Active {
		return
	}
	stats["hiv"]++
	inc(stats, "hiv_new", a.HIV.Time == t)
	inc(stats, "hiv_aids", a.HIV.AIDS)
	inc(stats, "hiv_dx", a.HIV.Dx)
	inc(stats, "hiv_dx_new", a.HIV.Dx && a.HIV.DxTime == t)
}

// discordant orders a relationship as (carrier, susceptible) for an exposure.
func discordant(rel *agent.Relationship, infected func(*agent.Agent) bool) (*agent.Agent, *agent.Agent, bool) {
	i1, i2 := infected(rel.Agent1), infected(rel.Agent2)
	switch {
	case i1 && !i2:
		return rel.Agent1, rel.Agent2, true
	case i2 && !i1:
		return rel.Agent2, rel.Agent1, true
	}
	return nil, nil, false
}

// Discordant reports whether exactly one end of rel carries e.
func Discordant(e Exposure, rel *agent.Relationship) bool {
	_, _, ok := discordant(rel, e.Infected)
	return ok
}
