package features

import "github.com/titan-sim/titan/internal/agent"

// HAART is antiretroviral treatment of diagnosed HIV+ agents.
type HAART struct {
	base

	counts counter // agents on treatment by race and sex type
}

// Count returns the number of agents on treatment.
func (h *HAART) Count() int { return h.counts.total() }

func (h *HAART) InitAgent(env *Env, a *agent.Agent) {
	if !a.HIV.Active || !a.HIV.Dx {
		return
	}
	if env.Rand.Bernoulli(demo(env, a, "haart.init")) {
		setHAART(a, env.Time, env.Rand.Bernoulli(demo(env, a, "haart.adherence.init")))
	}
}

func setHAART(a *agent.Agent, t int, adherent bool) {
	a.HAART.Active = true
	a.HAART.Ever = true
	a.HAART.Time = t
	a.HAART.Adherent = adherent
}

func (h *HAART) UpdateAgent(env *Env, a *agent.Agent) {
	if !a.HIV.Active || !a.HIV.Dx {
		return
	}
	if a.HAART.Active {
		if env.Rand.Bernoulli(demo(env, a, "haart.discontinue")) {
			h.Discontinue(a)
		}
		return
	}
	if env.Params.Bool("haart.use_cap") && !h.underCap(env, a) {
		return
	}
	p := demo(env, a, "haart.prob") * env.Params.Float("calibration.haart.coverage")
	if env.Rand.Bernoulli(p) {
		h.Initiate(env, a, env.Rand.Bernoulli(demo(env, a, "haart.adherence.prob")))
	}
}

// underCap reports whether treatment coverage among diagnosed agents of a's
// race and sex type is below the demographic cap.
func (h *HAART) underCap(env *Env, a *agent.Agent) bool {
	dx := h.reg.HIV.DxCount(a.Race, a.SexType)
	if dx == 0 {
		return true
	}
	return float64(h.counts.get(a.Race, a.SexType))/float64(dx) < demo(env, a, "haart.cap")
}

// Initiate starts treatment.
func (h *HAART) Initiate(env *Env, a *agent.Agent, adherent bool) {
	if a.HAART.Active {
		return
	}
	setHAART(a, env.Time, adherent)
	h.counts.add(a.Race, a.SexType, 1)
}

// Discontinue stops treatment.
func (h *HAART) Discontinue(a *agent.Agent) {
	if !a.HAART.Active {
		return
	}
	a.HAART.Active = false
	a.HAART.Adherent = false
	h.counts.add(a.Race, a.SexType, -1)
}

// AIDSScale scales the per-step probability of progressing to AIDS.
func (h *HAART) AIDSScale(env *Env, a *agent.Agent) float64 {
	if !a.HAART.Active {
		return 1
	}
	if a.HAART.Adherent {
		return env.Params.Float("haart.aids_scale.adherent")
	}
	return env.Params.Float("haart.aids_scale.non_adherent")
}

func (h *HAART) TransmissionRiskMultiplier(env *Env, a *agent.Agent, _ string) float64 {
	if !a.HAART.Active {
		return 1
	}
	if a.HAART.Adherent {
		return env.Params.Float("haart.transmission.adherent")
	}
	return env.Params.Float("haart.transmission.non_adherent")
}

func (h *HAART) AddAgent(a *agent.Agent) {
	if a.HAART.Active {
		h.counts.add(a.Race, a.SexType, 1)
	}
}

func (h *HAART) RemoveAgent(a *agent.Agent) {
	if a.HAART.Active {
		h.counts.add(a.Race, a.SexType, -1)
	}
}

func (h *HAART) StatKeys() []string { return []string{"haart"} }

func (h *HAART) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "haart", a.HAART.Active)
}
