package features

import "github.com/titan-sim/titan/internal/agent"

// MSMW marks men who also have sex with men outside the modelled network;
// they acquire HIV from that outside contact.
type MSMW struct {
	base
}

func (m *MSMW) InitAgent(env *Env, a *agent.Agent) {
	if env.Rand.Bernoulli(demo(env, a, "msmw.prob")) {
		a.MSMW.Active = true
	}
}

func (m *MSMW) UpdateAgent(env *Env, a *agent.Agent) {
	if !a.MSMW.Active || a.HIV.Active || env.Time < m.reg.HIV.StartTime(env) {
		return
	}
	if env.Rand.Bernoulli(demo(env, a, "msmw.hiv.prob")) {
		m.reg.HIV.Convert(env, a)
	}
}

func (m *MSMW) StatKeys() []string { return []string{"msmw"} }

func (m *MSMW) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "msmw", a.MSMW.Active)
}

// ExternalExposure models partnerships outside the population: each step an
// agent is exposed with its demographic risk and, if exposed, acquires HIV
// with the demographic infection probability.
type ExternalExposure struct {
	base
}

func (e *ExternalExposure) UpdateAgent(env *Env, a *agent.Agent) {
	t := env.Time
	if t < env.Params.Int("external_exposure.start_time") || a.Incar.Active {
		a.ExternalExposure.Active = false
		return
	}
	if !env.Rand.Bernoulli(demo(env, a, "external_exposure.risk")) {
		a.ExternalExposure.Active = false
		return
	}
	a.ExternalExposure.Active = true
	a.ExternalExposure.Time = t
	if !a.HIV.Active && env.Rand.Bernoulli(demo(env, a, "external_exposure.infection_prob")) {
		e.reg.HIV.Convert(env, a)
	}
}

func (e *ExternalExposure) StatKeys() []string { return []string{"external_exposure"} }

func (e *ExternalExposure) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "external_exposure", a.ExternalExposure.Active)
}
