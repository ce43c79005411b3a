package features

import (
	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/population"
)

// Incar is incarceration. Incarcerated agents do not interact with their
// partners, and entering or leaving prison touches HIV testing and
// treatment.
type Incar struct {
	base
}

func (in *Incar) InitAgent(env *Env, a *agent.Agent) {
	if !env.Rand.Bernoulli(demo(env, a, "incar.init")) {
		return
	}
	bins := agentParams(env, a).BinsAt(population.DemographicPath(a) + ".incar.duration.init")
	in.jail(env, a, drawDuration(env, bins))
}

func (in *Incar) jail(env *Env, a *agent.Agent, duration int) {
	a.Incar.Active = true
	a.Incar.Ever = true
	a.Incar.Time = env.Time
	a.Incar.ReleaseTime = env.Time + max(duration, 1)
}

func (in *Incar) UpdateAgent(env *Env, a *agent.Agent) {
	t := env.Time
	if a.Incar.Active {
		if a.Incar.ReleaseTime <= t {
			in.release(env, a)
		}
		return
	}

	p := demo(env, a, "incar.prob") * env.Params.Float("calibration.incarceration")
	if a.HIV.Active {
		p *= env.Params.Float("incar.hiv.multiplier")
	}
	if !env.Rand.Bernoulli(p) {
		return
	}
	bins := agentParams(env, a).BinsAt(population.DemographicPath(a) + ".incar.duration.prob")
	in.jail(env, a, drawDuration(env, bins))
	env.Events.Agent("incarcerate", t, a.ID, map[string]any{"release_time": a.Incar.ReleaseTime})

	if !a.HIV.Active {
		return
	}
	if !a.HIV.Dx {
		if env.Rand.Bernoulli(env.Params.Float("incar.hiv.dx")) {
			in.reg.HIV.Diagnose(env, a)
		}
	} else if !a.HAART.Active && env.Rand.Bernoulli(env.Params.Float("incar.haart.prob")) {
		in.reg.HAART.Initiate(env, a, env.Rand.Bernoulli(env.Params.Float("incar.haart.adherence")))
	}
}

// release frees a. Treated agents may lose adherence on the way out.
func (in *Incar) release(env *Env, a *agent.Agent) {
	a.Incar.Active = false
	a.Incar.ReleaseTime = env.Time
	env.Events.Agent("release", env.Time, a.ID, nil)
	if a.HIV.Active && a.HAART.Active && env.Rand.Bernoulli(env.Params.Float("incar.haart.discontinue")) {
		a.HAART.Adherent = false
	}
}

func (in *Incar) StatKeys() []string { return []string{"incar", "new_release", "new_release_hiv"} }

func (in *Incar) SetStats(stats map[string]int, a *agent.Agent, t int) {
	inc(stats, "incar", a.Incar.Active)
	released := a.Incar.Ever && !a.Incar.Active && a.Incar.ReleaseTime == t
	inc(stats, "new_release", released)
	inc(stats, "new_release_hiv", released && a.HIV.Active)
}
