package features

import "github.com/titan-sim/titan/internal/agent"

// HighRisk raises an agent's partnering for a while. Agents enter it at
// initialization, when a partner is incarcerated, and on their own release.
type HighRisk struct {
	base

	count int
}

// Count returns the number of high-risk agents.
func (h *HighRisk) Count() int { return h.count }

func (h *HighRisk) InitAgent(env *Env, a *agent.Agent) {
	if !env.Rand.Bernoulli(demo(env, a, "high_risk.init")) {
		return
	}
	a.HighRisk.Active = true
	a.HighRisk.Ever = true
	a.HighRisk.Time = env.Time
	a.HighRisk.Duration = int(demo(env, a, "high_risk.duration"))
	h.scalePartners(env, a, 1)
}

// BecomeHighRisk starts a high-risk period of duration steps, or of the
// demographic duration when duration is 0.
func (h *HighRisk) BecomeHighRisk(env *Env, a *agent.Agent, duration int) {
	if duration <= 0 {
		duration = int(demo(env, a, "high_risk.duration"))
	}
	if !a.HighRisk.Ever {
		env.Events.Agent("new_hr", env.Time, a.ID, nil)
	}
	if !a.HighRisk.Active {
		h.count++
		h.scalePartners(env, a, 1)
	}
	a.HighRisk.Active = true
	a.HighRisk.Ever = true
	a.HighRisk.Time = env.Time
	a.HighRisk.Duration = duration
}

// scalePartners adds sign*high_risk.partner_scale to a's mean partner count
// in each high-risk bond type and re-draws the targets.
func (h *HighRisk) scalePartners(env *Env, a *agent.Agent, sign float64) {
	scale := env.Params.Float("high_risk.partner_scale")
	for _, b := range env.Params.Strings("high_risk.partnership_types") {
		a.MeanNumPartners[b] = max(a.MeanNumPartners[b]+sign*scale, 0)
	}
	if env.Pop != nil {
		env.Pop.DrawTargets(a, env.Dist)
	}
}

func (h *HighRisk) UpdateAgent(env *Env, a *agent.Agent) {
	t := env.Time
	if a.Incar.Active && a.Incar.Time == t {
		for _, b := range env.Params.Strings("high_risk.partnership_types") {
			for _, partner := range a.Partners(b).Slice() {
				if !partner.HighRisk.Active {
					h.BecomeHighRisk(env, partner, 0)
				}
			}
		}
	}
	if a.Incar.Ever && !a.Incar.Active && a.Incar.ReleaseTime == t {
		h.BecomeHighRisk(env, a, 0)
		return
	}
	if !a.HighRisk.Active || a.HighRisk.Time == t {
		return
	}
	a.HighRisk.Duration--
	if a.HighRisk.Duration > 0 {
		return
	}
	h.expire(env, a)
}

// expire ends the high-risk period, lowering the partner targets and ending
// relationships above them.
func (h *HighRisk) expire(env *Env, a *agent.Agent) {
	a.HighRisk.Active = false
	a.HighRisk.Duration = 0
	h.count--
	h.scalePartners(env, a, -1)
	if env.Pop == nil || env.Params.Bool("features.static_network") {
		return
	}
	for _, b := range env.Params.Strings("high_risk.partnership_types") {
		env.Pop.ShedExcess(a, b)
	}
}

func (h *HighRisk) AddAgent(a *agent.Agent) {
	if a.HighRisk.Active {
		h.count++
	}
}

func (h *HighRisk) RemoveAgent(a *agent.Agent) {
	if a.HighRisk.Active {
		h.count--
	}
}

func (h *HighRisk) StatKeys() []string {
	return []string{
		"high_risk_new", "high_risk_new_hiv", "high_risk_new_aids",
		"high_risk_new_dx", "high_risk_new_haart",
	}
}

func (h *HighRisk) SetStats(stats map[string]int, a *agent.Agent, t int) {
	if !a.HighRisk.Active || a.HighRisk.Time != t {
		return
	}
	stats["high_risk_new"]++
	inc(stats, "high_risk_new_hiv", a.HIV.Active)
	inc(stats, "high_risk_new_aids", a.HIV.AIDS)
	inc(stats, "high_risk_new_dx", a.HIV.Dx)
	inc(stats, "high_risk_new_haart", a.HAART.Active)
}
