package features

import "github.com/titan-sim/titan/internal/agent"

// PartnerTracing follows up the partners of newly diagnosed agents and gives
// them an extra chance of diagnosis while the trace lasts.
type PartnerTracing struct {
	base
}

// exposure returns the tracked exposure, or nil when it has no diagnosis.
func (pt *PartnerTracing) exposure(env *Env) Diagnosable {
	d, _ := pt.reg.Exposure(env.Params.String("partner_tracing.exposure")).(Diagnosable)
	return d
}

// UpdatePop traces the partners of agents diagnosed in the previous step.
func (pt *PartnerTracing) UpdatePop(env *Env) error {
	t := env.Time
	if t < env.Params.Int("partner_tracing.start_time") || t >= env.Params.Int("partner_tracing.stop_time") {
		return nil
	}
	exp := pt.exposure(env)
	if exp == nil {
		return nil
	}
	prob := env.Params.Float("partner_tracing.prob")
	bonds := env.Params.Strings("partner_tracing.bond_type")
	for a := range env.Pop.All.All() {
		if !exp.Diagnosed(a) || exp.DxTime(a) != t-1 {
			continue
		}
		for _, b := range bonds {
			for partner := range a.Partners(b).All() {
				if partner.PartnerTracing.Active || exp.Diagnosed(partner) {
					continue
				}
				if env.Rand.Bernoulli(prob) {
					partner.PartnerTracing.Active = true
					partner.PartnerTracing.Time = t
				}
			}
		}
	}
	return nil
}

func (pt *PartnerTracing) UpdateAgent(env *Env, a *agent.Agent) {
	if !a.PartnerTracing.Active {
		return
	}
	if env.Time-a.PartnerTracing.Time >= env.Params.Int("partner_tracing.trace_duration") {
		a.PartnerTracing.Active = false
		return
	}
	exp := pt.exposure(env)
	if exp == nil || !exp.Infected(a) || exp.Diagnosed(a) {
		return
	}
	if env.Rand.Bernoulli(env.Params.Float("partner_tracing.dx_prob")) {
		exp.Diagnose(env, a)
	}
}

func (pt *PartnerTracing) StatKeys() []string { return []string{"partner_traced"} }

func (pt *PartnerTracing) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "partner_traced", a.PartnerTracing.Active)
}
