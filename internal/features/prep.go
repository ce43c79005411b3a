package features

import (
	"math"
	"slices"

	"github.com/titan-sim/titan/internal/agent"
)

// injRiskSlope converts injectable PrEP drug load into a relative risk.
const injRiskSlope = 5.528636721

// PrEP is pre-exposure prophylaxis, oral or long-acting injectable.
type PrEP struct {
	base

	counts map[string]int // enrolled agents by race
	totals map[string]int // all agents by race
}

// Count returns the number of enrolled agents.
func (p *PrEP) Count() int {
	n := 0
	for _, c := range p.counts {
		n += c
	}
	return n
}

// Eligible reports whether a is HIV-negative, not enrolled and matches at
// least one of prep.target_model.
func (p *PrEP) Eligible(env *Env, a *agent.Agent) bool {
	if a.HIV.Active || a.PrEP.Active {
		return false
	}
	for _, model := range env.Params.Strings("prep.target_model") {
		if p.matches(env, model, a) {
			return true
		}
	}
	return false
}

func (p *PrEP) matches(env *Env, model string, a *agent.Agent) bool {
	switch model {
	case "Allcomers":
		return true
	case "Racial":
		return a.Race == env.Params.String("prep.target_race")
	case "cdc_women":
		if gender(env, a) != "F" {
			return false
		}
		for _, partner := range sexPartners(env, a) {
			if partner.IsPWID() || partner.MSMW.Active || partner.HIV.Dx {
				return true
			}
		}
		return false
	case "cdc_msm":
		if gender(env, a) != "M" {
			return false
		}
		partners := sexPartners(env, a)
		msm := false
		for _, partner := range partners {
			if gender(env, partner) == "M" {
				msm = true
			}
		}
		if !msm {
			return false
		}
		if len(partners) > 1 {
			return true
		}
		return slices.ContainsFunc(partners, func(q *agent.Agent) bool { return q.HIV.Dx })
	case "pwid":
		return a.IsPWID()
	case "pwid_sex":
		return a.IsPWID() && len(sexPartners(env, a)) > 0
	case "ssp":
		return a.SyringeServices.Active
	case "ssp_sex":
		return a.SyringeServices.Active && len(sexPartners(env, a)) > 0
	case "top_partners":
		return a.NumPartners() >= env.Params.Int("prep.top_partners")
	}
	return false
}

func gender(env *Env, a *agent.Agent) string {
	return env.Params.String("classes.sex_types." + a.SexType + ".gender")
}

// sexPartners returns a's partners across bond types that allow sex.
func sexPartners(env *Env, a *agent.Agent) []*agent.Agent {
	var out []*agent.Agent
	for _, r := range a.Relationships() {
		if env.Pop != nil && env.Pop.BondAllows(r.BondType, "sex") {
			out = append(out, r.Partner(a))
		}
	}
	return out
}

func (p *PrEP) UpdateAgent(env *Env, a *agent.Agent) {
	if env.Time < env.Params.Int("prep.start_time") || a.HIV.Active {
		return
	}
	if a.PrEP.Active {
		p.progress(env, a)
		return
	}
	if p.Eligible(env, a) {
		p.Initiate(env, a, false)
	}
}

// progress applies discontinuation and, for injectable PrEP, drug decay.
// Injectable users who stop re-dosing drop out one year after the last dose.
func (p *PrEP) progress(env *Env, a *agent.Agent) {
	stop := env.Rand.Bernoulli(demo(env, a, "prep.discontinue"))
	if a.PrEP.Type != "Inj" {
		if stop {
			p.Discontinue(a)
		}
		return
	}
	if a.PrEP.Adherent && !stop {
		a.PrEP.LastDose = 0
		a.PrEP.Load = env.Params.Float("prep.peak_load")
		return
	}
	a.PrEP.Adherent = false
	a.PrEP.LastDose++
	a.PrEP.Load = injLoad(env, a.PrEP.LastDose)
	if a.PrEP.LastDose > env.StepsPerYear() {
		p.Discontinue(a)
	}
}

// injLoad is the drug load lastDose steps after an injection.
func injLoad(env *Env, lastDose int) float64 {
	years := float64(lastDose) / float64(env.StepsPerYear())
	halfLife := env.Params.Float("prep.half_life") / 365
	if halfLife <= 0 {
		return 0
	}
	return env.Params.Float("prep.peak_load") * math.Pow(0.5, years/halfLife)
}

// Initiate enrolls a. Unless force is set, enrollment is limited by
// prep.target: as a per-agent probability when prep.cap_as_prob, otherwise as
// a cap on coverage within a's race.
func (p *PrEP) Initiate(env *Env, a *agent.Agent, force bool) {
	if a.PrEP.Active || a.HIV.Active {
		return
	}
	if !force {
		target := env.Params.Float("prep.target") * env.Params.Float("calibration.prep.coverage")
		if env.Params.Bool("prep.cap_as_prob") {
			if !env.Rand.Bernoulli(target) {
				return
			}
		} else if total := p.totals[a.Race]; total == 0 || float64(p.counts[a.Race]) >= target*float64(total) {
			return
		}
	}
	p.enroll(env, a)
}

func (p *PrEP) enroll(env *Env, a *agent.Agent) {
	types := env.Params.Strings("prep.type")
	kind := "Oral"
	switch {
	case slices.Contains(types, "Oral") && slices.Contains(types, "Inj"):
		if env.Rand.Bernoulli(env.Params.Float("prep.lai.prob")) {
			kind = "Inj"
		}
	case slices.Contains(types, "Inj"):
		kind = "Inj"
	}

	a.PrEP.Active = true
	a.PrEP.Ever = true
	a.PrEP.Time = env.Time
	a.PrEP.Type = kind
	a.PrEP.Adherent = env.Rand.Bernoulli(demo(env, a, "prep.adherence"))
	if kind == "Inj" {
		a.PrEP.Load = env.Params.Float("prep.peak_load")
		a.PrEP.LastDose = 0
	}
	p.counts[a.Race]++
	env.Events.Agent("prep_enroll", env.Time, a.ID, map[string]any{"type": kind})
}

// Discontinue ends enrollment.
func (p *PrEP) Discontinue(a *agent.Agent) {
	if !a.PrEP.Active {
		return
	}
	a.PrEP.Active = false
	a.PrEP.Adherent = false
	a.PrEP.Type = ""
	a.PrEP.Load = 0
	a.PrEP.LastDose = 0
	p.counts[a.Race]--
}

func (p *PrEP) AcquisitionRiskMultiplier(env *Env, a *agent.Agent, interaction string) float64 {
	if !a.PrEP.Active || (interaction != "sex" && interaction != "injection") {
		return 1
	}
	if a.PrEP.Type == "Inj" {
		return math.Exp(-injRiskSlope * a.PrEP.Load)
	}
	if a.PrEP.Adherent {
		return 1 - env.Params.Float("prep.efficacy.adherent")
	}
	return 1 - env.Params.Float("prep.efficacy.non_adherent")
}

func (p *PrEP) AddAgent(a *agent.Agent) {
	p.totals[a.Race]++
	if a.PrEP.Active {
		p.counts[a.Race]++
	}
}

func (p *PrEP) RemoveAgent(a *agent.Agent) {
	p.totals[a.Race]--
	if a.PrEP.Active {
		p.counts[a.Race]--
	}
}

func (p *PrEP) StatKeys() []string { return []string{"prep", "prep_new"} }

func (p *PrEP) SetStats(stats map[string]int, a *agent.Agent, t int) {
	if !a.PrEP.Active {
		return
	}
	stats["prep"]++
	inc(stats, "prep_new", a.PrEP.Time == t)
}
