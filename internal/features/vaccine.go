package features

import (
	"math"

	"github.com/titan-sim/titan/internal/agent"
)

// Vaccine is an HIV vaccine whose protection wanes with time since the last
// dose.
type Vaccine struct {
	base
}

func (v *Vaccine) InitAgent(env *Env, a *agent.Agent) {
	if a.HIV.Active || !env.Params.Bool("vaccine.on_init") {
		return
	}
	if env.Rand.Bernoulli(demo(env, a, "vaccine.init")) {
		vaccinate(a, env.Time)
	}
}

func vaccinate(a *agent.Agent, t int) {
	a.Vaccine.Active = true
	a.Vaccine.Ever = true
	a.Vaccine.Time = t
}

func (v *Vaccine) UpdateAgent(env *Env, a *agent.Agent) {
	if a.HIV.Active {
		return
	}
	t := env.Time
	if a.Vaccine.Active {
		if env.Params.Bool("vaccine.booster.enable") &&
			t-a.Vaccine.Time == env.Params.Int("vaccine.booster.interval") &&
			env.Rand.Bernoulli(env.Params.Float("vaccine.booster.prob")) {
			vaccinate(a, t)
		}
		return
	}
	if t == env.Params.Int("vaccine.start_time") && env.Rand.Bernoulli(demo(env, a, "vaccine.prob")) {
		vaccinate(a, t)
	}
}

// AcquisitionRiskMultiplier applies to sex once the dose has taken.
func (v *Vaccine) AcquisitionRiskMultiplier(env *Env, a *agent.Agent, interaction string) float64 {
	if !a.Vaccine.Active || interaction != "sex" || env.Time <= a.Vaccine.Time {
		return 1
	}
	months := float64(env.Time-a.Vaccine.Time) * 12 / float64(env.StepsPerYear())
	var m float64
	switch env.Params.String("vaccine.type") {
	case "HVTN702":
		m = math.Exp(-2.88 + 0.76*math.Log(months+0.001))
	case "RV144":
		m = math.Exp(-2.40 + 0.76*math.Log(months))
	default:
		m = 1 - env.Params.Float("vaccine.efficacy")
	}
	return math.Min(math.Max(m, 0), 1)
}

func (v *Vaccine) StatKeys() []string { return []string{"vaccine"} }

func (v *Vaccine) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "vaccine", a.Vaccine.Active)
}
