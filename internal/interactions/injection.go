package interactions

import (
	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
)

// Injection resolves needle sharing between two PWID.
type Injection struct {
	features *features.Registry
}

func (i *Injection) Name() string { return "injection" }

func (i *Injection) Interact(env *features.Env, rel *agent.Relationship) error {
	if !rel.Agent1.IsPWID() || !rel.Agent2.IsPWID() {
		return nil
	}
	exposures := transmitting(env, i.features, "injection", rel)
	if len(exposures) == 0 {
		return nil
	}

	mean := demo(env, rel.Agent1, "injection.num_acts") * env.Params.Float("calibration.injection.act")
	shared := env.Dist.Poisson(mean)
	if shared == 0 {
		return nil
	}
	unsafe := env.Dist.Binomial(shared, i.unsafeProb(env, rel))
	if unsafe == 0 {
		return nil
	}
	for _, e := range exposures {
		if err := e.Expose(env, "injection", rel, unsafe); err != nil {
			return err
		}
	}
	return nil
}

// unsafeProb is the probability that one shared injection is unsafe. Agents
// enrolled in syringe services share at the program's risk.
func (i *Injection) unsafeProb(env *features.Env, rel *agent.Relationship) float64 {
	if i.features.Enabled("syringe_services") &&
		(rel.Agent1.SyringeServices.Active || rel.Agent2.SyringeServices.Active) {
		return i.features.SyringeServices.EnrolledRisk()
	}
	p := demo(env, rel.Agent1, "injection.unsafe_prob")
	if eitherDiagnosed(rel) {
		p *= 1 - env.Params.Float("hiv.dx.risk_reduction.injection")
	}
	return min(max(p, 0), 1)
}
