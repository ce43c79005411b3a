package interactions

import (
	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
)

// Sex resolves sex acts. The act count is Poisson around the bond's
// frequency draw; condom use then removes safe acts and the rest are passed
// to every discordant exposure.
type Sex struct {
	features *features.Registry
}

func (s *Sex) Name() string { return "sex" }

func (s *Sex) Interact(env *features.Env, rel *agent.Relationship) error {
	exposures := transmitting(env, s.features, "sex", rel)
	if len(exposures) == 0 {
		return nil
	}

	perStep, err := actCount(env, "partnership.sex.frequency."+rel.BondType)
	if err != nil {
		return err
	}
	total := env.Dist.Poisson(float64(perStep) * env.Params.Float("calibration.sex.act"))
	if total == 0 {
		return nil
	}

	unsafe := env.Dist.Binomial(total, 1-s.safeProb(env, rel))
	if unsafe == 0 {
		return nil
	}
	rel.TotalSexActs += unsafe
	for _, e := range exposures {
		if err := e.Expose(env, "sex", rel, unsafe); err != nil {
			return err
		}
	}
	return nil
}

// safeProb is the per-act condom use probability, raised when either partner
// knows of an HIV diagnosis.
func (s *Sex) safeProb(env *features.Env, rel *agent.Relationship) float64 {
	p := demo(env, rel.Agent1, "safe_sex."+rel.BondType+".prob")
	if eitherDiagnosed(rel) {
		p = 1 - (1-p)*(1-env.Params.Float("hiv.dx.risk_reduction.sex"))
	}
	return min(max(p, 0), 1)
}
