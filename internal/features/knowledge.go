package features

import (
	"fmt"

	"github.com/titan-sim/titan/internal/agent"
)

// Knowledge is awareness of a prevention program (PrEP by default) spreading
// through peer contact. Every agent carries an opinion score; aware agents
// with a high enough opinion may take up the program.
type Knowledge struct {
	base

	aware int
}

// Aware returns the number of aware agents.
func (k *Knowledge) Aware() int { return k.aware }

func (k *Knowledge) StartTime(env *Env) int { return env.Params.Int("knowledge.start_time") }

func (k *Knowledge) Transmits(interaction string) bool { return interaction == "pca" }

func (k *Knowledge) Infected(a *agent.Agent) bool { return a.Knowledge.Active }

func (k *Knowledge) InitAgent(env *Env, a *agent.Agent) {
	if env.Rand.Bernoulli(demo(env, a, "knowledge.init")) {
		a.Knowledge.Active = true
		a.Knowledge.Time = env.Time
	}
	dist := env.Params.DistributionAt("knowledge.opinion.init")
	if dist.DistType == "" {
		return
	}
	opinion, err := env.Dist.Sample(dist)
	if err != nil {
		env.Logger.Warn("opinion draw failed", "agent", a.ID, "error", err)
		return
	}
	a.Knowledge.Opinion = opinion
}

func (k *Knowledge) UpdateAgent(env *Env, a *agent.Agent) {
	if env.Time < k.StartTime(env) || a.Knowledge.Active {
		return
	}
	if env.Rand.Bernoulli(demo(env, a, "knowledge.prob")) {
		k.Convert(env, a)
	}
}

// Convert makes a aware. Agents whose opinion clears the threshold may take
// up the linked feature.
func (k *Knowledge) Convert(env *Env, a *agent.Agent) {
	if a.Knowledge.Active {
		return
	}
	a.Knowledge.Active = true
	a.Knowledge.Time = env.Time
	k.aware++

	if a.Knowledge.Opinion <= env.Params.Float("knowledge.opinion.threshold") {
		return
	}
	if env.Params.String("knowledge.feature.name") != "prep" || !k.reg.Enabled("prep") {
		return
	}
	if env.Rand.Bernoulli(env.Params.Float("knowledge.feature.prob")) && k.reg.PrEP.Eligible(env, a) {
		k.reg.PrEP.Initiate(env, a, true)
	}
}

// TransmissionProbability is the probability that a peer-change contact of
// numActs acts spreads knowledge (one agent aware) or opinion (both aware).
func (k *Knowledge) TransmissionProbability(env *Env, rel *agent.Relationship, numActs int) float64 {
	p := env.Params.Float("partnership.pca.knowledge.prob")
	if rel.Agent1.Knowledge.Active && rel.Agent2.Knowledge.Active {
		p = env.Params.Float("partnership.pca.opinion.prob")
	}
	return cumulative(p, numActs)
}

// Expose resolves a peer-change contact. It needs the partnership graph.
func (k *Knowledge) Expose(env *Env, interaction string, rel *agent.Relationship, numActs int) error {
	if env.Pop == nil || env.Pop.Graph == nil {
		return fmt.Errorf("knowledge exposure: %w", ErrGraphRequired)
	}
	a1, a2 := rel.Agent1, rel.Agent2
	if !a1.Knowledge.Active && !a2.Knowledge.Active {
		return nil
	}
	if !env.Rand.Bernoulli(k.TransmissionProbability(env, rel, numActs)) {
		return nil
	}
	switch {
	case a1.Knowledge.Active && a2.Knowledge.Active:
		influenceOpinion(a1, a2)
	case a1.Knowledge.Active:
		k.Convert(env, a2)
	default:
		k.Convert(env, a1)
	}
	return nil
}

// influenceOpinion moves the lower opinion one step toward the higher one.
func influenceOpinion(a1, a2 *agent.Agent) {
	hi, lo := a1, a2
	if lo.Knowledge.Opinion > hi.Knowledge.Opinion {
		hi, lo = lo, hi
	}
	if hi.Knowledge.Opinion == lo.Knowledge.Opinion {
		return
	}
	lo.Knowledge.Opinion = min(lo.Knowledge.Opinion+1, hi.Knowledge.Opinion)
}

func (k *Knowledge) AddAgent(a *agent.Agent) {
	if a.Knowledge.Active {
		k.aware++
	}
}

func (k *Knowledge) RemoveAgent(a *agent.Agent) {
	if a.Knowledge.Active {
		k.aware--
	}
}

func (k *Knowledge) StatKeys() []string { return []string{"knowledge_aware"} }

func (k *Knowledge) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "knowledge_aware", a.Knowledge.Active)
}
