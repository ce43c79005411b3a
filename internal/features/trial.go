package features

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/population"
	"github.com/titan-sim/titan/internal/stochastic"
)

// RandomTrial is a one-shot cluster-randomized trial: at
// random_trial.start_time each connected component joins the trial with
// random_trial.prob, and agents chosen by random_trial.choice receive the
// treatment.
type RandomTrial struct {
	base
}

func (rt *RandomTrial) UpdatePop(env *Env) error {
	if env.Time != env.Params.Int("random_trial.start_time") {
		return nil
	}
	pop := env.Pop
	if pop.Graph == nil {
		return fmt.Errorf("random trial: %w", ErrGraphRequired)
	}
	pop.UpdateComponents()

	choice := env.Params.String("random_trial.choice")
	treatment := env.Params.String("random_trial.treatment")
	var bridges map[int64]bool
	if choice == "bridge" {
		bridges = make(map[int64]bool)
		for _, e := range pop.Graph.Bridges() {
			bridges[e[0]], bridges[e[1]] = true, true
		}
	}

	prob := env.Params.Float("random_trial.prob")
	arms := 0
	for _, comp := range pop.Components {
		if !env.Rand.Bernoulli(prob) {
			continue
		}
		arms++
		for _, a := range comp {
			a.RandomTrial.Active = true
			a.RandomTrial.Suitable = rt.suitable(env, treatment, a)
		}
		for _, a := range rt.choose(env, choice, comp, bridges) {
			rt.treat(env, treatment, a)
		}
	}
	env.Logger.Debug("random trial assigned", "components", len(pop.Components), "arms", arms, "choice", choice)
	return nil
}

func (rt *RandomTrial) suitable(env *Env, treatment string, a *agent.Agent) bool {
	switch treatment {
	case "prep":
		return rt.reg.PrEP.Eligible(env, a)
	case "knowledge":
		return !a.Knowledge.Active
	}
	return false
}

// choose picks the agents of a component to treat, preferring suitable ones.
func (rt *RandomTrial) choose(env *Env, choice string, comp []*agent.Agent, bridges map[int64]bool) []*agent.Agent {
	suitable := func(a *agent.Agent) bool { return a.RandomTrial.Suitable }
	switch choice {
	case "all":
		return slices.DeleteFunc(slices.Clone(comp), func(a *agent.Agent) bool { return !suitable(a) })
	case "eigenvector":
		ids := make([]int64, len(comp))
		for i, a := range comp {
			ids[i] = a.ID
		}
		scores := env.Pop.Graph.EigenvectorCentrality(ids, population.DefaultCentralityConfig())
		ranked := slices.Clone(comp)
		slices.SortStableFunc(ranked, func(a, b *agent.Agent) int {
			return cmp.Compare(scores[b.ID], scores[a.ID])
		})
		if i := slices.IndexFunc(ranked, suitable); i >= 0 {
			return ranked[i : i+1]
		}
		return ranked[:1]
	case "bridge":
		var onBridge []*agent.Agent
		for _, a := range comp {
			if bridges[a.ID] {
				onBridge = append(onBridge, a)
			}
		}
		if pick, ok := pickPreferred(env, onBridge, suitable); ok {
			return []*agent.Agent{pick}
		}
		fallthrough
	case "random":
		if pick, ok := pickPreferred(env, comp, suitable); ok {
			return []*agent.Agent{pick}
		}
	}
	return nil
}

// pickPreferred picks uniformly among the preferred agents, or among all of
// them when none is preferred.
func pickPreferred(env *Env, agents []*agent.Agent, prefer func(*agent.Agent) bool) (*agent.Agent, bool) {
	var preferred []*agent.Agent
	for _, a := range agents {
		if prefer(a) {
			preferred = append(preferred, a)
		}
	}
	if len(preferred) > 0 {
		return stochastic.Choice(env.Rand, preferred)
	}
	return stochastic.Choice(env.Rand, agents)
}

func (rt *RandomTrial) treat(env *Env, treatment string, a *agent.Agent) {
	a.RandomTrial.Treated = true
	switch treatment {
	case "prep":
		if !a.HIV.Active {
			rt.reg.PrEP.Initiate(env, a, true)
		}
	case "knowledge":
		rt.reg.Knowledge.Convert(env, a)
	}
	env.Events.Agent("random_trial_treat", env.Time, a.ID, map[string]any{"treatment": treatment})
}

func (rt *RandomTrial) StatKeys() []string {
	return []string{"random_trial", "random_trial_treated", "random_trial_treated_hiv", "random_trial_suitable"}
}

func (rt *RandomTrial) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	if !a.RandomTrial.Active {
		return
	}
	stats["random_trial"]++
	inc(stats, "random_trial_treated", a.RandomTrial.Treated)
	inc(stats, "random_trial_treated_hiv", a.RandomTrial.Treated && a.HIV.Active)
	inc(stats, "random_trial_suitable", a.RandomTrial.Suitable)
}
