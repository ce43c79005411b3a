package model

import (
	"fmt"
	"math"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/population"
)

// Exit kinds, as set by enter_exit.exit.<name>.exit_type.
const (
	ExitAgeOut  = "age_out"
	ExitDeath   = "death"
	ExitDropOut = "drop_out"
)

// Exit records an agent that left the population.
type Exit struct {
	Agent    *agent.Agent
	Kind     string
	Strategy string // enter_exit.exit key
}

// exitAgents applies every exit strategy in declaration order. An agent
// leaves through the first strategy that takes it.
func (m *Model) exitAgents() error {
	strategies := m.Params.Sub("enter_exit.exit")
	gone := make(map[*agent.Agent]bool)
	for _, name := range strategies.Keys() {
		s := strategies.Sub(name)
		kind := s.String("exit_type")
		for a := range m.Pop.All.All() {
			if gone[a] || (s.Bool("ignore_incar") && a.Incar.Active) {
				continue
			}
			if m.exits(kind, s.Float("prob"), s.Int("age"), s.Float("hiv_mult"), s.Float("aids_mult"), a) {
				gone[a] = true
				m.Exits = append(m.Exits, Exit{Agent: a, Kind: kind, Strategy: name})
			}
		}
	}
	for _, e := range m.Exits {
		m.Pop.RemoveAgent(e.Agent)
		m.Events.Agent("exit", m.Time, e.Agent.ID, map[string]any{"kind": e.Kind, "hiv": e.Agent.HIV.Active})
	}
	if len(m.Exits) > 0 {
		m.Logger.Debug("agents exited", "t", m.Time, "count", len(m.Exits))
	}
	return nil
}

func (m *Model) exits(kind string, prob float64, age int, hivMult, aidsMult float64, a *agent.Agent) bool {
	switch kind {
	case ExitAgeOut:
		return a.Age >= age
	case ExitDeath:
		p := prob * m.Params.Float("calibration.mortality")
		if a.HIV.Active {
			p *= hivMult
		}
		if a.HIV.AIDS {
			p *= aidsMult
		}
		return m.Rand.Bernoulli(p)
	case ExitDropOut:
		return m.Rand.Bernoulli(prob)
	}
	return false
}

// enterAgents applies every entry strategy in declaration order.
func (m *Model) enterAgents() error {
	strategies := m.Params.Sub("enter_exit.entry")
	for _, name := range strategies.Keys() {
		s := strategies.Sub(name)
		var err error
		switch kind := s.String("enter_type"); kind {
		case "new_agent":
			err = m.enterNew(s.Float("prob"), s.Int("age"))
		case "replace":
			err = m.enterReplacements(s.Float("prob"), s.Int("age"), s.String("exit_class"))
		default:
			err = fmt.Errorf("unknown enter_type %q", kind)
		}
		if err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
	}
	return nil
}

// enterNew creates floor(model.num_pop * prob) agents split over locations
// and races by their population shares.
func (m *Model) enterNew(prob float64, age int) error {
	n := int(math.Floor(float64(m.Params.Int("model.num_pop")) * prob))
	if n <= 0 {
		return nil
	}
	for _, loc := range m.Pop.Geography.All() {
		locN := int(math.Round(float64(n) * loc.Ppl))
		races := loc.RaceWeights()
		for i, race := range races.Keys {
			for range int(math.Round(float64(locN) * races.Probs[i])) {
				if err := m.enter(loc.Name, race, population.AgentOptions{Age: age}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// enterReplacements replaces, with probability prob each, the agents that
// left this step through the exit strategy exitClass (any strategy when
// empty) by an agent of the same location, race, sex type and drug type.
func (m *Model) enterReplacements(prob float64, age int, exitClass string) error {
	for _, e := range m.Exits {
		if exitClass != "" && e.Strategy != exitClass {
			continue
		}
		if !m.Rand.Bernoulli(prob) {
			continue
		}
		old := e.Agent
		opts := population.AgentOptions{SexType: old.SexType, DrugType: old.DrugType, Age: age}
		if err := m.enter(old.Location.Name, old.Race, opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) enter(locName, race string, opts population.AgentOptions) error {
	loc := m.Pop.Geography.Location(locName)
	if loc == nil {
		return fmt.Errorf("unknown location %q", locName)
	}
	a, err := m.Pop.CreateAgent(loc, race, m.Time, opts)
	if err != nil {
		return err
	}
	m.Pop.AddAgent(a)
	m.Events.Agent("enter", m.Time, a.ID, map[string]any{"race": race, "location": locName})
	return nil
}
