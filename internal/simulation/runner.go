package simulation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/titan-sim/titan/internal/logging"
	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/output"
	"github.com/titan-sim/titan/internal/params"
)

// Runner orchestrates full model runs inside a test.
type Runner struct {
	t   *testing.T
	dir string
}

// NewRunner creates a simulation runner whose events are written to an
// isolated temporary directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{t: t, dir: t.TempDir()}
}

// Run builds the scenario's model, steps it to the last step and returns the
// recorded results. Structural invariants are checked after every step.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	p := r.loadParams(scenario)

	events := logging.NewEventLogger(r.dir, "debug", scenario.Name)
	r.t.Cleanup(events.Close)

	m, err := model.New(p, model.Options{
		RunID:  scenario.Name,
		Logger: logging.Discard(),
		Events: events,
	})
	if err != nil {
		r.t.Fatalf("Run(%s): model.New: %v", scenario.Name, err)
	}

	result := SimulationResult{Name: scenario.Name, Model: m}
	result.Steps = append(result.Steps, r.record(m))

	last := p.Int("model.time.num_steps")
	for m.Time < last {
		if err := m.Step(); err != nil {
			r.t.Fatalf("Run(%s): step %d: %v", scenario.Name, m.Time, err)
		}
		sr := r.record(m)
		checkInvariants(r.t, m, sr)
		if scenario.AfterStep != nil {
			scenario.AfterStep(r.t, m)
		}
		result.Steps = append(result.Steps, sr)
	}
	return result
}

// loadParams layers the scenario's overrides on the setting and applies
// Modify.
func (r *Runner) loadParams(scenario Scenario) *params.Tree {
	r.t.Helper()

	setting := scenario.Setting
	if setting == "" {
		setting = "basic"
	}
	var docs [][]byte
	if base := baseOverlay(scenario); base != "" {
		docs = append(docs, []byte(base))
	}
	for _, o := range scenario.Params {
		docs = append(docs, []byte(o))
	}
	p, err := params.LoadWith(setting, docs...)
	if err != nil {
		r.t.Fatalf("Run(%s): loading params: %v", scenario.Name, err)
	}

	if scenario.Modify != nil {
		if err := scenario.Modify(p); err != nil {
			r.t.Fatalf("Run(%s): Modify: %v", scenario.Name, err)
		}
		if err := params.Validate(p); err != nil {
			r.t.Fatalf("Run(%s): modified params are invalid: %v", scenario.Name, err)
		}
	}
	return p
}

// baseOverlay renders the scenario's size, length and seed fields as a
// params document.
func baseOverlay(s Scenario) string {
	var b strings.Builder
	if s.NumPop > 0 || s.Steps > 0 || s.Seed != 0 {
		b.WriteString("model:\n")
	}
	if s.NumPop > 0 {
		fmt.Fprintf(&b, "  num_pop: %d\n", s.NumPop)
	}
	if s.Steps > 0 {
		fmt.Fprintf(&b, "  time:\n    num_steps: %d\n", s.Steps)
	}
	if s.Seed != 0 {
		fmt.Fprintf(&b, "  seed:\n    run: %d\n    ppl: %d\n    net: %d\n", s.Seed, s.Seed, s.Seed)
	}
	return b.String()
}

// record snapshots the counters and network size of the current step.
func (r *Runner) record(m *model.Model) StepResult {
	r.t.Helper()
	stats, err := output.Collect(m)
	if err != nil {
		r.t.Fatalf("collecting stats at step %d: %v", m.Time, err)
	}
	sr := StepResult{
		T:             m.Time,
		Stats:         stats,
		Agents:        m.Pop.All.Len(),
		Relationships: m.Pop.Relationships.Len(),
		Components:    len(m.Pop.Components),
	}
	if m.Pop.Graph != nil {
		sr.Edges = m.Pop.Graph.NumEdges()
	}
	return sr
}

// FormatStepDebug returns a debug string for a step result.
func FormatStepDebug(sr StepResult) string {
	s := fmt.Sprintf("Step %d: agents=%d relationships=%d edges=%d components=%d\n",
		sr.T, sr.Agents, sr.Relationships, sr.Edges, sr.Components)
	for _, k := range sr.Stats.Keys {
		if n := sr.Total(k); n > 0 {
			s += fmt.Sprintf("  %s: %d\n", k, n)
		}
	}
	return s
}
