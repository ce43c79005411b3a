package simulation

import (
	"testing"

	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/output"
	"github.com/titan-sim/titan/internal/params"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Setting is the embedded setting to start from; empty means "basic".
	Setting string
	// Params are YAML overlays applied in order on top of the setting.
	Params []string
	// NumPop and Steps override model.num_pop and model.time.num_steps when
	// non-zero.
	NumPop int
	Steps  int
	// Seed fixes the run, population and network seeds when non-zero.
	Seed int

	// Modify, when non-nil, adjusts the loaded parameters before the model
	// is built. The tree is validated again afterwards.
	Modify func(p *params.Tree) error

	// AfterStep, when non-nil, is called after every step with the model.
	// Use this for per-agent checks that the counters cannot express.
	AfterStep func(t *testing.T, m *model.Model)
}

// StepResult captures the counters and network size of one step.
type StepResult struct {
	T             int
	Stats         *output.Stats
	Agents        int
	Relationships int
	Edges         int
	Components    int
}

// Total sums a counter over every stratum of the step.
func (sr StepResult) Total(key string) int { return sr.Stats.Total(key) }

// SimulationResult captures every step and the final model state.
type SimulationResult struct {
	Name  string
	Steps []StepResult
	Model *model.Model
}

// Step returns the result recorded for time t, or false.
func (r SimulationResult) Step(t int) (StepResult, bool) {
	for _, sr := range r.Steps {
		if sr.T == t {
			return sr, true
		}
	}
	return StepResult{}, false
}

// Sum adds a counter over the steps in [from, to].
func (r SimulationResult) Sum(key string, from, to int) int {
	n := 0
	for _, sr := range r.Steps {
		if sr.T >= from && sr.T <= to {
			n += sr.Total(key)
		}
	}
	return n
}
