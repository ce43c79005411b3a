// Package simulation provides a multi-step test harness for validating the
// emergent dynamics of full model runs.
//
// The harness exercises the real model, population and features with no
// mocks. Scenarios load a setting, overlay parameters, optionally adjust the
// parameter tree, and step the model while recording the stratified counters
// of every reported step. Structural invariants of the population are checked
// after every step.
//
// Usage:
//
//	func TestNoHIVWithoutSeeding(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "no-hiv",
//	        Params: []string{"hiv:\n  start_time: 1000\n"},
//	        Steps:  12,
//	    })
//	    simulation.AssertCounterZero(t, result, "hiv_new", 0, 12)
//	}
package simulation
