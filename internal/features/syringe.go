package features

import (
	"math"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/stochastic"
)

// SyringeServices enrolls PWID into a syringe services program with a
// time-varying number of slots. Enrolled agents share needles with the
// program's reduced risk.
type SyringeServices struct {
	base

	enrolledRisk float64
	slots        float64
}

// EnrolledRisk is the unsafe-sharing probability of enrolled agents this
// step.
func (s *SyringeServices) EnrolledRisk() float64 { return s.enrolledRisk }

// Slots returns the interpolated slot count of the current step.
func (s *SyringeServices) Slots() float64 { return s.slots }

// timeline interpolates the slot count and risk of the entry active at t.
func (s *SyringeServices) timeline(env *Env, t int) (slots, risk float64) {
	tl := env.Params.Sub("syringe_services.timeline")
	for _, name := range tl.Keys() {
		e := tl.Sub(name)
		start, stop := e.Int("start_time"), e.Int("stop_time")
		if t < start || t >= stop {
			continue
		}
		from, to := e.Float("num_slots_start"), e.Float("num_slots_stop")
		slots = from + (to-from)*float64(t-start)/float64(stop-start)
		return slots, e.Float("risk")
	}
	return 0, 0
}

// UpdatePop draws the number of filled slots from Beta(slots, PWID-slots)
// scaled by the PWID count, then unenrolls the surplus or enrolls from the
// remaining PWID at random.
func (s *SyringeServices) UpdatePop(env *Env) error {
	slots, risk := s.timeline(env, env.Time)
	s.slots, s.enrolledRisk = slots, risk

	pwid := env.Pop.PWID.Members()
	n := len(pwid)
	target := 0
	switch {
	case slots <= 0 || n == 0:
	case float64(n) <= slots:
		target = n
	default:
		target = int(math.Round(env.Dist.Beta(slots, float64(n)-slots) * float64(n)))
	}

	var enrolled, waiting []*agent.Agent
	for _, a := range pwid {
		if a.SyringeServices.Active {
			enrolled = append(enrolled, a)
		} else {
			waiting = append(waiting, a)
		}
	}
	if len(enrolled) > target {
		for _, a := range stochastic.Sample(env.Rand, enrolled, len(enrolled)-target) {
			a.SyringeServices.Active = false
		}
		return nil
	}
	for _, a := range stochastic.Sample(env.Rand, waiting, target-len(enrolled)) {
		a.SyringeServices.Active = true
	}
	return nil
}

func (s *SyringeServices) StatKeys() []string { return []string{"ssp"} }

func (s *SyringeServices) SetStats(stats map[string]int, a *agent.Agent, _ int) {
	inc(stats, "ssp", a.SyringeServices.Active)
}
