package simulation

import (
	"math"
	"testing"

	"github.com/titan-sim/titan/internal/model"
)

// checkInvariants runs the structural assertions that hold after any step.
func checkInvariants(t *testing.T, m *model.Model, sr StepResult) {
	t.Helper()
	AssertPartnerSymmetry(t, m)
	AssertHIVExclusions(t, m)
	AssertCountersConsistent(t, m, sr)
}

// AssertPartnerSymmetry asserts that every relationship joins two distinct
// living agents that list each other as partners in its bond type.
func AssertPartnerSymmetry(t *testing.T, m *model.Model) {
	t.Helper()
	for r := range m.Pop.Relationships.All() {
		a1, a2 := r.Agents()
		if a1 == a2 {
			t.Errorf("AssertPartnerSymmetry: step %d: %s joins %s to itself", m.Time, r, a1)
			continue
		}
		if m.Pop.Agent(a1.ID) == nil || m.Pop.Agent(a2.ID) == nil {
			t.Errorf("AssertPartnerSymmetry: step %d: %s references an agent outside the population", m.Time, r)
		}
		if !a1.Partners(r.BondType).Contains(a2) || !a2.Partners(r.BondType).Contains(a1) {
			t.Errorf("AssertPartnerSymmetry: step %d: %s is not mirrored in the %s partner sets", m.Time, r, r.BondType)
		}
		if m.Pop.Graph != nil && !m.Pop.Graph.HasEdge(a1.ID, a2.ID) {
			t.Errorf("AssertPartnerSymmetry: step %d: %s has no graph edge", m.Time, r)
		}
	}
}

// AssertHIVExclusions asserts that no HIV+ agent is on PrEP or vaccinated.
func AssertHIVExclusions(t *testing.T, m *model.Model) {
	t.Helper()
	for a := range m.Pop.All.All() {
		if !a.HIV.Active {
			continue
		}
		if a.PrEP.Active {
			t.Errorf("AssertHIVExclusions: step %d: %s is HIV+ and on PrEP", m.Time, a)
		}
		if a.Vaccine.Active {
			t.Errorf("AssertHIVExclusions: step %d: %s is HIV+ and vaccinated", m.Time, a)
		}
	}
}

// AssertCountersConsistent asserts that the recorded counters agree with the
// population they were collected from.
func AssertCountersConsistent(t *testing.T, m *model.Model, sr StepResult) {
	t.Helper()
	if got := sr.Total("agents"); got != m.Pop.All.Len() {
		t.Errorf("AssertCountersConsistent: step %d: agents counter %d, population %d", sr.T, got, m.Pop.All.Len())
	}
	if got := sr.Total("hiv"); got != m.Features.HIV.Active() {
		t.Errorf("AssertCountersConsistent: step %d: hiv counter %d, HIV feature tracks %d", sr.T, got, m.Features.HIV.Active())
	}
	if sr.Total("hiv_new") > sr.Total("hiv") {
		t.Errorf("AssertCountersConsistent: step %d: hiv_new %d exceeds hiv %d", sr.T, sr.Total("hiv_new"), sr.Total("hiv"))
	}
	if sr.Total("haart") > sr.Total("hiv") {
		t.Errorf("AssertCountersConsistent: step %d: haart %d exceeds hiv %d", sr.T, sr.Total("haart"), sr.Total("hiv"))
	}
	if sr.Total("hiv")+sr.Total("prep") > sr.Total("agents") {
		t.Errorf("AssertCountersConsistent: step %d: hiv %d plus prep %d exceed agents %d", sr.T, sr.Total("hiv"), sr.Total("prep"), sr.Total("agents"))
	}
}

// AssertCounterZero asserts that a counter is zero at every recorded step in
// [from, to].
func AssertCounterZero(t *testing.T, result SimulationResult, key string, from, to int) {
	t.Helper()
	for _, sr := range result.Steps {
		if sr.T < from || sr.T > to {
			continue
		}
		if n := sr.Total(key); n != 0 {
			t.Errorf("AssertCounterZero: step %d: %s = %d, want 0", sr.T, key, n)
		}
	}
}

// AssertRelationshipsStable asserts that the relationship count stays within
// tolerance (a fraction) of its mean over the steps in [from, to].
func AssertRelationshipsStable(t *testing.T, result SimulationResult, from, to int, tolerance float64) {
	t.Helper()
	var counts []int
	for _, sr := range result.Steps {
		if sr.T >= from && sr.T <= to {
			counts = append(counts, sr.Relationships)
		}
	}
	if len(counts) == 0 {
		t.Errorf("AssertRelationshipsStable: no steps in [%d, %d]", from, to)
		return
	}
	sum := 0
	for _, n := range counts {
		sum += n
	}
	mean := float64(sum) / float64(len(counts))
	if mean == 0 {
		t.Errorf("AssertRelationshipsStable: no relationships in [%d, %d]", from, to)
		return
	}
	for i, n := range counts {
		if dev := math.Abs(float64(n)-mean) / mean; dev > tolerance {
			t.Errorf("AssertRelationshipsStable: step %d: %d relationships deviate %.1f%% from mean %.1f (max %.1f%%)",
				from+i, n, dev*100, mean, tolerance*100)
		}
	}
}

// AssertSameAttributeFraction asserts that at least minFraction of the final
// relationships join agents sharing attr.
func AssertSameAttributeFraction(t *testing.T, result SimulationResult, attr string, minFraction float64) {
	t.Helper()
	total, same := 0, 0
	for r := range result.Model.Pop.Relationships.All() {
		total++
		if r.Agent1.StrAttr(attr) == r.Agent2.StrAttr(attr) {
			same++
		}
	}
	if total == 0 {
		t.Errorf("AssertSameAttributeFraction: no relationships")
		return
	}
	if frac := float64(same) / float64(total); frac < minFraction {
		t.Errorf("AssertSameAttributeFraction: %.3f of %d relationships share %s (need %.3f)", frac, total, attr, minFraction)
	}
}
