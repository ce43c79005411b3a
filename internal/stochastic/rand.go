// Package stochastic holds the two random sources of a simulation.
//
// A Rand makes discrete choices (uniform draws, shuffles, picking members of a
// set). A Dist samples parametric distributions through gonum's distuv. The two
// are seeded independently and never share state, so enabling a feature that
// only draws from one of them does not shift the other's stream.
package stochastic

import (
	"math/rand/v2"
	"slices"
)

// Stream constants keep a Rand and a Dist built from the same seed apart.
const (
	choiceStream = 0x7469_7461_6e63_6831 // "titanch1"
	distStream   = 0x7469_7461_6e64_7331 // "titands1"
)

// Rand is the choice-style generator.
type Rand struct {
	r *rand.Rand
}

// NewRand returns a choice generator seeded with seed.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(uint64(seed), choiceStream))}
}

// ResolveSeed returns seed, or a freshly drawn positive seed when seed is 0.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return int64(rand.Int32N(1<<31-2)) + 1
}

// Float64 returns a uniform draw in [0, 1).
func (r *Rand) Float64() float64 { return r.r.Float64() }

// IntN returns a uniform int in [0, n). n must be positive.
func (r *Rand) IntN(n int) int { return r.r.IntN(n) }

// IntRange returns a uniform int in [lo, hi], both inclusive.
func (r *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.r.IntN(hi-lo+1)
}

// Uniform returns a uniform float in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.r.Float64()
}

// Bernoulli reports whether a draw falls below p.
func (r *Rand) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.r.Float64() < p
}

// Shuffle permutes n elements through swap.
func (r *Rand) Shuffle(n int, swap func(i, j int)) { r.r.Shuffle(n, swap) }

// Choice picks one item uniformly. It reports false for an empty slice, which
// callers treat as "no match".
func Choice[T any](r *Rand, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[r.IntN(len(items))], true
}

// WeightedChoice picks one item with probability proportional to its weight.
// Non-positive weights are never picked. It reports false when no item has
// positive weight.
func WeightedChoice[T any](r *Rand, items []T, weights []float64) (T, bool) {
	var zero T
	total := 0.0
	for i := range items {
		if i < len(weights) && weights[i] > 0 {
			total += weights[i]
		}
	}
	if total <= 0 {
		return zero, false
	}
	x := r.Float64() * total
	last := -1
	for i := range items {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		last = i
		x -= weights[i]
		if x < 0 {
			return items[i], true
		}
	}
	return items[last], true
}

// Sample returns k distinct items chosen uniformly, in draw order. When k is at
// least len(items) a shuffled copy of all items is returned.
func Sample[T any](r *Rand, items []T, k int) []T {
	out := slices.Clone(items)
	if k > len(out) {
		k = len(out)
	}
	if k < 0 {
		k = 0
	}
	// Partial Fisher-Yates.
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:k]
}
