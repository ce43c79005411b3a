package stochastic

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/titan-sim/titan/internal/params"
)

// Dist is the distribution-style generator.
type Dist struct {
	src *rand.Rand
}

// NewDist returns a distribution generator seeded with seed.
func NewDist(seed int64) *Dist {
	return &Dist{src: rand.New(rand.NewPCG(uint64(seed), distStream))}
}

// Float64 returns a uniform draw in [0, 1).
func (d *Dist) Float64() float64 { return d.src.Float64() }

// Bernoulli reports whether a draw falls below p.
func (d *Dist) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return d.src.Float64() < p
}

// Poisson draws from a Poisson distribution. A non-positive mean yields 0.
func (d *Dist) Poisson(lambda float64) int {
	if lambda <= 0 || math.IsNaN(lambda) {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: d.src}.Rand())
}

// Binomial draws the number of successes in n trials.
func (d *Dist) Binomial(n int, p float64) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	return int(distuv.Binomial{N: float64(n), P: p, Src: d.src}.Rand())
}

// Beta draws from a beta distribution. Degenerate shapes collapse onto the
// boundary they approach.
func (d *Dist) Beta(alpha, beta float64) float64 {
	switch {
	case alpha <= 0 && beta <= 0:
		return 0.5
	case alpha <= 0:
		return 0
	case beta <= 0:
		return 1
	}
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: d.src}.Rand()
}

// Uniform draws from [lo, hi).
func (d *Dist) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: d.src}.Rand()
}

// IntRange returns a uniform int in [lo, hi], both inclusive.
func (d *Dist) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + d.src.IntN(hi-lo+1)
}

// Sample draws a number from a parameterised distribution. Variables are
// positional, in this order per distribution:
//
//	set_value(value)            poisson(lam)
//	randint(low, high)          uniform(low, high)
//	normal(loc, scale)          lognormal(mean, sigma)
//	gamma(shape, scale)         weibull(a[, scale])
//	beta(a, b)                  binomial(n, p)
//	negative_binomial(n, p)     choice(values[, probs])
//
// randint excludes high. choice returns the numeric value of the chosen entry.
func (d *Dist) Sample(dist params.Distribution) (float64, error) {
	v, err := d.SampleValue(dist)
	if err != nil {
		return 0, err
	}
	f, ok := number(v)
	if !ok {
		return 0, fmt.Errorf("%s: value %v is not numeric", dist.DistType, v)
	}
	return f, nil
}

// SampleValue is Sample for distributions whose values may be non-numeric
// (choice over strings, set_value of a bool).
func (d *Dist) SampleValue(dist params.Distribution) (any, error) {
	a, b := dist.Var(0), dist.Var(1)
	switch dist.DistType {
	case "set_value":
		if len(dist.Vars) == 0 {
			return nil, fmt.Errorf("set_value: missing value")
		}
		return dist.Vars[0], nil
	case "poisson":
		return float64(d.Poisson(a)), nil
	case "randint":
		return float64(d.IntRange(int(a), int(b)-1)), nil
	case "uniform":
		return d.Uniform(a, b), nil
	case "normal":
		return distuv.Normal{Mu: a, Sigma: b, Src: d.src}.Rand(), nil
	case "lognormal":
		return distuv.LogNormal{Mu: a, Sigma: b, Src: d.src}.Rand(), nil
	case "gamma":
		// vars hold a scale; distuv takes a rate.
		return distuv.Gamma{Alpha: a, Beta: 1 / b, Src: d.src}.Rand(), nil
	case "weibull":
		scale := 1.0
		if len(dist.Vars) > 1 {
			scale = b
		}
		return distuv.Weibull{K: a, Lambda: scale, Src: d.src}.Rand(), nil
	case "beta":
		return d.Beta(a, b), nil
	case "binomial":
		return float64(d.Binomial(int(a), b)), nil
	case "negative_binomial":
		// Gamma-Poisson mixture.
		if b <= 0 || b > 1 || a <= 0 {
			return nil, fmt.Errorf("negative_binomial: invalid vars n=%g p=%g", a, b)
		}
		if b == 1 {
			return 0.0, nil
		}
		lambda := distuv.Gamma{Alpha: a, Beta: b / (1 - b), Src: d.src}.Rand()
		return float64(d.Poisson(lambda)), nil
	case "choice":
		values, weights, err := choiceVars(dist)
		if err != nil {
			return nil, err
		}
		if weights == nil {
			return values[d.src.IntN(len(values))], nil
		}
		return weightedPick(d.src.Float64(), values, weights), nil
	}
	return nil, fmt.Errorf("unknown distribution %q", dist.DistType)
}

// Mean returns the expected value of a numeric distribution.
func Mean(dist params.Distribution) (float64, error) {
	a, b := dist.Var(0), dist.Var(1)
	switch dist.DistType {
	case "set_value":
		return a, nil
	case "poisson":
		return a, nil
	case "randint":
		return (a + b - 1) / 2, nil
	case "uniform":
		return (a + b) / 2, nil
	case "normal":
		return a, nil
	case "lognormal":
		return math.Exp(a + b*b/2), nil
	case "gamma":
		return a * b, nil
	case "weibull":
		scale := 1.0
		if len(dist.Vars) > 1 {
			scale = b
		}
		return scale * math.Gamma(1+1/a), nil
	case "beta":
		return a / (a + b), nil
	case "binomial":
		return a * b, nil
	case "negative_binomial":
		return a * (1 - b) / b, nil
	case "choice":
		values, weights, err := choiceVars(dist)
		if err != nil {
			return 0, err
		}
		total, mass := 0.0, 0.0
		for i, v := range values {
			f, ok := number(v)
			if !ok {
				return 0, fmt.Errorf("choice: value %v is not numeric", v)
			}
			w := 1.0
			if weights != nil {
				w = weights[i]
			}
			total += f * w
			mass += w
		}
		return total / mass, nil
	}
	return 0, fmt.Errorf("unknown distribution %q", dist.DistType)
}

// SampleBins draws an integer from a binned distribution: a bin is chosen by
// weight, then a value uniformly within [min, max]. When the bins are of type
// "distribution" the distribution is sampled and rounded instead.
func (d *Dist) SampleBins(bins params.Bins) (int, error) {
	if bins.Type == "distribution" {
		f, err := d.Sample(bins.Distribution)
		if err != nil {
			return 0, err
		}
		return int(math.Round(f)), nil
	}
	if len(bins.Bins) == 0 {
		return 0, fmt.Errorf("no bins to sample")
	}
	weights := make([]float64, len(bins.Bins))
	for i, bin := range bins.Bins {
		weights[i] = bin.Prob
	}
	bin := weightedPick(d.src.Float64(), bins.Bins, weights)
	return d.IntRange(int(bin.Min), int(bin.Max)), nil
}

// SampleBin draws which bin of a binned distribution applies.
func (d *Dist) SampleBin(bins params.Bins) (params.Bin, bool) {
	if len(bins.Bins) == 0 {
		return params.Bin{}, false
	}
	weights := make([]float64, len(bins.Bins))
	for i, bin := range bins.Bins {
		weights[i] = bin.Prob
	}
	return weightedPick(d.src.Float64(), bins.Bins, weights), true
}

// BinsMean returns the expected value of a binned distribution, using each
// bin's midpoint.
func BinsMean(bins params.Bins) (float64, error) {
	if bins.Type == "distribution" {
		return Mean(bins.Distribution)
	}
	mean := 0.0
	for _, bin := range bins.Bins {
		mean += bin.Prob * (bin.Min + bin.Max) / 2
	}
	return mean, nil
}

func choiceVars(dist params.Distribution) ([]any, []float64, error) {
	if len(dist.Vars) == 0 {
		return nil, nil, fmt.Errorf("choice: missing values")
	}
	values, ok := dist.Vars[0].([]any)
	if !ok || len(values) == 0 {
		return nil, nil, fmt.Errorf("choice: first var must be a non-empty list")
	}
	if len(dist.Vars) < 2 || dist.Vars[1] == nil {
		return values, nil, nil
	}
	raw, ok := dist.Vars[1].([]any)
	if !ok || len(raw) != len(values) {
		return nil, nil, fmt.Errorf("choice: probabilities must be a list matching the values")
	}
	weights := make([]float64, len(raw))
	for i, w := range raw {
		weights[i], _ = number(w)
	}
	return values, weights, nil
}

// weightedPick maps a uniform draw u in [0, 1) onto items by weight.
func weightedPick[T any](u float64, items []T, weights []float64) T {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	x := u * total
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		x -= w
		if x < 0 {
			return items[i]
		}
	}
	return items[last]
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
