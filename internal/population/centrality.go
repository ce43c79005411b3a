package population

import "math"

// CentralityConfig holds configuration for eigenvector centrality.
type CentralityConfig struct {
	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold on the summed change. Default: 1e-6.
	Tolerance float64
}

// DefaultCentralityConfig returns the default configuration.
func DefaultCentralityConfig() CentralityConfig {
	return CentralityConfig{
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// EigenvectorCentrality scores the given nodes by eigenvector centrality,
// restricted to the subgraph they induce (normally one component).
//
// Algorithm: power iteration
//  1. Initialize all nodes with score = 1/N
//  2. For each iteration: x'(v) = x(v) + sum(x(u)) over neighbours u
//     (the identity shift keeps bipartite components from oscillating)
//  3. Normalize to unit length
//  4. Converge when the summed absolute change < N * Tolerance
//
// Scores are non-negative with a maximum of 1.
func (gr *Graph) EigenvectorCentrality(ids []int64, config CentralityConfig) map[int64]float64 {
	n := len(ids)
	scores := make(map[int64]float64, n)
	if n == 0 {
		return scores
	}

	in := make(map[int64]bool, n)
	for _, id := range ids {
		in[id] = true
	}
	adj := make(map[int64][]int64, n)
	for _, id := range ids {
		for _, nb := range gr.Neighbors(id) {
			if in[nb] {
				adj[id] = append(adj[id], nb)
			}
		}
	}

	nf := float64(n)
	for _, id := range ids {
		scores[id] = 1.0 / nf
	}

	for iter := 0; iter < config.MaxIterations; iter++ {
		next := make(map[int64]float64, n)
		norm := 0.0
		for _, v := range ids {
			sum := scores[v]
			for _, u := range adj[v] {
				sum += scores[u]
			}
			next[v] = sum
			norm += sum * sum
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			break
		}

		delta := 0.0
		for _, v := range ids {
			next[v] /= norm
			delta += math.Abs(next[v] - scores[v])
		}
		scores = next

		if delta < nf*config.Tolerance {
			break
		}
	}

	// Normalize to [0, 1] by dividing by max score.
	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 0 {
		for id, score := range scores {
			scores[id] = score / maxScore
		}
	}
	return scores
}
