package population

import "github.com/titan-sim/titan/internal/agent"

// maxTrimPasses bounds the edge-trimming loop.
const maxTrimPasses = 1000

// trimComponents enforces model.network.component_size: relationships inside
// oversized components are dropped at random until every component fits, then
// agents in undersized components are removed.
func (p *Population) trimComponents() error {
	maxSize := p.Params.Int("model.network.component_size.max")
	minSize := p.Params.Int("model.network.component_size.min")
	prob := p.Params.Float("calibration.network.trim.prob")

	if maxSize > 0 {
		if prob <= 0 {
			p.Logger.Warn("component trimming skipped: calibration.network.trim.prob is not positive", "max", maxSize)
		} else {
			for pass := 0; ; pass++ {
				oversized := 0
				for _, ids := range p.Graph.Components() {
					if len(ids) <= maxSize {
						continue
					}
					oversized++
					for _, r := range p.componentRelationships(ids) {
						if p.NetRand.Bernoulli(prob) {
							p.RemoveRelationship(r)
						}
					}
				}
				if oversized == 0 {
					break
				}
				if pass >= maxTrimPasses {
					p.Logger.Warn("component trimming stopped before all components fit", "max", maxSize, "oversized", oversized)
					break
				}
			}
		}
	}

	if minSize > 0 {
		removed := 0
		for _, ids := range p.Graph.Components() {
			if len(ids) >= minSize {
				continue
			}
			for _, id := range ids {
				if a := p.byID[id]; a != nil {
					p.RemoveAgent(a)
					removed++
				}
			}
		}
		if removed > 0 {
			p.Logger.Debug("removed agents in undersized components", "agents", removed, "min", minSize)
		}
	}
	return nil
}

// componentRelationships lists the relationships among the given agents in
// agent order, each once.
func (p *Population) componentRelationships(ids []int64) []*agent.Relationship {
	seen := make(map[*agent.Relationship]bool)
	var out []*agent.Relationship
	for _, id := range ids {
		a := p.byID[id]
		if a == nil {
			continue
		}
		for _, r := range a.Relationships() {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
