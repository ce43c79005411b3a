package interactions

import (
	"fmt"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/features"
)

// PCA resolves peer-change contacts, which spread knowledge and opinion
// along social bonds. Unlike the other acts it also runs between two aware
// agents, where it moves opinions.
type PCA struct {
	features *features.Registry
}

func (p *PCA) Name() string { return "pca" }

func (p *PCA) Interact(env *features.Env, rel *agent.Relationship) error {
	if !env.Params.Bool("features.pca") || env.Time < env.Params.Int("partnership.pca.start_time") {
		return nil
	}
	if env.Pop.Graph == nil {
		return fmt.Errorf("peer-change contact: %w", features.ErrGraphRequired)
	}
	var exposures []features.Exposure
	for _, e := range p.features.Exposures() {
		if e.Transmits("pca") && env.Time >= e.StartTime(env) && (e.Infected(rel.Agent1) || e.Infected(rel.Agent2)) {
			exposures = append(exposures, e)
		}
	}
	if len(exposures) == 0 {
		return nil
	}
	acts, err := actCount(env, "partnership.pca.frequency."+rel.BondType)
	if err != nil || acts == 0 {
		return err
	}
	for _, e := range exposures {
		if err := e.Expose(env, "pca", rel, acts); err != nil {
			return err
		}
	}
	return nil
}
