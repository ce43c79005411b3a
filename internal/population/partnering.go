package population

import (
	"fmt"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/ordered"
	"github.com/titan-sim/titan/internal/stochastic"
)

// UpdatePartnerAssignments forms new relationships for every bond type. At
// year boundaries the target partner counts are re-drawn first.
func (p *Population) UpdatePartnerAssignments(t int) error {
	if spy := p.Params.Int("model.time.steps_per_year"); spy > 0 && t%spy == 0 {
		p.UpdatePartnerTargets()
	}
	for _, bond := range p.bondTypes {
		if err := p.partnerBond(bond); err != nil {
			return err
		}
	}
	return nil
}

// partnerBond runs the selection queue for one bond type. Agents that fail to
// find a partner are re-queued until they reach the break point.
func (p *Population) partnerBond(bond string) error {
	breakPoint := p.Params.Int("calibration.partnership.break_point")
	queue := make([]*agent.Agent, 0)
	for a := range p.All.All() {
		if a.NeedsPartners(bond) {
			queue = append(queue, a)
		}
	}
	attempts := make(map[*agent.Agent]int, len(queue))
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if a.NeedsPartners(bond) {
			partner := p.SelectPartner(a, bond)
			if partner == nil {
				attempts[a]++
			} else {
				duration, err := p.RelationshipDuration(a, partner, bond)
				if err != nil {
					return err
				}
				if _, err := p.AddRelationship(a, partner, bond, duration); err != nil {
					return fmt.Errorf("partnering %s: %w", bond, err)
				}
			}
		}
		if a.NeedsPartners(bond) && attempts[a] < breakPoint {
			queue = append(queue, a)
		}
	}
	return nil
}

// SelectPartner picks a partner for a in bond, or nil when no candidate
// qualifies.
func (p *Population) SelectPartner(a *agent.Agent, bond string) *agent.Agent {
	own := a.Partners(bond)
	injection := p.BondAllows(bond, "injection")
	sex := p.BondAllows(bond, "sex")
	var sexPartners *ordered.Set[*agent.Agent]
	if sex {
		sexPartners = p.sexPartners[a.SexType]
		if sexPartners == nil {
			return nil
		}
	}

	candidates := p.partnerable[bond].Filter(func(c *agent.Agent) bool {
		if c == a || own.Contains(c) {
			return false
		}
		if injection && !c.IsPWID() {
			return false
		}
		if sex && (!sexPartners.Contains(c) || !p.SleepsWith(c.SexType, a.SexType)) {
			return false
		}
		return true
	})

	for _, rule := range p.assortRules {
		if rule.Applies(a, bond) {
			candidates = rule.Filter(p.NetRand, a, candidates)
		}
	}

	if prob := p.Params.Float("partnership.network.same_component.prob"); prob > 0 && p.Graph != nil && a.HasPartners() {
		if p.NetRand.Bernoulli(prob) {
			same := candidates[:0:0]
			for _, c := range candidates {
				if c.Component == a.Component {
					same = append(same, c)
				}
			}
			candidates = same
		}
	}

	partner, ok := stochastic.Choice(p.NetRand, candidates)
	if !ok {
		return nil
	}
	return partner
}

// RelationshipDuration draws a duration from the bins of bond and the race of
// a randomly chosen endpoint.
func (p *Population) RelationshipDuration(a1, a2 *agent.Agent, bond string) (int, error) {
	endpoint := a1
	if p.NetRand.Bernoulli(0.5) {
		endpoint = a2
	}
	lp := p.Params
	if endpoint.Location != nil {
		lp = endpoint.Location.Params
	}
	bins := lp.BinsAt("partnership.duration." + bond + "." + endpoint.Race)
	if bins.Empty() {
		return 1, nil
	}
	d, err := p.NetDist.SampleBins(bins)
	if err != nil {
		return 0, fmt.Errorf("partnership.duration.%s.%s: %w", bond, endpoint.Race, err)
	}
	return d, nil
}
