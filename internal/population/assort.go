package population

import (
	"slices"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/stochastic"
)

// Assort rule sentinels.
const (
	AssortAgent    = "__agent__"    // partner_attribute: compare the same attribute
	AssortAny      = "__any__"      // agent_value: the rule applies to every agent
	AssortSame     = "__same__"     // partner value equal to the agent's
	AssortOther    = "__other__"    // any value not otherwise listed
	AssortNeighbor = "__neighbor__" // partner in an adjacent location
)

// AssortRule restricts partner selection by attribute. When a rule applies to
// an agent, a target partner value is drawn by weight and the candidates are
// narrowed to partners holding it.
type AssortRule struct {
	Name             string
	Attribute        string
	PartnerAttribute string
	BondTypes        []string
	AgentValue       string
	Values           []string
	Weights          []float64
}

// ParseAssortRules reads the assort_mix section.
func ParseAssortRules(p *params.Tree) ([]AssortRule, error) {
	section := p.Sub("assort_mix")
	rules := make([]AssortRule, 0, section.Len())
	for _, name := range section.Keys() {
		path := "assort_mix." + name
		r := AssortRule{
			Name:             name,
			Attribute:        p.String(path + ".attribute"),
			PartnerAttribute: p.String(path + ".partner_attribute"),
			BondTypes:        p.Strings(path + ".bond_types"),
			AgentValue:       p.String(path + ".agent_value"),
		}
		if r.PartnerAttribute == "" {
			r.PartnerAttribute = AssortAgent
		}
		if r.AgentValue == "" {
			r.AgentValue = AssortAny
		}
		if !agent.ValidAttr(r.Attribute) {
			return nil, &params.ConfigError{Path: path + ".attribute", Err: params.ErrUnknownParam, Reason: "unknown agent attribute " + r.Attribute}
		}
		if r.PartnerAttribute != AssortAgent && !agent.ValidAttr(r.PartnerAttribute) {
			return nil, &params.ConfigError{Path: path + ".partner_attribute", Err: params.ErrUnknownParam, Reason: "unknown agent attribute " + r.PartnerAttribute}
		}
		values := p.Sub(path + ".partner_values")
		for _, k := range values.Keys() {
			if k == AssortNeighbor && r.partnerAttr() != "location" {
				return nil, &params.ConfigError{Path: path + ".partner_values", Err: params.ErrInvalidParam, Reason: AssortNeighbor + " requires the location attribute"}
			}
			r.Values = append(r.Values, k)
			r.Weights = append(r.Weights, values.Float(k))
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (r AssortRule) partnerAttr() string {
	if r.PartnerAttribute == AssortAgent {
		return r.Attribute
	}
	return r.PartnerAttribute
}

// Applies reports whether the rule governs a's partnering in bond.
func (r AssortRule) Applies(a *agent.Agent, bond string) bool {
	if len(r.BondTypes) > 0 && !slices.Contains(r.BondTypes, bond) {
		return false
	}
	return r.AgentValue == AssortAny || a.StrAttr(r.Attribute) == r.AgentValue
}

// Filter draws a target partner value and keeps the matching candidates.
func (r AssortRule) Filter(rnd *stochastic.Rand, a *agent.Agent, candidates []*agent.Agent) []*agent.Agent {
	target, ok := stochastic.WeightedChoice(rnd, r.Values, r.Weights)
	if !ok {
		return candidates
	}
	attr := r.partnerAttr()
	own := a.StrAttr(r.Attribute)

	var keep func(p *agent.Agent) bool
	switch target {
	case AssortSame:
		keep = func(p *agent.Agent) bool { return p.StrAttr(attr) == own }
	case AssortNeighbor:
		keep = func(p *agent.Agent) bool { return a.Location != nil && a.Location.IsNeighbor(p.Location) }
	case AssortOther:
		listed := make([]string, 0, len(r.Values))
		neighbors := false
		for _, v := range r.Values {
			switch v {
			case AssortOther:
			case AssortSame:
				listed = append(listed, own)
			case AssortNeighbor:
				neighbors = true
			default:
				listed = append(listed, v)
			}
		}
		keep = func(p *agent.Agent) bool {
			if neighbors && a.Location != nil && a.Location.IsNeighbor(p.Location) {
				return false
			}
			return !slices.Contains(listed, p.StrAttr(attr))
		}
	default:
		keep = func(p *agent.Agent) bool { return p.StrAttr(attr) == target }
	}

	out := candidates[:0:0]
	for _, p := range candidates {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
