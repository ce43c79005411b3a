// Package agent defines the simulated people, the relationships between them
// and the hierarchical agent sets used for reporting.
package agent

import (
	"fmt"
	"strings"

	"github.com/titan-sim/titan/internal/location"
	"github.com/titan-sim/titan/internal/ordered"
	"github.com/titan-sim/titan/internal/params"
)

// Agent is one simulated person.
type Agent struct {
	ID       int64
	Race     string
	SexType  string
	DrugType string
	SexRole  string
	Age      int
	Location *location.Location

	// Component labels the connected component of the partnership graph the
	// agent belongs to; "-1" once removed.
	Component string

	partners        map[string]*ordered.Set[*Agent]
	MeanNumPartners map[string]float64
	TargetPartners  map[string]int
	relationships   *ordered.Set[*Relationship]

	HIV              HIV
	MonkeyPox        MonkeyPox
	Knowledge        Knowledge
	HAART            HAART
	PrEP             PrEP
	Vaccine          Vaccine
	Incar            Incar
	HighRisk         HighRisk
	SyringeServices  Record
	PartnerTracing   PartnerTracing
	RandomTrial      RandomTrial
	MSMW             Record
	ExternalExposure ExternalExposure
}

// New returns an agent with empty partner state for the given bond types.
func New(id int64, bondTypes []string) *Agent {
	a := &Agent{
		ID:              id,
		partners:        make(map[string]*ordered.Set[*Agent], len(bondTypes)),
		MeanNumPartners: make(map[string]float64, len(bondTypes)),
		TargetPartners:  make(map[string]int, len(bondTypes)),
		relationships:   ordered.New[*Relationship](),
	}
	for _, b := range bondTypes {
		a.partners[b] = ordered.New[*Agent]()
	}
	return a
}

func (a *Agent) String() string { return fmt.Sprintf("agent-%d", a.ID) }

// Partners returns the partner set for a bond type. The set must not be
// modified by callers; relationships maintain it.
func (a *Agent) Partners(bond string) *ordered.Set[*Agent] {
	s, ok := a.partners[bond]
	if !ok {
		s = ordered.New[*Agent]()
		a.partners[bond] = s
	}
	return s
}

// NumPartners returns the number of partners in the given bond types, or in
// every bond type when none are given.
func (a *Agent) NumPartners(bonds ...string) int {
	if len(bonds) == 0 {
		return a.relationships.Len()
	}
	n := 0
	for _, b := range bonds {
		n += a.partners[b].Len()
	}
	return n
}

// AllPartners returns every partner once, in order of the relationships that
// bind them.
func (a *Agent) AllPartners() []*Agent {
	seen := make(map[*Agent]bool)
	var out []*Agent
	for r := range a.relationships.All() {
		p := r.Partner(a)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// HasPartners reports whether the agent is in any relationship.
func (a *Agent) HasPartners() bool { return a.relationships.Len() > 0 }

// Relationships returns the agent's relationships in formation order.
func (a *Agent) Relationships() []*Relationship { return a.relationships.Slice() }

// IsPWID reports whether the agent injects drugs.
func (a *Agent) IsPWID() bool { return a.DrugType == "Inj" }

// Partnerable reports whether the agent may take another partner of the bond
// type given the partnership buffer.
func (a *Agent) Partnerable(bond string, buffer float64) bool {
	return float64(a.partners[bond].Len()) <= float64(a.TargetPartners[bond])*buffer
}

// NeedsPartners reports whether the agent is below its target for bond.
func (a *Agent) NeedsPartners(bond string) bool {
	return a.partners[bond].Len() < a.TargetPartners[bond]
}

// Attr returns the attribute at a dotted path: a demographic attribute
// ("race", "location", "location.category") or a feature field
// ("hiv.active", "prep.type").
func (a *Agent) Attr(path string) (any, bool) {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case "id":
		return a.ID, rest == ""
	case "race":
		return a.Race, rest == ""
	case "sex_type":
		return a.SexType, rest == ""
	case "drug_type":
		return a.DrugType, rest == ""
	case "sex_role":
		return a.SexRole, rest == ""
	case "age":
		return a.Age, rest == ""
	case "component":
		return a.Component, rest == ""
	case "location":
		if a.Location == nil {
			return "", rest == "" || rest == "name" || rest == "category"
		}
		switch rest {
		case "", "name":
			return a.Location.Name, true
		case "category":
			return a.Location.Category, true
		}
		return nil, false
	}
	rec := a.record(head)
	if rec == nil {
		return nil, false
	}
	if rest == "" {
		rest = "active"
	}
	return rec.attr(rest)
}

// StrAttr returns Attr formatted as a string, or "" when the path is unknown.
func (a *Agent) StrAttr(path string) string {
	v, ok := a.Attr(path)
	if !ok {
		return ""
	}
	return params.FormatScalar(v)
}

// ValidAttr reports whether path names an agent attribute.
func ValidAttr(path string) bool {
	_, ok := New(0, nil).Attr(path)
	return ok
}
