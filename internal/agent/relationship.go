package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfRelationship is returned when both ends of a relationship are the
	// same agent.
	ErrSelfRelationship = errors.New("agent cannot partner with itself")

	// ErrDuplicatePartner is returned when two agents are already partnered in
	// the bond type.
	ErrDuplicatePartner = errors.New("agents are already partners in this bond type")
)

// Relationship is an undirected partnership between two distinct agents.
type Relationship struct {
	ID           int64
	Agent1       *Agent
	Agent2       *Agent
	BondType     string
	Duration     int // remaining steps
	TotalSexActs int
}

// NewRelationship bonds a1 and a2 and registers the relationship with both.
func NewRelationship(id int64, a1, a2 *Agent, bond string, duration int) (*Relationship, error) {
	if a1 == a2 {
		return nil, fmt.Errorf("relationship %d (%s): %w", id, a1, ErrSelfRelationship)
	}
	if a1.Partners(bond).Contains(a2) || a2.Partners(bond).Contains(a1) {
		return nil, fmt.Errorf("relationship %d (%s, %s, %s): %w", id, a1, a2, bond, ErrDuplicatePartner)
	}
	r := &Relationship{
		ID:       id,
		Agent1:   a1,
		Agent2:   a2,
		BondType: bond,
		Duration: duration,
	}
	r.bond()
	return r, nil
}

func (r *Relationship) bond() {
	r.Agent1.Partners(r.BondType).Add(r.Agent2)
	r.Agent2.Partners(r.BondType).Add(r.Agent1)
	r.Agent1.relationships.Add(r)
	r.Agent2.relationships.Add(r)
}

// Unbond removes the relationship from both agents.
func (r *Relationship) Unbond() {
	r.Agent1.Partners(r.BondType).Remove(r.Agent2)
	r.Agent2.Partners(r.BondType).Remove(r.Agent1)
	r.Agent1.relationships.Remove(r)
	r.Agent2.relationships.Remove(r)
}

// Progress ages the relationship by one step. It reports true, after
// unbonding, when force is set or the duration has run out.
func (r *Relationship) Progress(force bool) bool {
	if force || r.Duration <= 0 {
		r.Unbond()
		return true
	}
	r.Duration--
	return false
}

// Partner returns the other end of the relationship.
func (r *Relationship) Partner(a *Agent) *Agent {
	if r.Agent1 == a {
		return r.Agent2
	}
	return r.Agent1
}

// Agents returns both ends.
func (r *Relationship) Agents() (*Agent, *Agent) { return r.Agent1, r.Agent2 }

func (r *Relationship) String() string {
	return fmt.Sprintf("rel-%d(%d-%d %s)", r.ID, r.Agent1.ID, r.Agent2.ID, r.BondType)
}
