package agent

import (
	"iter"

	"github.com/titan-sim/titan/internal/ordered"
)

// Set is a named, hierarchical agent container. Adding an agent adds it to
// every ancestor; removing it removes it from every descendant.
type Set struct {
	ID        string
	Parent    *Set
	Numerator *Set // reporting only

	members *ordered.Set[*Agent]
	subsets map[string]*Set
	order   []string
}

// NewSet creates a set and registers it as a subset of parent, when given.
func NewSet(id string, parent, numerator *Set) *Set {
	s := &Set{
		ID:        id,
		Parent:    parent,
		Numerator: numerator,
		members:   ordered.New[*Agent](),
		subsets:   make(map[string]*Set),
	}
	if parent != nil {
		parent.addSubset(s)
	}
	return s
}

func (s *Set) addSubset(sub *Set) {
	if _, ok := s.subsets[sub.ID]; !ok {
		s.order = append(s.order, sub.ID)
	}
	s.subsets[sub.ID] = sub
}

// Add inserts a into the set and its ancestors.
func (s *Set) Add(a *Agent) {
	for cur := s; cur != nil; cur = cur.Parent {
		cur.members.Add(a)
	}
}

// Remove deletes a from the set and all of its descendants.
func (s *Set) Remove(a *Agent) {
	if !s.members.Remove(a) {
		return
	}
	for _, id := range s.order {
		s.subsets[id].Remove(a)
	}
}

// Contains reports whether a is a member.
func (s *Set) Contains(a *Agent) bool { return s.members.Contains(a) }

// Len returns the number of members.
func (s *Set) Len() int { return s.members.Len() }

// All yields the members in insertion order.
func (s *Set) All() iter.Seq[*Agent] { return s.members.All() }

// Members returns a copy of the members in insertion order.
func (s *Set) Members() []*Agent { return s.members.Slice() }

// Subset returns the direct subset with the given id, or nil.
func (s *Set) Subset(id string) *Set { return s.subsets[id] }

// Subsets returns the direct subsets in creation order.
func (s *Set) Subsets() []*Set {
	out := make([]*Set, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.subsets[id])
	}
	return out
}

// Walk visits the set and every descendant depth-first.
func (s *Set) Walk(fn func(*Set)) {
	fn(s)
	for _, id := range s.order {
		s.subsets[id].Walk(fn)
	}
}
