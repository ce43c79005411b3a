// Package ordered provides an insertion-ordered set.
//
// Simulation state is iterated every step (agents, partners, relationships),
// and runs must be reproducible for a fixed seed, so iteration order cannot
// depend on Go's randomized map order.
package ordered

import "iter"

// compactThreshold is the minimum number of removed slots before a set is
// compacted.
const compactThreshold = 32

// Set is an insertion-ordered set. The zero value is ready to use.
// A Set must not be mutated while it is being iterated with All; iterate
// over Slice instead when the loop body adds or removes members.
type Set[T comparable] struct {
	index map[T]int
	items []T
	alive []bool
	dead  int
}

// New returns a set containing the given items in order.
func New[T comparable](items ...T) *Set[T] {
	s := &Set[T]{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item at the end of the set. It reports whether the item was
// newly added.
func (s *Set[T]) Add(item T) bool {
	if s.index == nil {
		s.index = make(map[T]int)
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	s.alive = append(s.alive, true)
	return true
}

// Remove deletes item from the set. It reports whether the item was present.
func (s *Set[T]) Remove(item T) bool {
	pos, ok := s.index[item]
	if !ok {
		return false
	}
	delete(s.index, item)
	s.alive[pos] = false
	var zero T
	s.items[pos] = zero
	s.dead++
	if s.dead >= compactThreshold && s.dead*2 > len(s.items) {
		s.compact()
	}
	return true
}

// Contains reports whether item is a member.
func (s *Set[T]) Contains(item T) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[item]
	return ok
}

// Len returns the number of members.
func (s *Set[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}

// All yields members in insertion order.
func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if s == nil {
			return
		}
		for i, item := range s.items {
			if !s.alive[i] {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// Slice returns a copy of the members in insertion order.
func (s *Set[T]) Slice() []T {
	if s == nil {
		return nil
	}
	out := make([]T, 0, len(s.index))
	for i, item := range s.items {
		if s.alive[i] {
			out = append(out, item)
		}
	}
	return out
}

// Clear removes every member.
func (s *Set[T]) Clear() {
	s.index = nil
	s.items = nil
	s.alive = nil
	s.dead = 0
}

// Clone returns a shallow copy of the set.
func (s *Set[T]) Clone() *Set[T] {
	return New(s.Slice()...)
}

// Filter returns the members for which keep returns true, in order.
func (s *Set[T]) Filter(keep func(T) bool) []T {
	if s == nil {
		return nil
	}
	out := make([]T, 0)
	for item := range s.All() {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Set[T]) compact() {
	items := make([]T, 0, len(s.index))
	alive := make([]bool, 0, len(s.index))
	for i, item := range s.items {
		if !s.alive[i] {
			continue
		}
		s.index[item] = len(items)
		items = append(items, item)
		alive = append(alive, true)
	}
	s.items = items
	s.alive = alive
	s.dead = 0
}
