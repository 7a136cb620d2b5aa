// Package ds provides small generic data structures used by the runtime.
package ds

import "fmt"

// Set is an ordered set: O(1) membership tests and deterministic iteration in
// insertion order. Fan-out requests use it to track which request ids are
// still outstanding while keeping the target order intact.
//
// A Set is not safe for concurrent use.
type Set[T comparable] struct {
	items map[T]int // value -> position in order
	order []T
	gone  int // removed entries still present in order
}

// NewSet creates a new set with the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{items: make(map[T]int, len(items)), order: make([]T, 0, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s *Set[T]) String() string { return fmt.Sprintf("%v", s.Values()) }

// Add adds v. Reports false if v was already present.
func (s *Set[T]) Add(v T) bool {
	if _, ok := s.items[v]; ok {
		return false
	}
	s.items[v] = len(s.order)
	s.order = append(s.order, v)
	return true
}

// Remove removes v. Reports whether v was present.
func (s *Set[T]) Remove(v T) bool {
	pos, ok := s.items[v]
	if !ok {
		return false
	}
	delete(s.items, v)
	var zero T
	s.order[pos] = zero
	s.gone++
	if s.gone > 32 && s.gone > len(s.order)/2 {
		s.compact()
	}
	return true
}

// Contains reports whether v is present.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// Index returns the insertion rank of v among the present elements.
func (s *Set[T]) Index(v T) (int, bool) {
	pos, ok := s.items[v]
	if !ok {
		return 0, false
	}
	rank := 0
	for i := 0; i < pos; i++ {
		if _, live := s.items[s.order[i]]; live && s.items[s.order[i]] == i {
			rank++
		}
	}
	return rank, true
}

// Len returns the number of elements.
func (s *Set[T]) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no elements.
func (s *Set[T]) IsEmpty() bool { return len(s.items) == 0 }

// ForEach calls fn for every element in insertion order.
func (s *Set[T]) ForEach(fn func(T)) {
	for i, v := range s.order {
		if pos, ok := s.items[v]; ok && pos == i {
			fn(v)
		}
	}
}

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, 0, len(s.items))
	s.ForEach(func(v T) { out = append(out, v) })
	return out
}

// Clear removes all elements.
func (s *Set[T]) Clear() {
	s.items = make(map[T]int)
	s.order = nil
	s.gone = 0
}

func (s *Set[T]) compact() {
	values := s.Values()
	s.order = values
	for i, v := range values {
		s.items[v] = i
	}
	s.gone = 0
}
