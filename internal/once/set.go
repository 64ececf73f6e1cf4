package once

import (
	"sync"
	"sync/atomic"
)

// Set is a concurrent set whose Add reports first insertion.
type Set[K comparable] struct {
	m sync.Map
	n atomic.Int64
}

// Add inserts k and reports whether this call inserted it.
func (s *Set[K]) Add(k K) bool {
	if _, loaded := s.m.LoadOrStore(k, struct{}{}); loaded {
		return false
	}
	s.n.Add(1)
	return true
}

// Contains reports membership.
func (s *Set[K]) Contains(k K) bool {
	_, ok := s.m.Load(k)
	return ok
}

// Range calls fn for each member until fn returns false.
func (s *Set[K]) Range(fn func(K) bool) {
	s.m.Range(func(k, _ any) bool { return fn(k.(K)) })
}

// Clear removes every member.
func (s *Set[K]) Clear() {
	s.m.Range(func(k, _ any) bool {
		if _, ok := s.m.LoadAndDelete(k); ok {
			s.n.Add(-1)
		}
		return true
	})
}

// Len returns the number of members.
func (s *Set[K]) Len() int { return int(s.n.Load()) }
