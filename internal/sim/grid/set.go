package grid

import "github.com/elliotchance/orderedmap/v2"

// orderedSet is an insertion-ordered set. Iteration order is what makes provider
// tie-breaks and notification order deterministic.
type orderedSet[K comparable] struct {
	m *orderedmap.OrderedMap[K, struct{}]
}

func newOrderedSet[K comparable]() *orderedSet[K] {
	return &orderedSet[K]{m: orderedmap.NewOrderedMap[K, struct{}]()}
}

// Add inserts k and reports whether it was not present before.
func (s *orderedSet[K]) Add(k K) bool {
	if s.Has(k) {
		return false
	}
	s.m.Set(k, struct{}{})
	return true
}

func (s *orderedSet[K]) Has(k K) bool {
	_, ok := s.m.Get(k)
	return ok
}

func (s *orderedSet[K]) Delete(k K) bool { return s.m.Delete(k) }

func (s *orderedSet[K]) Len() int { return s.m.Len() }

// Keys returns a copy, so callers may mutate the set while ranging over it.
func (s *orderedSet[K]) Keys() []K { return s.m.Keys() }

func (s *orderedSet[K]) First() (K, bool) {
	el := s.m.Front()
	if el == nil {
		var zero K
		return zero, false
	}
	return el.Key, true
}

func (s *orderedSet[K]) Clear() {
	s.m = orderedmap.NewOrderedMap[K, struct{}]()
}
