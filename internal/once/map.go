package once

import (
	"sync"
	"sync/atomic"
)

// Map memoizes one value per key. Concurrent callers asking for the same key
// observe the same result and compute runs at most once per key.
type Map[K comparable, V any] struct {
	cells sync.Map // K -> *Cell[V]
	n     atomic.Int64
}

func (m *Map[K, V]) cell(k K) *Cell[V] {
	if c, ok := m.cells.Load(k); ok {
		return c.(*Cell[V])
	}
	c, loaded := m.cells.LoadOrStore(k, new(Cell[V]))
	if !loaded {
		m.n.Add(1)
	}
	return c.(*Cell[V])
}

// LoadOrCompute returns the value for k, computing it on first request.
func (m *Map[K, V]) LoadOrCompute(k K, compute func() (V, error)) (V, error) {
	return m.cell(k).Do(compute)
}

// LoadOrStore returns the existing value for k or stores v.
// The boolean reports whether v was stored.
func (m *Map[K, V]) LoadOrStore(k K, v V) (V, bool) {
	return m.cell(k).Publish(v)
}

// Load returns the value for k if one has been published without error.
func (m *Map[K, V]) Load(k K) (V, bool) {
	var zero V
	c, ok := m.cells.Load(k)
	if !ok {
		return zero, false
	}
	v, ok, err := c.(*Cell[V]).Load()
	if !ok || err != nil {
		return zero, false
	}
	return v, true
}

// Range calls fn for every published, successful entry until fn returns false.
// Order is unspecified.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	m.cells.Range(func(key, c any) bool {
		v, ok, err := c.(*Cell[V]).Load()
		if !ok || err != nil {
			return true
		}
		return fn(key.(K), v)
	})
}

// Len returns the number of keys ever requested.
func (m *Map[K, V]) Len() int { return int(m.n.Load()) }
