// Package once holds the compute-once primitives the type pipeline and the
// value graph are built on: a single lazily published value, a keyed map of
// such values and a test-and-set membership set.
package once

import (
	"sync"
	"sync/atomic"
)

type result[T any] struct {
	val T
	err error
}

// Cell publishes a value at most once. Readers that observe a published
// value never block. A failed computation is published as well and is not
// retried.
type Cell[T any] struct {
	done atomic.Pointer[result[T]]
	mu   sync.Mutex
}

// Load returns the published value, if any.
func (c *Cell[T]) Load() (T, bool, error) {
	if r := c.done.Load(); r != nil {
		return r.val, true, r.err
	}
	var zero T
	return zero, false, nil
}

// Do returns the published value, running compute under the cell lock if
// nothing has been published yet. compute must not call Do on the same cell.
func (c *Cell[T]) Do(compute func() (T, error)) (T, error) {
	if r := c.done.Load(); r != nil {
		return r.val, r.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.done.Load(); r != nil {
		return r.val, r.err
	}
	v, err := compute()
	c.done.Store(&result[T]{val: v, err: err})
	return v, err
}

// Publish stores v unless a value is already present and returns the winner.
func (c *Cell[T]) Publish(v T) (T, bool) {
	if r := c.done.Load(); r != nil {
		return r.val, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.done.Load(); r != nil {
		return r.val, false
	}
	c.done.Store(&result[T]{val: v})
	return v, true
}
