package vm

import (
	"cmp"
	"slices"
	"sync/atomic"
)

// Thread is a logical interpreter thread. There is no ambient current
// thread: operations that act on behalf of a thread take it explicitly.
type Thread struct {
	id     uint64
	name   string
	daemon bool
	reg    *Registry
	closed atomic.Bool
}

// NewThread creates and registers a live thread.
func (r *Registry) NewThread(name string, daemon bool) *Thread {
	t := &Thread{id: r.threadID.Add(1), name: name, daemon: daemon, reg: r}
	r.threadMu.Lock()
	r.threads[t.id] = t
	r.threadMu.Unlock()
	return t
}

// Threads returns the live threads ordered by creation.
func (r *Registry) Threads() []*Thread {
	r.threadMu.Lock()
	out := make([]*Thread, 0, len(r.threads))
	for _, t := range r.threads {
		out = append(out, t)
	}
	r.threadMu.Unlock()
	slices.SortFunc(out, func(a, b *Thread) int { return cmp.Compare(a.id, b.id) })
	return out
}

func (t *Thread) ID() uint64     { return t.id }
func (t *Thread) Name() string   { return t.name }
func (t *Thread) Daemon() bool   { return t.daemon }
func (t *Thread) Closed() bool   { return t.closed.Load() }
func (t *Thread) String() string { return t.name }

// Close unregisters t. Closing twice has no effect.
func (t *Thread) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.reg.threadMu.Lock()
	delete(t.reg.threads, t.id)
	t.reg.threadMu.Unlock()
}
