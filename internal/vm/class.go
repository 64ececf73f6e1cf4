package vm

import (
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"aotc/internal/definition"
	"aotc/internal/memory"
)

// ErrInitFailed is returned for a class whose initializer failed before.
var ErrInitFailed = errors.New("class initialization failed")

// InitState is the initialization progress of a class.
type InitState uint8

const (
	InitPending InitState = iota
	InitRunning
	InitDone
	InitFailed
)

// Class is the runtime representation of a verified class. Static fields
// live in one 64-bit slot each.
type Class struct {
	verified *definition.Verified
	loader   *Loader

	statics *memory.Int64Memory
	slots   map[*definition.FieldElement]int64

	mu      sync.Mutex
	state   InitState
	owner   *Thread
	done    chan struct{}
	initErr error
}

func newClass(v *definition.Verified, loader *Loader) (*Class, error) {
	fields := v.StaticFields()
	size, err := safecast.Conv[int64](len(fields) * 8)
	if err != nil {
		return nil, fmt.Errorf("statics of %s: %w", v.Name(), err)
	}
	statics, err := memory.NewInt64Memory(size)
	if err != nil {
		return nil, fmt.Errorf("statics of %s: %w", v.Name(), err)
	}
	c := &Class{
		verified: v,
		loader:   loader,
		statics:  statics,
		slots:    make(map[*definition.FieldElement]int64, len(fields)),
		done:     make(chan struct{}),
	}
	for i, f := range fields {
		c.slots[f] = int64(i) * 8
	}
	return c, nil
}

func (c *Class) Name() string                   { return c.verified.Name() }
func (c *Class) Verified() *definition.Verified { return c.verified }
func (c *Class) Loader() *Loader                { return c.loader }
func (c *Class) Statics() memory.Memory         { return c.statics }

// State returns the current initialization state.
func (c *Class) State() InitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StaticOffset returns the slot offset of static field f.
func (c *Class) StaticOffset(f *definition.FieldElement) (int64, error) {
	off, ok := c.slots[f]
	if !ok {
		return 0, fmt.Errorf("%s is not a static field of %s", f, c.Name())
	}
	return off, nil
}

// LoadStatic reads static field f with the given access mode.
func (c *Class) LoadStatic(f *definition.FieldElement, mode memory.AccessMode) (int64, error) {
	off, err := c.StaticOffset(f)
	if err != nil {
		return 0, err
	}
	return c.statics.Load64(off, mode)
}

// StoreStatic writes static field f. Final fields may only be written by
// the thread running the class initializer.
func (c *Class) StoreStatic(t *Thread, f *definition.FieldElement, v int64, mode memory.AccessMode) error {
	off, err := c.StaticOffset(f)
	if err != nil {
		return err
	}
	if f.IsFinal() {
		c.mu.Lock()
		owner, state := c.owner, c.state
		c.mu.Unlock()
		if state != InitRunning || owner != t {
			return fmt.Errorf("store to final %s outside its initializer", f)
		}
	}
	return c.statics.Store64(off, v, mode)
}

// Initialize runs the class initializer once, on thread t. A recursive
// request from the thread already running it returns at once; other
// threads wait until it finishes. A failed initialization stays failed.
func (c *Class) Initialize(t *Thread, run func(*Thread) error) error {
	if t == nil {
		return fmt.Errorf("initialize %s: no thread: %w", c.Name(), definition.ErrInvariant)
	}
	c.mu.Lock()
	switch c.state {
	case InitDone:
		c.mu.Unlock()
		return nil
	case InitFailed:
		err := c.initErr
		c.mu.Unlock()
		return err
	case InitRunning:
		if c.owner == t {
			c.mu.Unlock()
			return nil
		}
		done := c.done
		c.mu.Unlock()
		<-done
		return c.result()
	}
	c.state, c.owner = InitRunning, t
	c.mu.Unlock()

	var err error
	if run != nil {
		err = run(t)
	}

	c.mu.Lock()
	if err != nil {
		c.state = InitFailed
		c.initErr = fmt.Errorf("%s: %w: %w", c.Name(), ErrInitFailed, err)
	} else {
		c.state = InitDone
	}
	c.owner = nil
	close(c.done)
	c.mu.Unlock()
	return c.result()
}

func (c *Class) result() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErr
}
