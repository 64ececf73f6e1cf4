// Package compile schedules reachable executable elements for compilation
// and gives each a stable mangled function identity.
//
// Elements enter through registered entry points and are discovered
// transitively by the graph builder, which enqueues callees. Enqueue is a
// test-and-set: an element is queued at most once per run no matter how
// many callers discover it concurrently.
package compile

import (
	"cmp"
	"slices"
	"sync"

	"aotc/internal/definition"
	"aotc/internal/object"
	"aotc/internal/once"
	"aotc/internal/types"
)

// Options configures a Context.
type Options struct {
	// ThreadClass receives the hidden thrown field and types the thread
	// parameter of every function.
	ThreadClass string
	// ThrowableClass types the thrown field.
	ThrowableClass string
	// OutputDir is the root of per-class output directories.
	OutputDir string
}

func (o Options) withDefaults() Options {
	if o.ThreadClass == "" {
		o.ThreadClass = "java/lang/Thread"
	}
	if o.ThrowableClass == "" {
		o.ThrowableClass = "java/lang/Throwable"
	}
	if o.OutputDir == "" {
		o.OutputDir = "out"
	}
	return o
}

type virtualKey struct {
	element  *definition.Executable
	receiver *definition.Defined
}

// Context is the scheduler state of one compilation.
type Context struct {
	defs  *definition.Context
	types *types.Interner
	opts  Options

	entries once.Set[*definition.Executable]
	queued  once.Set[*definition.Executable]

	mu      sync.Mutex
	pending []*definition.Executable

	modules  once.Map[*definition.Defined, *object.ProgramModule]
	exact    once.Map[*definition.Executable, *object.Function]
	virtual  once.Map[virtualKey, *object.Function]
	threadT  once.Cell[types.TypeID]
	excField once.Cell[*definition.FieldElement]
}

// NewContext creates a scheduler over the classes of defs.
func NewContext(defs *definition.Context, opts Options) *Context {
	return &Context{defs: defs, types: defs.Types(), opts: opts.withDefaults()}
}

func (c *Context) Definitions() *definition.Context { return c.defs }
func (c *Context) Types() *types.Interner           { return c.types }
func (c *Context) Options() Options                 { return c.opts }

// RegisterEntryPoint marks e as a root. Registering twice has no effect.
func (c *Context) RegisterEntryPoint(e *definition.Executable) {
	c.entries.Add(e)
}

// EntryPoints returns the roots in a stable order.
func (c *Context) EntryPoints() []*definition.Executable {
	var out []*definition.Executable
	c.entries.Range(func(e *definition.Executable) bool {
		out = append(out, e)
		return true
	})
	slices.SortFunc(out, compareElements)
	return out
}

func compareElements(a, b *definition.Executable) int {
	return cmp.Or(
		cmp.Compare(a.Enclosing.Name(), b.Enclosing.Name()),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Index, b.Index),
	)
}

// Enqueue adds e to the work set unless it was ever enqueued before. It
// reports true only to the caller that actually queued it.
func (c *Context) Enqueue(e *definition.Executable) bool {
	if !c.queued.Add(e) {
		return false
	}
	c.mu.Lock()
	c.pending = append(c.pending, e)
	c.mu.Unlock()
	return true
}

// WasEnqueued reports whether e was ever enqueued.
func (c *Context) WasEnqueued(e *definition.Executable) bool {
	return c.queued.Contains(e)
}

// Dequeue removes one pending element. It never blocks and returns
// (nil, false) when nothing is pending.
func (c *Context) Dequeue() (*definition.Executable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, false
	}
	e := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return e, true
}

// Pending returns the number of queued, not yet dequeued elements.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ClearEnqueued forgets which elements were enqueued so a later pass can
// rediscover them. Pending elements stay queued.
func (c *Context) ClearEnqueued() {
	c.queued.Clear()
}

// ProgramModule returns the output module of d, creating it on first use.
func (c *Context) ProgramModule(d *definition.Defined) *object.ProgramModule {
	m, _ := c.modules.LoadOrStore(d, object.NewProgramModule(d.Name(), d.ObjectType()))
	return m
}

// ProgramModules returns every module sorted by class name.
func (c *Context) ProgramModules() []*object.ProgramModule {
	var out []*object.ProgramModule
	c.modules.Range(func(_ *definition.Defined, m *object.ProgramModule) bool {
		out = append(out, m)
		return true
	})
	slices.SortFunc(out, func(a, b *object.ProgramModule) int {
		return cmp.Compare(a.TypeName(), b.TypeName())
	})
	return out
}

// ImplicitSection is the implicit section of e's declaring class.
func (c *Context) ImplicitSection(e *definition.Executable) *object.Section {
	return c.ProgramModule(e.Enclosing).ImplicitSection()
}
