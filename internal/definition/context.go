package definition

import (
	"sync/atomic"

	"aotc/internal/diag"
	"aotc/internal/trace"
	"aotc/internal/types"
)

// Layout is the instance layout a Preparer computes for a class.
type Layout interface {
	Size() uint64
	Align() uint64
}

// Preparer computes the own instance layout of a resolved class. It is
// called once per class, after every ancestor is prepared, and never for
// interfaces.
type Preparer interface {
	PrepareLayout(r *Resolved) (Layout, error)
}

// Options configures a Context.
type Options struct {
	// RootClass is the only class allowed to have no superclass. Empty
	// disables the check.
	RootClass string
	Reporter  diag.Reporter
	Tracer    trace.Tracer
}

// Context is shared by every class context of one compilation.
type Context struct {
	types     *types.Interner
	opts      Options
	preparer  atomic.Pointer[Preparer]
	bootstrap *ClassContext
}

// NewContext creates a compilation context whose bootstrap class context
// loads from src.
func NewContext(in *types.Interner, src Source, opts Options) *Context {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	c := &Context{types: in, opts: opts}
	c.bootstrap = c.NewClassContext("bootstrap", src, nil)
	return c
}

func (c *Context) Types() *types.Interner   { return c.types }
func (c *Context) Bootstrap() *ClassContext { return c.bootstrap }
func (c *Context) RootClass() string        { return c.opts.RootClass }
func (c *Context) Reporter() diag.Reporter  { return c.opts.Reporter }
func (c *Context) Tracer() trace.Tracer     { return c.opts.Tracer }

// SetPreparer installs the layout hook. It must be called before the first
// Prepare.
func (c *Context) SetPreparer(p Preparer) { c.preparer.Store(&p) }

func (c *Context) loadPreparer() (Preparer, bool) {
	p := c.preparer.Load()
	if p == nil || *p == nil {
		return nil, false
	}
	return *p, true
}

// NewClassContext creates a class dictionary. Lookups consult parent first.
func (c *Context) NewClassContext(name string, src Source, parent *ClassContext) *ClassContext {
	cc := &ClassContext{ctx: c, name: name, source: src, parent: parent}
	cc.descriptors = newDescriptorResolver(c.types, cc)
	return cc
}

func (c *Context) report(code diag.Code, typeName string, err error) {
	diag.ReportError(c.opts.Reporter, code, diag.TypeLocation(typeName), err.Error()).Emit()
}

func (c *Context) point(stage, typeName string) {
	trace.Point(c.opts.Tracer, trace.ScopeType, stage, typeName)
}
