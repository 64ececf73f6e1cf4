package definition

import (
	"aotc/internal/diag"
	"aotc/internal/once"
	"aotc/internal/types"
)

// Resolved is a class whose supertypes are bound and resolved.
type Resolved struct {
	verified   *Verified
	super      *Resolved
	interfaces []*Resolved
	prepared   once.Cell[*Prepared]
}

func (r *Resolved) Verified() *Verified      { return r.verified }
func (r *Resolved) Defined() *Defined        { return r.verified.defined }
func (r *Resolved) Name() string             { return r.verified.Name() }
func (r *Resolved) ObjectType() types.TypeID { return r.verified.ObjectType() }
func (r *Resolved) IsInterface() bool        { return r.verified.IsInterface() }

// Super returns the resolved superclass, nil for the root.
func (r *Resolved) Super() *Resolved { return r.super }

// Interfaces returns the directly implemented interfaces.
func (r *Resolved) Interfaces() []*Resolved { return r.interfaces }

// IsSubclassOf reports whether r is other or inherits from it.
func (r *Resolved) IsSubclassOf(other *Resolved) bool {
	if r == other {
		return true
	}
	if r.super != nil && r.super.IsSubclassOf(other) {
		return true
	}
	for _, i := range r.interfaces {
		if i.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// FindMethod looks the method up in r, its superclasses and then its
// interfaces.
func (r *Resolved) FindMethod(name, desc string) *Executable {
	for cur := r; cur != nil; cur = cur.super {
		if m := cur.verified.FindMethod(name, desc); m != nil {
			return m
		}
	}
	for cur := r; cur != nil; cur = cur.super {
		for _, i := range cur.interfaces {
			if m := i.FindMethod(name, desc); m != nil {
				return m
			}
		}
	}
	return nil
}

// Prepare prepares every ancestor, then computes this class's instance layout.
func (r *Resolved) Prepare() (*Prepared, error) {
	if p, ok, err := r.prepared.Load(); ok {
		return p, err
	}
	var ancestorErr error
	if r.super != nil {
		_, ancestorErr = r.super.Prepare()
	}
	for _, i := range r.interfaces {
		if ancestorErr != nil {
			break
		}
		_, ancestorErr = i.Prepare()
	}

	return r.prepared.Do(func() (*Prepared, error) {
		ctx := r.Defined().cc.ctx
		ctx.point("prepare", r.Name())
		fail := func(err error) (*Prepared, error) {
			perr := &PrepareError{Type: r.Name(), Err: err}
			ctx.report(diag.PrepareFailed, r.Name(), perr)
			return nil, perr
		}
		if ancestorErr != nil {
			return fail(ancestorErr)
		}
		p := &Prepared{resolved: r}
		if prep, ok := ctx.loadPreparer(); ok && !r.IsInterface() {
			layout, err := prep.PrepareLayout(r)
			if err != nil {
				return fail(err)
			}
			p.layout = layout
		}
		return p, nil
	})
}

// Prepared is a class whose own and inherited instance layout is computed.
type Prepared struct {
	resolved *Resolved
	layout   Layout
}

func (p *Prepared) Resolved() *Resolved { return p.resolved }
func (p *Prepared) Name() string        { return p.resolved.Name() }

// Layout returns the instance layout; nil for interfaces or when no
// Preparer is installed.
func (p *Prepared) Layout() Layout { return p.layout }
