package definition

import (
	"fmt"
	"slices"
	"sync"

	"aotc/internal/diag"
	"aotc/internal/once"
	"aotc/internal/types"
)

// Verified is a class whose descriptors resolved and whose elements exist.
// Its field set can still grow through InjectField until the instance
// layout seals it.
type Verified struct {
	defined *Defined
	methods []*Executable
	ctors   []*Executable
	init    *Executable

	mu     sync.Mutex
	fields []*FieldElement
	byName map[string]*FieldElement
	sealed bool

	resolved once.Cell[*Resolved]
}

func (v *Verified) Defined() *Defined        { return v.defined }
func (v *Verified) Name() string             { return v.defined.name }
func (v *Verified) ObjectType() types.TypeID { return v.defined.objType }
func (v *Verified) IsInterface() bool        { return v.defined.IsInterface() }

// Fields returns declared then injected fields in index order.
func (v *Verified) Fields() []*FieldElement {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.fields)
}

// InstanceFields returns the non-static fields in index order.
func (v *Verified) InstanceFields() []*FieldElement {
	return slices.DeleteFunc(v.Fields(), (*FieldElement).IsStatic)
}

// StaticFields returns the static fields in index order.
func (v *Verified) StaticFields() []*FieldElement {
	return slices.DeleteFunc(v.Fields(), func(f *FieldElement) bool { return !f.IsStatic() })
}

// Field looks a field up by name.
func (v *Verified) Field(name string) (*FieldElement, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f, ok := v.byName[name]
	return f, ok
}

// InjectField adds a synthetic field. Injecting a name that already exists
// returns the existing field, so the first writer wins. Once the instance
// layout sealed the field set, new names fail with ErrFieldsSealed.
func (v *Verified) InjectField(spec FieldSpec) (*FieldElement, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if f, ok := v.byName[spec.Name]; ok {
		return f, nil
	}
	if v.sealed {
		return nil, fmt.Errorf("inject %s into %s: %w", spec.Name, v.Name(), ErrFieldsSealed)
	}
	f := &FieldElement{
		Name:       v.defined.cc.Deduplicate(spec.Name),
		Descriptor: spec.Descriptor,
		Type:       spec.Type,
		Modifiers:  spec.Modifiers | AccSynthetic,
		Enclosing:  v.defined,
		Index:      len(v.fields),
	}
	v.fields = append(v.fields, f)
	v.byName[f.Name] = f
	return f, nil
}

// SealInstanceFields freezes the field set and returns the instance fields
// the layout must place.
func (v *Verified) SealInstanceFields() []*FieldElement {
	v.mu.Lock()
	v.sealed = true
	v.mu.Unlock()
	return v.InstanceFields()
}

// Sealed reports whether the field set is frozen.
func (v *Verified) Sealed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sealed
}

func (v *Verified) Methods() []*Executable      { return v.methods }
func (v *Verified) Constructors() []*Executable { return v.ctors }

// Initializer returns the static initializer, or nil.
func (v *Verified) Initializer() *Executable { return v.init }

// FindMethod finds a method declared by this type.
func (v *Verified) FindMethod(name, desc string) *Executable {
	for _, m := range v.methods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// FindConstructor finds a constructor by descriptor.
func (v *Verified) FindConstructor(desc string) *Executable {
	for _, c := range v.ctors {
		if c.Descriptor == desc {
			return c
		}
	}
	return nil
}

// Resolve binds the superclass and interfaces, resolving them first.
func (v *Verified) Resolve() (*Resolved, error) {
	return v.resolve(nil)
}

func (v *Verified) resolve(stack []*Verified) (*Resolved, error) {
	if r, ok, err := v.resolved.Load(); ok {
		return r, err
	}
	if slices.Contains(stack, v) {
		return nil, &ResolutionError{Type: v.Name(), Chain: []string{v.Name()}, Err: ErrCircularity}
	}
	stack = append(stack, v)

	var (
		super       *Resolved
		ifaces      []*Resolved
		ancestorErr error
	)
	if name := v.defined.SuperName(); name != "" {
		super, ancestorErr = v.resolveAncestor(name, stack)
	}
	for _, name := range v.defined.raw.Interfaces {
		if ancestorErr != nil {
			break
		}
		var r *Resolved
		r, ancestorErr = v.resolveAncestor(name, stack)
		if ancestorErr == nil && !r.IsInterface() {
			ancestorErr = fmt.Errorf("%s is not an interface", name)
		}
		ifaces = append(ifaces, r)
	}
	if ancestorErr == nil && super != nil && super.IsInterface() {
		ancestorErr = fmt.Errorf("superclass %s is an interface", super.Name())
	}

	return v.resolved.Do(func() (*Resolved, error) {
		ctx := v.defined.cc.ctx
		ctx.point("resolve", v.Name())
		if ancestorErr != nil {
			err := &ResolutionError{Type: v.Name(), Chain: chainOf(v.Name(), ancestorErr), Err: ancestorErr}
			ctx.report(diag.ResolutionFailed, v.Name(), err)
			return nil, err
		}
		if super != nil && !v.IsInterface() {
			ctx.types.SetSuper(v.ObjectType(), super.ObjectType())
		}
		return &Resolved{verified: v, super: super, interfaces: ifaces}, nil
	})
}

func (v *Verified) resolveAncestor(name string, stack []*Verified) (*Resolved, error) {
	d, err := v.defined.cc.FindDefinedType(name)
	if err != nil {
		return nil, err
	}
	av, err := d.Verify()
	if err != nil {
		return nil, err
	}
	return av.resolve(stack)
}
