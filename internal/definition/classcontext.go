package definition

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"aotc/internal/descriptor"
	"aotc/internal/once"
	"aotc/internal/types"
)

// ClassContext is the dictionary of classes defined by one loader.
type ClassContext struct {
	ctx         *Context
	name        string
	source      Source
	parent      *ClassContext
	defined     once.Map[string, *Defined]
	loads       singleflight.Group
	strs        sync.Map
	descriptors *descriptor.Resolver
}

func newDescriptorResolver(in *types.Interner, cc *ClassContext) *descriptor.Resolver {
	return descriptor.NewResolver(in, cc)
}

func (cc *ClassContext) Name() string      { return cc.name }
func (cc *ClassContext) Context() *Context { return cc.ctx }

// Deduplicate returns the canonical copy of s.
func (cc *ClassContext) Deduplicate(s string) string {
	v, _ := cc.strs.LoadOrStore(s, s)
	return v.(string)
}

func (cc *ClassContext) canonicalName(name string) string {
	return cc.Deduplicate(norm.NFC.String(name))
}

// DefineClass registers raw under name. Registering a name twice fails with
// ErrDuplicateClass; the first definition stays in place.
func (cc *ClassContext) DefineClass(name string, raw *RawDefinition) (*Defined, error) {
	if raw == nil {
		return nil, fmt.Errorf("define %s: nil definition", name)
	}
	name = cc.canonicalName(name)
	d := newDefined(cc, name, raw)
	got, stored := cc.defined.LoadOrStore(name, d)
	if !stored {
		return nil, fmt.Errorf("define %s in %s: %w", name, cc.name, ErrDuplicateClass)
	}
	cc.ctx.point("define", name)
	return got, nil
}

// Lookup returns an already defined class without loading.
func (cc *ClassContext) Lookup(name string) (*Defined, bool) {
	return cc.defined.Load(cc.canonicalName(name))
}

// FindDefinedType returns the class named name, asking the parent context
// first and loading from the source on a miss. Concurrent loads of one name
// share a single source lookup.
func (cc *ClassContext) FindDefinedType(name string) (*Defined, error) {
	name = cc.canonicalName(name)
	if cc.parent != nil {
		if d, err := cc.parent.FindDefinedType(name); err == nil {
			return d, nil
		} else if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}
	if d, ok := cc.defined.Load(name); ok {
		return d, nil
	}
	v, err, _ := cc.loads.Do(name, func() (any, error) {
		if d, ok := cc.defined.Load(name); ok {
			return d, nil
		}
		if cc.source == nil {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
		}
		raw, ok, err := cc.source.Find(name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
		}
		d, err := cc.DefineClass(name, raw)
		if errors.Is(err, ErrDuplicateClass) {
			// lost a race against an explicit DefineClass
			if d, ok := cc.defined.Load(name); ok {
				return d, nil
			}
		}
		return d, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Defined), nil
}

// ObjectType resolves a class name to its object type, loading as needed.
func (cc *ClassContext) ObjectType(name string) (types.TypeID, error) {
	d, err := cc.FindDefinedType(name)
	if err != nil {
		return types.NoTypeID, err
	}
	return d.ObjectType(), nil
}

// Defined returns every class defined in this context sorted by name.
func (cc *ClassContext) Defined() []*Defined {
	var out []*Defined
	cc.defined.Range(func(_ string, d *Defined) bool {
		out = append(out, d)
		return true
	})
	slices.SortFunc(out, func(a, b *Defined) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}
