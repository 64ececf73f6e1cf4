// Package layout assigns byte offsets to the instance fields of every class.
//
// Fields are placed first-fit into an allocation bitset seeded with the
// superclass's bitset, so a subclass never moves an inherited field and an
// instance can always be used as its superclass.
package layout

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/bits-and-blooms/bitset"

	"aotc/internal/definition"
	"aotc/internal/once"
	"aotc/internal/types"
)

// Engine computes and caches instance layouts for one compilation.
type Engine struct {
	ctx   *definition.Context
	types *types.Interner
	infos once.Map[types.TypeID, *Info]
	hdr   header
}

// Options selects the classes that receive header fields.
type Options struct {
	// RootClass receives the klass type-id slot. Empty disables header and
	// array type synthesis.
	RootClass string
	// ClassClass receives the id slot. Empty skips it.
	ClassClass string
}

// New creates the engine, injects header fields, defines the array types and
// installs the engine as ctx's Preparer.
func New(ctx *definition.Context, opts Options) (*Engine, error) {
	e := &Engine{ctx: ctx, types: ctx.Types()}
	if opts.RootClass != "" {
		if err := e.setup(opts); err != nil {
			return nil, &LayoutError{Kind: LayoutErrSetup, Type: opts.RootClass, Err: err}
		}
	}
	ctx.SetPreparer(e)
	return e, nil
}

// InstanceLayoutInfo returns the layout of r, computing the superclass
// layout first when needed. Interfaces have no layout.
func (e *Engine) InstanceLayoutInfo(r *definition.Resolved) (*Info, error) {
	if r.IsInterface() {
		return nil, &LayoutError{Kind: LayoutErrInterface, Type: r.Name(), Err: ErrInterfaceLayout}
	}
	if info, ok := e.infos.Load(r.ObjectType()); ok {
		return info, nil
	}
	var super *Info
	if s := r.Super(); s != nil {
		si, err := e.InstanceLayoutInfo(s)
		if err != nil {
			return nil, &LayoutError{Kind: LayoutErrSuperLayout, Type: r.Name(), Err: err}
		}
		super = si
	}
	return e.infos.LoadOrCompute(r.ObjectType(), func() (*Info, error) {
		return e.compute(r, super)
	})
}

// PrepareLayout lets the engine serve as the definition Preparer.
func (e *Engine) PrepareLayout(r *definition.Resolved) (definition.Layout, error) {
	info, err := e.InstanceLayoutInfo(r)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// LayoutOf resolves the class named by d and returns its layout.
func (e *Engine) LayoutOf(d *definition.Defined) (*Info, error) {
	v, err := d.Verify()
	if err != nil {
		return nil, err
	}
	r, err := v.Resolve()
	if err != nil {
		return nil, err
	}
	return e.InstanceLayoutInfo(r)
}

// FieldOffset returns the byte offset of an instance field.
func (e *Engine) FieldOffset(f *definition.FieldElement) (uint64, error) {
	if f.IsStatic() {
		return 0, &LayoutError{Kind: LayoutErrStaticField, Type: f.Enclosing.Name(), Field: f.Name}
	}
	info, err := e.LayoutOf(f.Enclosing)
	if err != nil {
		return 0, err
	}
	m, ok := info.Member(f)
	if !ok {
		return 0, fmt.Errorf("layout %s: field %s was not laid out", info.typeName, f.Name)
	}
	return m.Offset, nil
}

func (e *Engine) compute(r *definition.Resolved, super *Info) (*Info, error) {
	info := &Info{
		typeName: r.Name(),
		objType:  r.ObjectType(),
		super:    super,
		byIndex:  make(map[int]types.Member),
		align:    1,
	}
	if super != nil {
		info.bits = super.bits.Clone()
		info.size = super.size
		info.align = super.align
	} else {
		info.bits = bitset.New(64)
	}

	fields := r.Verified().SealInstanceFields()
	members := make([]types.Member, 0, len(fields))
	for _, f := range fields {
		m, err := e.place(info, f)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		info.byIndex[f.Index] = m
		info.fields = append(info.fields, f)
	}
	info.record = &types.Compound{
		Tag:     types.TagStruct,
		Name:    r.Defined().DottedName(),
		Size:    info.size,
		Align:   info.align,
		Members: members,
	}
	info.compound = e.types.NewCompound(*info.record)
	return info, nil
}

func (e *Engine) place(info *Info, f *definition.FieldElement) (types.Member, error) {
	fail := func(kind LayoutErrorKind, err error) (types.Member, error) {
		return types.Member{}, &LayoutError{Kind: kind, Type: info.typeName, Field: f.Name, Err: err}
	}
	size, err := e.types.Size(f.Type)
	if err != nil {
		return fail(LayoutErrUnsizedField, err)
	}
	align, err := e.types.Align(f.Type)
	if err != nil {
		return fail(LayoutErrUnsizedField, err)
	}
	if !isPowerOfTwo(align) {
		return fail(LayoutErrAlignment, fmt.Errorf("alignment %d", align))
	}
	usize, err := safecast.Conv[uint](size)
	if err != nil {
		return fail(LayoutErrUnsizedField, err)
	}
	ualign, err := safecast.Conv[uint](align)
	if err != nil {
		return fail(LayoutErrAlignment, err)
	}
	off := find(info.bits, ualign, usize)
	occupy(info.bits, off, usize)
	offset := uint64(off)
	info.size = max(info.size, offset+size)
	info.align = max(info.align, align)
	return types.Member{Name: f.Name, Type: f.Type, Offset: offset, Align: align}, nil
}
