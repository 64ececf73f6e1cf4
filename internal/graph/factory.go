package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"aotc/internal/definition"
	"aotc/internal/memory"
	"aotc/internal/once"
	"aotc/internal/types"
)

var (
	// ErrTypeMismatch is wrapped by errors for operands of the wrong type.
	ErrTypeMismatch = errors.New("operand type mismatch")
	// ErrNotHandle is wrapped when a value is used where a handle is required.
	ErrNotHandle = errors.New("operand is not a handle")
	// ErrNotWritable is wrapped when storing through a read-only handle.
	ErrNotWritable = errors.New("handle is not writable")
	// ErrBadKind is wrapped when a constructor is given a kind of another category.
	ErrBadKind = errors.New("kind does not belong to constructor")
	// ErrForeignNode is wrapped when an operand was built by another factory.
	ErrForeignNode = errors.New("operand belongs to another graph")
)

// FieldOffsets supplies instance field offsets for InstanceFieldOf.
type FieldOffsets interface {
	FieldOffset(f *definition.FieldElement) (uint64, error)
}

// Factory builds the graph of one executable element. Structurally equal
// nodes are shared: constructing a node twice returns the same instance. A
// Factory is safe for concurrent use.
type Factory struct {
	types   *types.Interner
	offsets FieldOffsets
	element *definition.Executable

	cache once.Map[nodeKey, *Node]
	seq   atomic.Uint64
	start *Node
}

// NewFactory creates a factory for element, which may be nil for detached
// graphs. offsets may be nil when no field handles are built.
func NewFactory(in *types.Interner, offsets FieldOffsets, element *definition.Executable) *Factory {
	f := &Factory{types: in, offsets: offsets, element: element}
	f.start = f.intern(nodeKey{kind: KindStart, typ: in.Builtins().Void}, nil, nil, NoPos, nil)
	return f
}

func (f *Factory) Types() *types.Interner          { return f.types }
func (f *Factory) Element() *definition.Executable { return f.element }

// Start is the control root of the graph.
func (f *Factory) Start() *Node { return f.start }

// Len returns the number of distinct nodes built so far.
func (f *Factory) Len() int { return int(f.seq.Load()) }

func (f *Factory) newNode(kind Kind, typ types.TypeID, deps []*Node, control *Node, pos Pos) *Node {
	if a := kind.info().arity; a >= 0 && len(deps) != a {
		panic(fmt.Sprintf("graph: %s takes %d operands, got %d", kind, a, len(deps)))
	}
	return &Node{
		owner:   f,
		id:      f.seq.Add(1),
		kind:    kind,
		typ:     typ,
		deps:    deps,
		control: control,
		element: f.element,
		pos:     pos,
	}
}

// local rejects operands built by another factory. Node ids are only
// unique within one factory, so interning a foreign operand could alias an
// unrelated local node. Nil operands (absent control) are accepted.
func (f *Factory) local(kind Kind, nodes ...*Node) error {
	for _, n := range nodes {
		if n != nil && n.owner != f {
			return fmt.Errorf("%s: %s#%d: %w", kind, n.kind, n.id, ErrForeignNode)
		}
	}
	return nil
}

// intern returns the canonical node for key, building it with fill on the
// first request.
func (f *Factory) intern(key nodeKey, deps []*Node, control *Node, pos Pos, fill func(*Node)) *Node {
	n, _ := f.cache.LoadOrCompute(key, func() (*Node, error) {
		n := f.newNode(key.kind, key.typ, deps, control, pos)
		n.hash = key.hash()
		if fill != nil {
			fill(n)
		}
		return n, nil
	})
	return n
}

func idOf(n *Node) uint64 {
	if n == nil {
		return 0
	}
	return n.id
}

func (f *Factory) mismatch(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", kind, fmt.Sprintf(format, args...), ErrTypeMismatch)
}

func (f *Factory) friendly(id types.TypeID) string { return f.types.FriendlyString(id) }

// IntLiteral returns the integer constant v of integer type typ.
func (f *Factory) IntLiteral(typ types.TypeID, v int64) (*Node, error) {
	if k := f.types.Kind(typ); k != types.KindInt && k != types.KindUint {
		return nil, f.mismatch(KindIntLiteral, "%s is not an integer type", f.friendly(typ))
	}
	return f.intern(nodeKey{kind: KindIntLiteral, typ: typ, value: v}, nil, nil, NoPos, func(n *Node) {
		n.literal.Value = v
	}), nil
}

// BoolLiteral returns true or false.
func (f *Factory) BoolLiteral(v bool) *Node {
	var i int64
	if v {
		i = 1
	}
	return f.intern(nodeKey{kind: KindBoolLiteral, typ: f.types.Builtins().Bool, value: i}, nil, nil, NoPos, func(n *Node) {
		n.literal.Value = i
	})
}

// NullLiteral returns the null value of reference type typ.
func (f *Factory) NullLiteral(typ types.TypeID) (*Node, error) {
	if f.types.Kind(typ) != types.KindReference {
		return nil, f.mismatch(KindNullLiteral, "%s is not a reference type", f.friendly(typ))
	}
	return f.intern(nodeKey{kind: KindNullLiteral, typ: typ}, nil, nil, NoPos, nil), nil
}

// TypeIDLiteral returns the run-time type identifier of objType.
func (f *Factory) TypeIDLiteral(objType types.TypeID) (*Node, error) {
	if !f.types.Kind(objType).IsObject() {
		return nil, f.mismatch(KindTypeIDLiteral, "%s is not an object type", f.friendly(objType))
	}
	v := int64(objType)
	return f.intern(nodeKey{kind: KindTypeIDLiteral, typ: f.types.Builtins().TypeID, value: v}, nil, nil, NoPos, func(n *Node) {
		n.literal.Value = v
	}), nil
}

// CurrentThread is the explicit thread parameter every function receives.
func (f *Factory) CurrentThread(threadRef types.TypeID) (*Node, error) {
	if f.types.Kind(threadRef) != types.KindReference {
		return nil, f.mismatch(KindCurrentThread, "%s is not a reference type", f.friendly(threadRef))
	}
	return f.intern(nodeKey{kind: KindCurrentThread, typ: threadRef}, nil, nil, NoPos, nil), nil
}

// Parameter returns declared parameter index (receiver first for instance
// members) of type typ.
func (f *Factory) Parameter(typ types.TypeID, index int) (*Node, error) {
	if index < 0 {
		return nil, fmt.Errorf("param: negative index %d", index)
	}
	return f.intern(nodeKey{kind: KindParameter, typ: typ, index: index}, nil, nil, NoPos, func(n *Node) {
		n.param.Index = index
	}), nil
}

// canonical orders the operands of commutative kinds by creation sequence.
func canonical(kind Kind, a, b *Node) (*Node, *Node) {
	if kind.IsCommutative() && b.id < a.id {
		return b, a
	}
	return a, b
}

func (f *Factory) isArithmetic(id types.TypeID) bool {
	switch f.types.Kind(id) {
	case types.KindInt, types.KindUint, types.KindFloat:
		return true
	}
	return false
}

func (f *Factory) isIntegral(id types.TypeID) bool {
	switch f.types.Kind(id) {
	case types.KindInt, types.KindUint:
		return true
	}
	return false
}

// Binary returns a op b. Operands must share a type, except the shift
// amount of Shl which may be any integer type. And, Or and Xor also accept
// bool.
func (f *Factory) Binary(kind Kind, a, b *Node) (*Node, error) {
	if kind.Category() != CatBinary {
		return nil, fmt.Errorf("binary %s: %w", kind, ErrBadKind)
	}
	if err := f.local(kind, a, b); err != nil {
		return nil, err
	}
	switch kind {
	case KindShl:
		if !f.isIntegral(a.typ) || !f.isIntegral(b.typ) {
			return nil, f.mismatch(kind, "%s << %s", f.friendly(a.typ), f.friendly(b.typ))
		}
	case KindAnd, KindOr, KindXor:
		if a.typ != b.typ || !(f.isIntegral(a.typ) || f.types.Kind(a.typ) == types.KindBool) {
			return nil, f.mismatch(kind, "%s and %s", f.friendly(a.typ), f.friendly(b.typ))
		}
	default:
		if a.typ != b.typ || !f.isArithmetic(a.typ) {
			return nil, f.mismatch(kind, "%s and %s", f.friendly(a.typ), f.friendly(b.typ))
		}
	}
	a, b = canonical(kind, a, b)
	return f.intern(nodeKey{kind: kind, typ: a.typ, a: a.id, b: b.id}, []*Node{a, b}, nil, NoPos, nil), nil
}

// Compare returns the bool result of comparing a and b.
func (f *Factory) Compare(kind Kind, a, b *Node) (*Node, error) {
	if kind.Category() != CatCompare {
		return nil, fmt.Errorf("compare %s: %w", kind, ErrBadKind)
	}
	if err := f.local(kind, a, b); err != nil {
		return nil, err
	}
	if a.typ != b.typ {
		bothRefs := f.types.Kind(a.typ) == types.KindReference && f.types.Kind(b.typ) == types.KindReference
		if !bothRefs || (kind != KindIsEq && kind != KindIsNe) {
			return nil, f.mismatch(kind, "%s and %s", f.friendly(a.typ), f.friendly(b.typ))
		}
	}
	a, b = canonical(kind, a, b)
	return f.intern(nodeKey{kind: kind, typ: f.types.Builtins().Bool, a: a.id, b: b.id}, []*Node{a, b}, nil, NoPos, nil), nil
}

// ExtractElement reads element index of an array value as of control. The
// node is pinned to control: equal operands after a different control
// dependency give a different node.
func (f *Factory) ExtractElement(control, array, index *Node) (*Node, error) {
	if err := f.local(KindExtractElement, control, array, index); err != nil {
		return nil, err
	}
	if f.types.Kind(array.typ) != types.KindArray {
		return nil, f.mismatch(KindExtractElement, "%s is not an array value", f.friendly(array.typ))
	}
	if !f.isIntegral(index.typ) {
		return nil, f.mismatch(KindExtractElement, "index of type %s", f.friendly(index.typ))
	}
	elem, err := f.types.ElementType(array.typ)
	if err != nil {
		return nil, err
	}
	key := nodeKey{kind: KindExtractElement, typ: elem, a: array.id, b: index.id, control: idOf(control)}
	return f.intern(key, []*Node{array, index}, control, NoPos, nil), nil
}

// ExtractMember reads a named member of a compound value.
func (f *Factory) ExtractMember(compound *Node, name string) (*Node, error) {
	if err := f.local(KindExtractMember, compound); err != nil {
		return nil, err
	}
	c, err := f.types.Compound(compound.typ)
	if err != nil {
		return nil, f.mismatch(KindExtractMember, "%s is not a compound", f.friendly(compound.typ))
	}
	m, ok := c.Member(name)
	if !ok {
		return nil, fmt.Errorf("extract_member: %s has no member %q", c.Name, name)
	}
	key := nodeKey{kind: KindExtractMember, typ: m.Type, a: compound.id, member: name}
	return f.intern(key, []*Node{compound}, nil, NoPos, func(n *Node) {
		n.extract.Member = m
	}), nil
}

// ReferenceHandle is the object a reference points to. Its value type is
// the reference's upper bound and it is never writable.
func (f *Factory) ReferenceHandle(ref *Node) (*Node, error) {
	return f.ReferenceHandleMode(ref, memory.Unordered)
}

// ReferenceHandleMode is ReferenceHandle with an access mode annotated
// upstream.
func (f *Factory) ReferenceHandleMode(ref *Node, mode memory.AccessMode) (*Node, error) {
	if err := f.local(KindReferenceHandle, ref); err != nil {
		return nil, err
	}
	bound, err := f.types.UpperBound(ref.typ)
	if err != nil {
		return nil, fmt.Errorf("ref_handle: %w: %v", ErrTypeMismatch, err)
	}
	key := nodeKey{kind: KindReferenceHandle, typ: bound, a: ref.id, mode: mode}
	return f.intern(key, []*Node{ref}, nil, NoPos, func(n *Node) {
		n.handle.Mode = mode
	}), nil
}

// InstanceFieldOf addresses an instance field of the object handle refers
// to. The member offset comes from the layout engine.
func (f *Factory) InstanceFieldOf(handle *Node, field *definition.FieldElement) (*Node, error) {
	if err := f.local(KindInstanceFieldOf, handle); err != nil {
		return nil, err
	}
	if !handle.IsHandle() {
		return nil, fmt.Errorf("instance_field_of %s: %w", field.Name, ErrNotHandle)
	}
	owner := field.Enclosing.ObjectType()
	if f.types.Kind(handle.typ) == types.KindClass && !f.types.IsSubclass(handle.typ, owner) {
		return nil, f.mismatch(KindInstanceFieldOf, "%s has no field %s", f.friendly(handle.typ), field)
	}
	if f.offsets == nil {
		return nil, fmt.Errorf("instance_field_of %s: no field offsets", field)
	}
	off, err := f.offsets.FieldOffset(field)
	if err != nil {
		return nil, err
	}
	key := nodeKey{kind: KindInstanceFieldOf, typ: field.Type, a: handle.id, field: field}
	return f.intern(key, []*Node{handle}, nil, NoPos, func(n *Node) {
		n.handle.Field = field
		n.handle.Offset = off
	}), nil
}

// ElementOf addresses element index of the array handle refers to.
func (f *Factory) ElementOf(handle, index *Node) (*Node, error) {
	if err := f.local(KindElementOf, handle, index); err != nil {
		return nil, err
	}
	if !handle.IsHandle() {
		return nil, fmt.Errorf("element_of: %w", ErrNotHandle)
	}
	if !f.isIntegral(index.typ) {
		return nil, f.mismatch(KindElementOf, "index of type %s", f.friendly(index.typ))
	}
	elem, err := f.types.ElementType(handle.typ)
	if err != nil {
		return nil, f.mismatch(KindElementOf, "%s is not an array", f.friendly(handle.typ))
	}
	key := nodeKey{kind: KindElementOf, typ: elem, a: handle.id, b: index.id}
	return f.intern(key, []*Node{handle, index}, nil, NoPos, nil), nil
}

// Load reads through handle after control. Loads are keyed by control, so
// equal loads merge only within one memory state.
func (f *Factory) Load(control, handle *Node, mode memory.AccessMode, pos Pos) (*Node, error) {
	if err := f.local(KindLoad, control, handle); err != nil {
		return nil, err
	}
	if !handle.IsHandle() {
		return nil, fmt.Errorf("load: %w", ErrNotHandle)
	}
	if !mode.CanRead() {
		return nil, fmt.Errorf("load: %w", memory.ErrInvalidMode)
	}
	mode = memory.Join(mode, handle.DetectedMode())
	key := nodeKey{kind: KindLoad, typ: handle.typ, a: handle.id, control: idOf(control), mode: mode}
	return f.intern(key, []*Node{handle}, control, pos, func(n *Node) {
		n.mem.Mode = mode
	}), nil
}

// Store writes value through handle after control. Every call returns a new
// node.
func (f *Factory) Store(control, handle, value *Node, mode memory.AccessMode, pos Pos) (*Node, error) {
	if err := f.local(KindStore, control, handle, value); err != nil {
		return nil, err
	}
	if !handle.IsHandle() {
		return nil, fmt.Errorf("store: %w", ErrNotHandle)
	}
	if !handle.IsWritable() {
		return nil, fmt.Errorf("store: %w", ErrNotWritable)
	}
	if !mode.CanWrite() {
		return nil, fmt.Errorf("store: %w", memory.ErrInvalidMode)
	}
	if !f.assignable(handle.typ, value.typ) {
		return nil, f.mismatch(KindStore, "%s into %s", f.friendly(value.typ), f.friendly(handle.typ))
	}
	n := f.newNode(KindStore, f.types.Builtins().Void, []*Node{handle, value}, control, pos)
	n.mem.Mode = memory.Join(mode, handle.DetectedMode())
	n.hash = nodeKey{kind: KindStore, a: n.id}.hash()
	return n, nil
}

// Call invokes target of function type fnType with args after control.
// Every call returns a new node.
func (f *Factory) Call(control *Node, target string, fnType types.TypeID, args []*Node, pos Pos) (*Node, error) {
	if f.types.Kind(fnType) != types.KindFunction {
		return nil, f.mismatch(KindCall, "%s is not a function type", f.friendly(fnType))
	}
	if err := f.local(KindCall, control); err != nil {
		return nil, err
	}
	if err := f.local(KindCall, args...); err != nil {
		return nil, err
	}
	params := f.types.Params(fnType)
	if len(params) != len(args) {
		return nil, fmt.Errorf("call %s: %d arguments for %d parameters", target, len(args), len(params))
	}
	for i, p := range params {
		if !f.assignable(p, args[i].typ) {
			return nil, f.mismatch(KindCall, "argument %d of %s: %s for %s", i, target, f.friendly(args[i].typ), f.friendly(p))
		}
	}
	n := f.newNode(KindCall, f.types.Return(fnType), append([]*Node(nil), args...), control, pos)
	n.call = CallData{Target: target, FnType: fnType}
	n.hash = nodeKey{kind: KindCall, a: n.id, member: target}.hash()
	return n, nil
}

// assignable allows equal types and any reference into a reference slot.
func (f *Factory) assignable(slot, value types.TypeID) bool {
	if slot == value {
		return true
	}
	return f.types.Kind(slot) == types.KindReference && f.types.Kind(value) == types.KindReference
}
