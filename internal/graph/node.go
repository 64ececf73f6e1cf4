package graph

import (
	"encoding/binary"
	"hash/fnv"

	"aotc/internal/definition"
	"aotc/internal/diag"
	"aotc/internal/memory"
	"aotc/internal/types"
)

// Pos is the bytecode position a node was built for.
type Pos struct {
	Line int
	BCI  int
}

// NoPos is used for nodes with no source position.
var NoPos = Pos{Line: 0, BCI: -1}

// LiteralData is the payload of literal nodes.
type LiteralData struct {
	Value int64 // integer value, 0/1 for bool, TypeID for typeid literals
}

// ParamData is the payload of parameter nodes.
type ParamData struct {
	Index int
}

// ExtractData is the payload of ExtractMember.
type ExtractData struct {
	Member types.Member
}

// HandleData is the payload of handle nodes.
type HandleData struct {
	Field  *definition.FieldElement // InstanceFieldOf
	Offset uint64                   // InstanceFieldOf
	Mode   memory.AccessMode
}

// MemoryData is the payload of Load and Store.
type MemoryData struct {
	Mode memory.AccessMode
}

// CallData is the payload of Call.
type CallData struct {
	Target string // mangled function name
	FnType types.TypeID
}

// Node is a value graph node. Nodes are immutable once returned by a
// Factory. Only the payload matching Kind().Category() is meaningful.
type Node struct {
	owner   *Factory
	id      uint64
	kind    Kind
	typ     types.TypeID
	deps    []*Node
	control *Node
	element *definition.Executable
	pos     Pos
	hash    uint64

	literal LiteralData
	param   ParamData
	extract ExtractData
	handle  HandleData
	mem     MemoryData
	call    CallData
}

// ID is the creation sequence number, unique within a Factory.
func (n *Node) ID() uint64         { return n.id }
func (n *Node) Kind() Kind         { return n.kind }
func (n *Node) Type() types.TypeID { return n.typ }
func (n *Node) Hash() uint64       { return n.hash }

// Element is the executable the node was built for, or nil.
func (n *Node) Element() *definition.Executable { return n.element }

// Location renders the element and position as a diagnostic location.
func (n *Node) Location() diag.Location {
	if n.element == nil {
		return diag.Location{Line: n.pos.Line, BCI: n.pos.BCI}
	}
	loc := diag.ElementLocation(n.element.Enclosing.Name(), n.element.Signature())
	loc.Line, loc.BCI = n.pos.Line, n.pos.BCI
	return loc
}

// ValueDependencyCount returns the number of data operands.
func (n *Node) ValueDependencyCount() int { return len(n.deps) }

// ValueDependency returns operand i.
func (n *Node) ValueDependency(i int) *Node { return n.deps[i] }

// ControlDependency returns the node this one executes after, nil for pure
// nodes.
func (n *Node) ControlDependency() *Node { return n.control }

func (n *Node) Literal() LiteralData { return n.literal }
func (n *Node) Param() ParamData     { return n.param }
func (n *Node) Extract() ExtractData { return n.extract }
func (n *Node) Handle() HandleData   { return n.handle }
func (n *Node) Memory() MemoryData   { return n.mem }
func (n *Node) Call() CallData       { return n.call }

// IsHandle reports whether n denotes an addressable location.
func (n *Node) IsHandle() bool { return n.kind.Category() == CatHandle }

// IsWritable reports whether a store through handle n is allowed. Plain
// reference handles are read-only, final fields are read-only, array
// elements are writable.
func (n *Node) IsWritable() bool {
	switch n.kind {
	case KindInstanceFieldOf:
		return !n.handle.Field.IsFinal()
	case KindElementOf:
		return true
	}
	return false
}

// DetectedMode returns the weakest access mode an access through handle n
// requires.
func (n *Node) DetectedMode() memory.AccessMode {
	if !n.IsHandle() {
		return memory.Unordered
	}
	mode := n.handle.Mode
	if len(n.deps) > 0 && n.deps[0].IsHandle() {
		mode = memory.Join(mode, n.deps[0].DetectedMode())
	}
	return mode
}

// nodeKey is the structural identity of a mergeable node. Operands are
// identified by their sequence ids, which is sound because operands are
// canonical already.
type nodeKey struct {
	kind    Kind
	typ     types.TypeID
	a, b    uint64
	control uint64
	value   int64
	index   int
	member  string
	field   *definition.FieldElement
	mode    memory.AccessMode
}

func (k nodeKey) hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(k.kind))
	put(uint64(k.typ))
	put(k.a)
	put(k.b)
	put(k.control)
	put(uint64(k.value))
	put(uint64(k.index))
	put(uint64(k.mode))
	h.Write([]byte(k.member))
	if k.field != nil {
		h.Write([]byte(k.field.Enclosing.Name()))
		h.Write([]byte(k.field.Name))
	}
	return h.Sum64()
}
