package graph

import "fmt"

// Kind identifies a node variant.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Literals
	KindIntLiteral
	KindBoolLiteral
	KindNullLiteral
	KindTypeIDLiteral

	// Parameters and roots
	KindCurrentThread
	KindParameter
	KindStart

	// Binary arithmetic and bitwise
	KindAdd
	KindSub
	KindMul
	KindAnd
	KindOr
	KindXor
	KindShl

	// Comparisons
	KindIsEq
	KindIsNe
	KindIsLt
	KindIsLe
	KindIsGt
	KindIsGe

	// Extraction from aggregate values
	KindExtractElement
	KindExtractMember

	// Handles
	KindReferenceHandle
	KindInstanceFieldOf
	KindElementOf

	// Memory
	KindLoad
	KindStore

	KindCall

	kindCount
)

// Category groups kinds that share a payload shape.
type Category uint8

const (
	CatInvalid Category = iota
	CatLiteral
	CatParameter
	CatControl
	CatBinary
	CatCompare
	CatExtract
	CatHandle
	CatMemory
	CatCall
)

func (c Category) String() string {
	switch c {
	case CatLiteral:
		return "literal"
	case CatParameter:
		return "parameter"
	case CatControl:
		return "control"
	case CatBinary:
		return "binary"
	case CatCompare:
		return "compare"
	case CatExtract:
		return "extract"
	case CatHandle:
		return "handle"
	case CatMemory:
		return "memory"
	case CatCall:
		return "call"
	}
	return "invalid"
}

type kindInfo struct {
	name     string
	cat      Category
	arity    int // value dependencies; -1 for variadic
	commutes bool
	// unschedulable nodes are keyed by their control dependency as well
	unschedulable bool
	// effectful nodes are never merged
	effectful bool
}

var kindTable = [kindCount]kindInfo{
	KindInvalid:         {name: "invalid"},
	KindIntLiteral:      {name: "int", cat: CatLiteral},
	KindBoolLiteral:     {name: "bool", cat: CatLiteral},
	KindNullLiteral:     {name: "null", cat: CatLiteral},
	KindTypeIDLiteral:   {name: "typeid", cat: CatLiteral},
	KindCurrentThread:   {name: "current_thread", cat: CatParameter},
	KindParameter:       {name: "param", cat: CatParameter},
	KindStart:           {name: "start", cat: CatControl},
	KindAdd:             {name: "add", cat: CatBinary, arity: 2, commutes: true},
	KindSub:             {name: "sub", cat: CatBinary, arity: 2},
	KindMul:             {name: "mul", cat: CatBinary, arity: 2, commutes: true},
	KindAnd:             {name: "and", cat: CatBinary, arity: 2, commutes: true},
	KindOr:              {name: "or", cat: CatBinary, arity: 2, commutes: true},
	KindXor:             {name: "xor", cat: CatBinary, arity: 2, commutes: true},
	KindShl:             {name: "shl", cat: CatBinary, arity: 2},
	KindIsEq:            {name: "is_eq", cat: CatCompare, arity: 2, commutes: true},
	KindIsNe:            {name: "is_ne", cat: CatCompare, arity: 2, commutes: true},
	KindIsLt:            {name: "is_lt", cat: CatCompare, arity: 2},
	KindIsLe:            {name: "is_le", cat: CatCompare, arity: 2},
	KindIsGt:            {name: "is_gt", cat: CatCompare, arity: 2},
	KindIsGe:            {name: "is_ge", cat: CatCompare, arity: 2},
	KindExtractElement:  {name: "extract_element", cat: CatExtract, arity: 2, unschedulable: true},
	KindExtractMember:   {name: "extract_member", cat: CatExtract, arity: 1},
	KindReferenceHandle: {name: "ref_handle", cat: CatHandle, arity: 1},
	KindInstanceFieldOf: {name: "instance_field_of", cat: CatHandle, arity: 1},
	KindElementOf:       {name: "element_of", cat: CatHandle, arity: 2},
	KindLoad:            {name: "load", cat: CatMemory, arity: 1, unschedulable: true},
	KindStore:           {name: "store", cat: CatMemory, arity: 2, effectful: true},
	KindCall:            {name: "call", cat: CatCall, arity: -1, effectful: true},
}

func (k Kind) info() kindInfo {
	if k < kindCount {
		return kindTable[k]
	}
	return kindInfo{}
}

func (k Kind) String() string {
	if k < kindCount && k != KindInvalid {
		return kindTable[k].name
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Category returns the payload group of k.
func (k Kind) Category() Category { return k.info().cat }

// IsCommutative reports whether operand order is canonicalised.
func (k Kind) IsCommutative() bool { return k.info().commutes }

// IsUnschedulable reports whether nodes of this kind are pinned to their
// control dependency.
func (k Kind) IsUnschedulable() bool { return k.info().unschedulable }

// HasSideEffects reports whether nodes of this kind are never merged.
func (k Kind) HasSideEffects() bool { return k.info().effectful }
