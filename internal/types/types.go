// Package types is the hash-consed value type system of the compiler.
//
// Every distinct structural type is interned once and named by a TypeID, so
// type equality is integer equality everywhere else in the compiler.
package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the supported type kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindInt  // signed integer
	KindUint // unsigned integer
	KindFloat
	KindTypeID    // run-time type identifier word
	KindReference // reference to an object type
	KindArray     // fixed-size value array; Count 0 is a flexible trailing array
	KindCompound  // laid out record
	KindFunction
	KindClass     // class object type
	KindInterface // interface object type
	KindPrimArray // primitive array object type
	KindRefArray  // reference array object type
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTypeID:
		return "type_id"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	case KindCompound:
		return "compound"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindPrimArray:
		return "prim_array"
	case KindRefArray:
		return "ref_array"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsObject reports whether values of this kind live on the heap and are
// only reachable through references.
func (k Kind) IsObject() bool {
	switch k {
	case KindClass, KindInterface, KindPrimArray, KindRefArray:
		return true
	}
	return false
}

// Width captures the precision of integers and floats.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Type is the structural descriptor stored by the interner. It is
// comparable and doubles as its own hash-consing key.
type Type struct {
	Kind     Kind
	Width    Width  // numeric kinds
	Elem     TypeID // reference target, array/ref-array element, function return
	Count    uint32 // value array length
	Nullable bool   // references
	Name     string // class/interface internal name, compound name
	Sig      string // function parameter ids, compound serial
}

func MakeInt(w Width) Type   { return Type{Kind: KindInt, Width: w} }
func MakeUint(w Width) Type  { return Type{Kind: KindUint, Width: w} }
func MakeFloat(w Width) Type { return Type{Kind: KindFloat, Width: w} }

// MakeReference describes a reference to the object type target.
func MakeReference(target TypeID, nullable bool) Type {
	return Type{Kind: KindReference, Elem: target, Nullable: nullable}
}

// MakeArray describes a value array of count elements.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}
