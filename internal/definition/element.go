package definition

import (
	"strings"

	"aotc/internal/types"
)

// FieldElement is one field of a type. Index is unique within the declaring
// type; injected fields take indices after the declared ones.
type FieldElement struct {
	Name       string
	Descriptor string
	Type       types.TypeID
	Modifiers  Modifiers
	Enclosing  *Defined
	Index      int
}

func (f *FieldElement) IsStatic() bool { return f.Modifiers.Has(AccStatic) }
func (f *FieldElement) IsFinal() bool  { return f.Modifiers.Has(AccFinal) }
func (f *FieldElement) IsHidden() bool { return f.Modifiers.Has(AccHidden) }

func (f *FieldElement) String() string {
	return f.Enclosing.Name() + "." + f.Name
}

// ExecutableKind distinguishes methods, constructors and initializers.
type ExecutableKind uint8

const (
	KindMethod ExecutableKind = iota + 1
	KindConstructor
	KindInitializer
)

func (k ExecutableKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindInitializer:
		return "initializer"
	}
	return "unknown"
}

const (
	ConstructorName = "<init>"
	InitializerName = "<clinit>"
)

// Executable is a method, constructor or static initializer. Identity is
// pointer identity: each is created once by its type's Verify.
type Executable struct {
	Kind       ExecutableKind
	Name       string
	Descriptor string
	Modifiers  Modifiers
	Enclosing  *Defined
	Index      int
	Params     []types.TypeID
	Return     types.TypeID
	Code       any
}

// IsStatic reports whether no receiver is passed. Initializers are static.
func (e *Executable) IsStatic() bool {
	return e.Kind == KindInitializer || e.Modifiers.Has(AccStatic)
}

func (e *Executable) IsAbstract() bool { return e.Modifiers.Has(AccAbstract) }

// Signature returns name plus descriptor, e.g. "main([Ljava/lang/String;)V".
func (e *Executable) Signature() string { return e.Name + e.Descriptor }

// String returns "owner.name(desc)ret".
func (e *Executable) String() string {
	var sb strings.Builder
	sb.WriteString(e.Enclosing.Name())
	sb.WriteByte('.')
	sb.WriteString(e.Signature())
	return sb.String()
}

// FieldSpec describes a synthetic field to inject.
type FieldSpec struct {
	Name       string
	Descriptor string
	Type       types.TypeID
	Modifiers  Modifiers
}
