package layout

import (
	"errors"
	"fmt"

	"aotc/internal/definition"
)

// ErrInterfaceLayout is wrapped by the error returned for interfaces.
var ErrInterfaceLayout = errors.New("interfaces have no instance layout")

// LayoutErrorKind enumerates layout failures.
type LayoutErrorKind uint8

const (
	// LayoutErrInterface: layout requested for an interface. This is a
	// contract violation and matches definition.ErrInvariant.
	LayoutErrInterface LayoutErrorKind = iota + 1
	// LayoutErrSuperLayout: the superclass layout failed.
	LayoutErrSuperLayout
	// LayoutErrUnsizedField: a field type has no value size.
	LayoutErrUnsizedField
	// LayoutErrAlignment: a field alignment is not a power of two.
	LayoutErrAlignment
	// LayoutErrSetup: the header or array types could not be created.
	LayoutErrSetup
	// LayoutErrStaticField: an instance offset was requested for a static field.
	LayoutErrStaticField
)

func (k LayoutErrorKind) String() string {
	switch k {
	case LayoutErrInterface:
		return "interface"
	case LayoutErrSuperLayout:
		return "super-layout"
	case LayoutErrUnsizedField:
		return "unsized-field"
	case LayoutErrAlignment:
		return "alignment"
	case LayoutErrSetup:
		return "setup"
	case LayoutErrStaticField:
		return "static-field"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// LayoutError describes why a type could not be laid out.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  string
	Field string // for field-level kinds
	Err   error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	where := e.Type
	if e.Field != "" {
		where += "." + e.Field
	}
	if e.Err != nil {
		return fmt.Sprintf("layout %s: %s: %v", where, e.Kind, e.Err)
	}
	return fmt.Sprintf("layout %s: %s", where, e.Kind)
}

func (e *LayoutError) Unwrap() error { return e.Err }

// Is makes interface layout requests match definition.ErrInvariant.
func (e *LayoutError) Is(target error) bool {
	return e.Kind == LayoutErrInterface && target == definition.ErrInvariant
}
