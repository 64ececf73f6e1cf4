package definition

// RawField is a field as declared in a class definition.
type RawField struct {
	Name       string
	Descriptor string
	Modifiers  Modifiers
}

// RawMethod is a method, constructor (<init>) or initializer (<clinit>).
// Code is the opaque body handed to the graph builder.
type RawMethod struct {
	Name       string
	Descriptor string
	Modifiers  Modifiers
	Code       any
}

// RawDefinition is an unverified class definition.
type RawDefinition struct {
	Name       string
	Super      string
	Interfaces []string
	Modifiers  Modifiers
	Fields     []RawField
	Methods    []RawMethod
}

func (r *RawDefinition) IsInterface() bool { return r.Modifiers.Has(AccInterface) }

// Source yields raw definitions by internal name. ok is false when the
// source has no such class.
type Source interface {
	Find(name string) (def *RawDefinition, ok bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string) (*RawDefinition, bool, error)

func (f SourceFunc) Find(name string) (*RawDefinition, bool, error) { return f(name) }

// MapSource serves definitions from a map keyed by internal name.
type MapSource map[string]*RawDefinition

func (m MapSource) Find(name string) (*RawDefinition, bool, error) {
	d, ok := m[name]
	return d, ok, nil
}
