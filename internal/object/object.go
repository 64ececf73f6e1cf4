// Package object holds the compiled output of one compilation: a program
// module per class, split into named sections of functions and forward
// declarations. Everything here is safe for concurrent use and entries are
// only ever inserted, never replaced.
package object

import (
	"slices"
	"strings"
	"sync/atomic"

	"aotc/internal/definition"
	"aotc/internal/once"
	"aotc/internal/types"
)

// ImplicitSectionName is the section that receives code and declarations
// unless an element asks for another one.
const ImplicitSectionName = "__implicit"

// Body is the built graph of a function in printable form.
type Body struct {
	Nodes int
	Text  string
}

// Function is a function defined by a section.
type Function struct {
	Name    string
	Type    types.TypeID
	Element *definition.Executable

	body atomic.Pointer[Body]
}

// SetBody records the built body. Only the first call has an effect.
func (f *Function) SetBody(b Body) bool {
	return f.body.CompareAndSwap(nil, &b)
}

// Body returns the recorded body, or nil before the graph was built.
func (f *Function) Body() *Body { return f.body.Load() }

// Declaration is a forward declaration of a function defined elsewhere.
type Declaration struct {
	Name string
	Type types.TypeID
}

// ProgramModule is the output of one class.
type ProgramModule struct {
	typeName string
	objType  types.TypeID
	sections once.Map[string, *Section]
}

// NewProgramModule creates an empty module for the named class.
func NewProgramModule(typeName string, objType types.TypeID) *ProgramModule {
	return &ProgramModule{typeName: typeName, objType: objType}
}

func (m *ProgramModule) TypeName() string         { return m.typeName }
func (m *ProgramModule) ObjectType() types.TypeID { return m.objType }

// Section returns the named section, creating it on first use.
func (m *ProgramModule) Section(name string) *Section {
	s, _ := m.sections.LoadOrStore(name, &Section{name: name, module: m})
	return s
}

// ImplicitSection returns the __implicit section.
func (m *ProgramModule) ImplicitSection() *Section { return m.Section(ImplicitSectionName) }

// Sections returns every section sorted by name.
func (m *ProgramModule) Sections() []*Section {
	var out []*Section
	m.sections.Range(func(_ string, s *Section) bool {
		out = append(out, s)
		return true
	})
	slices.SortFunc(out, func(a, b *Section) int { return strings.Compare(a.name, b.name) })
	return out
}

// Functions returns the functions of every section sorted by name.
func (m *ProgramModule) Functions() []*Function {
	var out []*Function
	for _, s := range m.Sections() {
		out = append(out, s.Functions()...)
	}
	slices.SortFunc(out, func(a, b *Function) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Declarations returns the declarations of every section sorted by name.
func (m *ProgramModule) Declarations() []*Declaration {
	var out []*Declaration
	for _, s := range m.Sections() {
		out = append(out, s.Declarations()...)
	}
	slices.SortFunc(out, func(a, b *Declaration) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Section is a named part of a program module.
type Section struct {
	name      string
	module    *ProgramModule
	functions once.Map[string, *Function]
	decls     once.Map[string, *Declaration]
}

func (s *Section) Name() string           { return s.name }
func (s *Section) Module() *ProgramModule { return s.module }

// AddFunction defines a function. Adding a name twice returns the first
// function.
func (s *Section) AddFunction(element *definition.Executable, name string, typ types.TypeID) *Function {
	f, _ := s.functions.LoadOrStore(name, &Function{Name: name, Type: typ, Element: element})
	return f
}

// Function looks a defined function up by name.
func (s *Section) Function(name string) (*Function, bool) { return s.functions.Load(name) }

// DeclareFunction records a forward declaration. Declaring a name twice
// returns the first declaration.
func (s *Section) DeclareFunction(name string, typ types.TypeID) *Declaration {
	d, _ := s.decls.LoadOrStore(name, &Declaration{Name: name, Type: typ})
	return d
}

// Functions returns the defined functions sorted by name.
func (s *Section) Functions() []*Function {
	var out []*Function
	s.functions.Range(func(_ string, f *Function) bool {
		out = append(out, f)
		return true
	})
	slices.SortFunc(out, func(a, b *Function) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Declarations returns the forward declarations sorted by name.
func (s *Section) Declarations() []*Declaration {
	var out []*Declaration
	s.decls.Range(func(_ string, d *Declaration) bool {
		out = append(out, d)
		return true
	})
	slices.SortFunc(out, func(a, b *Declaration) int { return strings.Compare(a.Name, b.Name) })
	return out
}
