package layout

import (
	"fmt"

	"aotc/internal/definition"
	"aotc/internal/types"
)

// Synthetic array class names. They live in the bootstrap class context and
// extend ArrayBaseClass, which extends the root class.
const (
	ArrayBaseClass = "internal/array"
	RefArrayClass  = ArrayBaseClass + "/ref"
)

// Header and array field names.
const (
	FieldTypeID      = "klass"
	FieldClassID     = "id"
	FieldLength      = "length"
	FieldDims        = "dims"
	FieldElementType = "elementType"
	FieldContent     = "content"
)

// arrayKind pairs a descriptor letter with the element type of its content.
type arrayKind struct {
	letter string
	elem   func(types.Builtins) types.TypeID
}

var primitiveArrays = []arrayKind{
	{"Z", func(b types.Builtins) types.TypeID { return b.Bool }},
	{"B", func(b types.Builtins) types.TypeID { return b.S8 }},
	{"S", func(b types.Builtins) types.TypeID { return b.S16 }},
	{"I", func(b types.Builtins) types.TypeID { return b.S32 }},
	{"J", func(b types.Builtins) types.TypeID { return b.S64 }},
	{"C", func(b types.Builtins) types.TypeID { return b.U16 }},
	{"F", func(b types.Builtins) types.TypeID { return b.F32 }},
	{"D", func(b types.Builtins) types.TypeID { return b.F64 }},
}

type header struct {
	typeID  *definition.FieldElement
	classID *definition.FieldElement
	length  *definition.FieldElement

	dims        *definition.FieldElement
	elementType *definition.FieldElement
	refContent  *definition.FieldElement

	// content fields keyed by element TypeID
	primContent map[types.TypeID]*definition.FieldElement
	classes     map[string]*definition.Defined
}

const hiddenSlot = definition.AccPrivate | definition.AccFinal | definition.AccHidden

func (e *Engine) setup(opts Options) error {
	b := e.types.Builtins()
	boot := e.ctx.Bootstrap()
	e.hdr.primContent = make(map[types.TypeID]*definition.FieldElement, len(primitiveArrays))
	e.hdr.classes = make(map[string]*definition.Defined, len(primitiveArrays)+2)

	root, err := verifiedClass(boot, opts.RootClass)
	if err != nil {
		return err
	}
	if e.hdr.typeID, err = root.InjectField(definition.FieldSpec{
		Name: FieldTypeID, Type: b.TypeID, Modifiers: hiddenSlot,
	}); err != nil {
		return err
	}
	if opts.ClassClass != "" {
		cls, err := verifiedClass(boot, opts.ClassClass)
		if err != nil {
			return err
		}
		if e.hdr.classID, err = cls.InjectField(definition.FieldSpec{
			Name: FieldClassID, Type: b.TypeID, Modifiers: hiddenSlot,
		}); err != nil {
			return err
		}
	}

	base, err := e.defineArrayClass(ArrayBaseClass, opts.RootClass, definition.AccAbstract)
	if err != nil {
		return err
	}
	if e.hdr.length, err = base.InjectField(definition.FieldSpec{
		Name: FieldLength, Descriptor: "I", Type: b.S32, Modifiers: definition.AccFinal,
	}); err != nil {
		return err
	}

	for _, k := range primitiveArrays {
		v, err := e.defineArrayClass(ArrayBaseClass+"/"+k.letter, ArrayBaseClass, definition.AccFinal)
		if err != nil {
			return err
		}
		elem := k.elem(b)
		f, err := v.InjectField(definition.FieldSpec{
			Name: FieldContent, Type: e.types.Intern(types.MakeArray(elem, 0)), Modifiers: definition.AccFinal,
		})
		if err != nil {
			return err
		}
		e.hdr.primContent[elem] = f
	}

	ref, err := e.defineArrayClass(RefArrayClass, ArrayBaseClass, definition.AccFinal)
	if err != nil {
		return err
	}
	object := e.types.Reference(root.ObjectType())
	specs := []definition.FieldSpec{
		{Name: FieldDims, Descriptor: "I", Type: b.S32, Modifiers: definition.AccFinal},
		{Name: FieldElementType, Type: b.TypeID, Modifiers: definition.AccFinal},
		{Name: FieldContent, Type: e.types.Intern(types.MakeArray(object, 0)), Modifiers: definition.AccFinal},
	}
	out := []**definition.FieldElement{&e.hdr.dims, &e.hdr.elementType, &e.hdr.refContent}
	for i, spec := range specs {
		if *out[i], err = ref.InjectField(spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) defineArrayClass(name, super string, mods definition.Modifiers) (*definition.Verified, error) {
	d, err := e.ctx.Bootstrap().DefineClass(name, &definition.RawDefinition{
		Name:      name,
		Super:     super,
		Modifiers: definition.AccPublic | definition.AccSynthetic | mods,
	})
	if err != nil {
		return nil, err
	}
	e.hdr.classes[name] = d
	return d.Verify()
}

func verifiedClass(cc *definition.ClassContext, name string) (*definition.Verified, error) {
	d, err := cc.FindDefinedType(name)
	if err != nil {
		return nil, err
	}
	if d.IsInterface() {
		return nil, fmt.Errorf("%s is an interface", name)
	}
	return d.Verify()
}

// ObjectTypeIDField is the klass slot of the root class, nil when the
// engine was built without a root class.
func (e *Engine) ObjectTypeIDField() *definition.FieldElement { return e.hdr.typeID }

// ClassTypeIDField is the id slot of the class-of-classes, or nil.
func (e *Engine) ClassTypeIDField() *definition.FieldElement { return e.hdr.classID }

// ArrayLengthField is the length slot shared by every array.
func (e *Engine) ArrayLengthField() *definition.FieldElement { return e.hdr.length }

// RefArrayDimensionsField is the dims slot of reference arrays.
func (e *Engine) RefArrayDimensionsField() *definition.FieldElement { return e.hdr.dims }

// RefArrayElementTypeField is the elementType slot of reference arrays.
func (e *Engine) RefArrayElementTypeField() *definition.FieldElement { return e.hdr.elementType }

// RefArrayContentField is the trailing content slot of reference arrays.
func (e *Engine) RefArrayContentField() *definition.FieldElement { return e.hdr.refContent }

// ArrayClass returns the synthetic class backing an array object type.
func (e *Engine) ArrayClass(objType types.TypeID) (*definition.Defined, bool) {
	f, ok := e.ArrayContentField(objType)
	if !ok {
		return nil, false
	}
	return f.Enclosing, true
}

// ArrayContentField returns the content field for an array object type. It
// reports false for non-array types and for element types with no array
// class.
func (e *Engine) ArrayContentField(objType types.TypeID) (*definition.FieldElement, bool) {
	t, ok := e.types.Lookup(objType)
	if !ok {
		return nil, false
	}
	switch t.Kind {
	case types.KindRefArray:
		return e.hdr.refContent, e.hdr.refContent != nil
	case types.KindPrimArray:
		f, ok := e.hdr.primContent[t.Elem]
		return f, ok
	}
	return nil, false
}
