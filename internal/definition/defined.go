package definition

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"aotc/internal/diag"
	"aotc/internal/once"
	"aotc/internal/types"
)

// Defined is a registered, unverified class.
type Defined struct {
	cc       *ClassContext
	name     string
	raw      RawDefinition
	objType  types.TypeID
	verified once.Cell[*Verified]
}

func newDefined(cc *ClassContext, name string, raw *RawDefinition) *Defined {
	cp := *raw
	cp.Name = name
	cp.Interfaces = slices.Clone(raw.Interfaces)
	cp.Fields = slices.Clone(raw.Fields)
	cp.Methods = slices.Clone(raw.Methods)
	in := cc.ctx.types
	d := &Defined{cc: cc, name: name, raw: cp}
	if cp.IsInterface() {
		d.objType = in.Interface(name)
	} else {
		d.objType = in.Class(name)
	}
	return d
}

func (d *Defined) Name() string                { return d.name }
func (d *Defined) ClassContext() *ClassContext { return d.cc }
func (d *Defined) IsInterface() bool           { return d.raw.IsInterface() }
func (d *Defined) Modifiers() Modifiers        { return d.raw.Modifiers }
func (d *Defined) SuperName() string           { return d.raw.Super }

// ObjectType is the class or interface object type of this definition.
func (d *Defined) ObjectType() types.TypeID { return d.objType }

// DottedName is the internal name with '/' replaced by '.'.
func (d *Defined) DottedName() string { return strings.ReplaceAll(d.name, "/", ".") }

func (d *Defined) String() string { return d.name }

// Verify resolves descriptors and builds the type's elements.
func (d *Defined) Verify() (*Verified, error) {
	return d.verified.Do(func() (*Verified, error) {
		d.cc.ctx.point("verify", d.name)
		v, err := d.verify()
		if err != nil {
			err = &VerifyError{Type: d.name, Err: err}
			d.cc.ctx.report(diag.VerifyFailed, d.name, err)
			return nil, err
		}
		return v, nil
	})
}

func (d *Defined) verify() (*Verified, error) {
	if strings.ContainsAny(d.name, ".;[") || d.name == "" {
		return nil, fmt.Errorf("illegal class name %q", d.name)
	}
	root := d.cc.ctx.RootClass()
	switch {
	case d.raw.Super == "" && root != "" && d.name != root && !d.IsInterface():
		return nil, errors.New("missing superclass")
	case d.raw.Super != "" && d.name == root:
		return nil, fmt.Errorf("root class cannot extend %s", d.raw.Super)
	case d.raw.Super == d.name:
		return nil, errors.New("class extends itself")
	}

	v := &Verified{defined: d, byName: make(map[string]*FieldElement, len(d.raw.Fields))}
	res := d.cc.descriptors
	for i, rf := range d.raw.Fields {
		if err := checkMemberName(rf.Name, false); err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}
		if _, dup := v.byName[rf.Name]; dup {
			return nil, fmt.Errorf("duplicate field %s", rf.Name)
		}
		ft, err := res.Field(rf.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", rf.Name, err)
		}
		f := &FieldElement{
			Name:       d.cc.Deduplicate(rf.Name),
			Descriptor: rf.Descriptor,
			Type:       ft,
			Modifiers:  rf.Modifiers,
			Enclosing:  d,
			Index:      i,
		}
		v.fields = append(v.fields, f)
		v.byName[f.Name] = f
	}

	seen := make(map[string]struct{}, len(d.raw.Methods))
	for _, rm := range d.raw.Methods {
		sig := rm.Name + rm.Descriptor
		if err := checkMemberName(rm.Name, true); err != nil {
			return nil, fmt.Errorf("method %s: %w", sig, err)
		}
		if _, dup := seen[sig]; dup {
			return nil, fmt.Errorf("duplicate method %s", sig)
		}
		seen[sig] = struct{}{}
		mt, err := res.Method(rm.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", sig, err)
		}
		e := &Executable{
			Name:       d.cc.Deduplicate(rm.Name),
			Descriptor: rm.Descriptor,
			Modifiers:  rm.Modifiers,
			Enclosing:  d,
			Params:     mt.Params,
			Return:     mt.Return,
			Code:       rm.Code,
		}
		switch rm.Name {
		case InitializerName:
			if rm.Descriptor != "()V" {
				return nil, fmt.Errorf("initializer has descriptor %s", rm.Descriptor)
			}
			e.Kind = KindInitializer
			e.Modifiers |= AccStatic
			v.init = e
		case ConstructorName:
			if mt.Return != d.cc.ctx.types.Builtins().Void {
				return nil, fmt.Errorf("constructor %s must return void", sig)
			}
			e.Kind, e.Index = KindConstructor, len(v.ctors)
			v.ctors = append(v.ctors, e)
		default:
			e.Kind, e.Index = KindMethod, len(v.methods)
			v.methods = append(v.methods, e)
		}
	}
	return v, nil
}

// checkMemberName applies the unqualified-name rules: no '.', ';', '[' or
// '/', and for methods no '<' or '>' except in the two special names.
// Mangled function names join member names with '.', so these rules keep
// them distinct.
func checkMemberName(name string, method bool) error {
	if name == "" {
		return errors.New("empty member name")
	}
	if strings.ContainsAny(name, ".;[/") {
		return fmt.Errorf("illegal member name %q", name)
	}
	if method && name != ConstructorName && name != InitializerName && strings.ContainsAny(name, "<>") {
		return fmt.Errorf("illegal method name %q", name)
	}
	return nil
}
