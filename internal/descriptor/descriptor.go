// Package descriptor parses field and method descriptors into interned types.
//
// Grammar:
//
//	FieldType  = 'B' | 'C' | 'D' | 'F' | 'I' | 'J' | 'S' | 'Z' | 'L' name ';' | '[' FieldType
//	MethodType = '(' FieldType* ')' ( FieldType | 'V' )
package descriptor

import (
	"fmt"
	"strings"

	"aotc/internal/types"
)

// ObjectTypes maps a class internal name to its object type.
type ObjectTypes interface {
	ObjectType(internalName string) (types.TypeID, error)
}

// Error reports a malformed descriptor.
type Error struct {
	Descriptor string
	Offset     int
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("descriptor %q at %d: %s: %v", e.Descriptor, e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("descriptor %q at %d: %s", e.Descriptor, e.Offset, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Method is a parsed method descriptor.
type Method struct {
	Params []types.TypeID
	Return types.TypeID
}

// Resolver turns descriptor strings into TypeIDs.
type Resolver struct {
	types   *types.Interner
	objects ObjectTypes
}

// NewResolver creates a resolver; objects resolves class names in L...; forms.
func NewResolver(in *types.Interner, objects ObjectTypes) *Resolver {
	return &Resolver{types: in, objects: objects}
}

// Field parses a field descriptor.
func (r *Resolver) Field(desc string) (types.TypeID, error) {
	p := parser{r: r, s: desc}
	id, err := p.field()
	if err != nil {
		return types.NoTypeID, err
	}
	if p.pos != len(desc) {
		return types.NoTypeID, p.fail("trailing characters", nil)
	}
	return id, nil
}

// Method parses a method descriptor.
func (r *Resolver) Method(desc string) (Method, error) {
	p := parser{r: r, s: desc}
	if !p.eat('(') {
		return Method{}, p.fail("expected '('", nil)
	}
	var m Method
	for !p.eat(')') {
		if p.done() {
			return Method{}, p.fail("unterminated parameter list", nil)
		}
		id, err := p.field()
		if err != nil {
			return Method{}, err
		}
		m.Params = append(m.Params, id)
	}
	if p.eat('V') {
		m.Return = r.types.Builtins().Void
	} else {
		id, err := p.field()
		if err != nil {
			return Method{}, err
		}
		m.Return = id
	}
	if !p.done() {
		return Method{}, p.fail("trailing characters", nil)
	}
	return m, nil
}

// ParamSlots counts the parameters of a method descriptor without resolving
// class names.
func ParamSlots(desc string) (int, error) {
	lp, rp := strings.IndexByte(desc, '('), strings.IndexByte(desc, ')')
	if lp != 0 || rp < 0 {
		return 0, &Error{Descriptor: desc, Msg: "not a method descriptor"}
	}
	n := 0
	body := desc[1:rp]
	for i := 0; i < len(body); i++ {
		for body[i] == '[' {
			i++
			if i == len(body) {
				return 0, &Error{Descriptor: desc, Offset: i + 1, Msg: "dangling array marker"}
			}
		}
		if body[i] == 'L' {
			end := strings.IndexByte(body[i:], ';')
			if end < 0 {
				return 0, &Error{Descriptor: desc, Offset: i + 1, Msg: "unterminated class name"}
			}
			i += end
		}
		n++
	}
	return n, nil
}

type parser struct {
	r   *Resolver
	s   string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.s) }

func (p *parser) eat(c byte) bool {
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) fail(msg string, err error) error {
	return &Error{Descriptor: p.s, Offset: p.pos, Msg: msg, Err: err}
}

func (p *parser) field() (types.TypeID, error) {
	if p.done() {
		return types.NoTypeID, p.fail("unexpected end", nil)
	}
	b := p.r.types.Builtins()
	c := p.s[p.pos]
	p.pos++
	switch c {
	case 'B':
		return b.S8, nil
	case 'C':
		return b.U16, nil
	case 'D':
		return b.F64, nil
	case 'F':
		return b.F32, nil
	case 'I':
		return b.S32, nil
	case 'J':
		return b.S64, nil
	case 'S':
		return b.S16, nil
	case 'Z':
		return b.Bool, nil
	case 'L':
		end := strings.IndexByte(p.s[p.pos:], ';')
		if end <= 0 {
			return types.NoTypeID, p.fail("bad class name", nil)
		}
		name := p.s[p.pos : p.pos+end]
		if strings.ContainsAny(name, ".[") {
			return types.NoTypeID, p.fail("illegal character in class name", nil)
		}
		obj, err := p.r.objects.ObjectType(name)
		if err != nil {
			return types.NoTypeID, p.fail("cannot resolve "+name, err)
		}
		p.pos += end + 1
		return p.r.types.Reference(obj), nil
	case '[':
		elem, err := p.field()
		if err != nil {
			return types.NoTypeID, err
		}
		if p.r.types.Kind(elem) == types.KindReference {
			return p.r.types.Reference(p.r.types.ReferenceArray(elem)), nil
		}
		return p.r.types.Reference(p.r.types.PrimitiveArray(elem)), nil
	}
	p.pos--
	return types.NoTypeID, p.fail(fmt.Sprintf("unexpected %q", c), nil)
}
