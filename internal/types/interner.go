package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the primitive types.
type Builtins struct {
	Void   TypeID
	Bool   TypeID
	S8     TypeID
	S16    TypeID
	S32    TypeID
	S64    TypeID
	U8     TypeID
	U16    TypeID
	U32    TypeID
	U64    TypeID
	F32    TypeID
	F64    TypeID
	TypeID TypeID
}

// Interner hands out stable TypeIDs for structural descriptors. It is safe
// for concurrent use.
type Interner struct {
	mu        sync.RWMutex
	types     []Type
	index     map[Type]TypeID
	params    map[TypeID][]TypeID
	compounds map[TypeID]*Compound
	supers    map[TypeID]TypeID
	target    Target
	builtins  Builtins
}

// NewInterner constructs an interner for target seeded with the primitives.
func NewInterner(target Target) *Interner {
	in := &Interner{
		types:     make([]Type, 1, 64), // 0 is NoTypeID
		index:     make(map[Type]TypeID, 64),
		params:    make(map[TypeID][]TypeID),
		compounds: make(map[TypeID]*Compound),
		supers:    make(map[TypeID]TypeID),
		target:    target,
	}
	in.builtins = Builtins{
		Void:   in.Intern(Type{Kind: KindVoid}),
		Bool:   in.Intern(Type{Kind: KindBool}),
		S8:     in.Intern(MakeInt(Width8)),
		S16:    in.Intern(MakeInt(Width16)),
		S32:    in.Intern(MakeInt(Width32)),
		S64:    in.Intern(MakeInt(Width64)),
		U8:     in.Intern(MakeUint(Width8)),
		U16:    in.Intern(MakeUint(Width16)),
		U32:    in.Intern(MakeUint(Width32)),
		U64:    in.Intern(MakeUint(Width64)),
		F32:    in.Intern(MakeFloat(Width32)),
		F64:    in.Intern(MakeFloat(Width64)),
		TypeID: in.Intern(Type{Kind: KindTypeID}),
	}
	return in
}

func (in *Interner) Builtins() Builtins { return in.builtins }
func (in *Interner) Target() Target     { return in.target }

// Intern returns the TypeID of t, allocating one on first sight.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	in.mu.RLock()
	id, ok := in.index[t]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internLocked(t)
}

func (in *Interner) internLocked(t Type) TypeID {
	if id, ok := in.index[t]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("types: interner overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for id.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics on an unknown id.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return t
}

// Kind returns the kind of id or KindInvalid.
func (in *Interner) Kind(id TypeID) Kind {
	t, _ := in.Lookup(id)
	return t.Kind
}

// Reference returns the nullable reference type to an object type.
func (in *Interner) Reference(target TypeID) TypeID {
	return in.Intern(MakeReference(target, true))
}

// Class returns the class object type named by its internal name. Class
// types are keyed by name alone; the superclass link is attached later with
// SetSuper once the hierarchy is resolved.
func (in *Interner) Class(name string) TypeID {
	return in.Intern(Type{Kind: KindClass, Name: name})
}

// SetSuper records the superclass of a class object type. The first link
// wins; a later conflicting link is reported as false.
func (in *Interner) SetSuper(class, super TypeID) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if cur, ok := in.supers[class]; ok {
		return cur == super
	}
	in.supers[class] = super
	return true
}

// Super returns the recorded superclass of a class object type.
func (in *Interner) Super(class TypeID) TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.supers[class]
}

// Interface returns the interface object type named by its internal name.
func (in *Interner) Interface(name string) TypeID {
	return in.Intern(Type{Kind: KindInterface, Name: name})
}

// PrimitiveArray returns the array object type whose elements are elem.
func (in *Interner) PrimitiveArray(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPrimArray, Elem: elem})
}

// ReferenceArray returns the array object type whose elements are the
// reference type elemRef.
func (in *Interner) ReferenceArray(elemRef TypeID) TypeID {
	return in.Intern(Type{Kind: KindRefArray, Elem: elemRef})
}

// Function returns the function type ret(params...).
func (in *Interner) Function(ret TypeID, params ...TypeID) TypeID {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
	}
	t := Type{Kind: KindFunction, Elem: ret, Sig: sb.String()}
	in.mu.Lock()
	defer in.mu.Unlock()
	id := in.internLocked(t)
	if _, ok := in.params[id]; !ok {
		in.params[id] = append([]TypeID(nil), params...)
	}
	return id
}

// Params returns the parameter types of a function type.
func (in *Interner) Params(fn TypeID) []TypeID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]TypeID(nil), in.params[fn]...)
}

// Return returns the return type of a function type.
func (in *Interner) Return(fn TypeID) TypeID {
	t, ok := in.Lookup(fn)
	if !ok || t.Kind != KindFunction {
		return NoTypeID
	}
	return t.Elem
}

// ErrNotArray is returned by ElementType for non-array types.
var ErrNotArray = errors.New("type has no element type")

// ElementType returns the element type of a value array, primitive array or
// reference array.
func (in *Interner) ElementType(id TypeID) (TypeID, error) {
	t, ok := in.Lookup(id)
	if !ok {
		return NoTypeID, fmt.Errorf("types: invalid TypeID %d", id)
	}
	switch t.Kind {
	case KindArray, KindPrimArray, KindRefArray:
		return t.Elem, nil
	}
	return NoTypeID, fmt.Errorf("%w: %s", ErrNotArray, in.FriendlyString(id))
}

// UpperBound returns the object type a reference points to.
func (in *Interner) UpperBound(ref TypeID) (TypeID, error) {
	t, ok := in.Lookup(ref)
	if !ok || t.Kind != KindReference {
		return NoTypeID, fmt.Errorf("types: %s is not a reference", in.FriendlyString(ref))
	}
	return t.Elem, nil
}

// IsSubclass reports whether class object type sub equals sup or extends it.
func (in *Interner) IsSubclass(sub, sup TypeID) bool {
	for cur := sub; cur != NoTypeID; {
		if cur == sup {
			return true
		}
		if in.Kind(cur) != KindClass {
			return false
		}
		cur = in.Super(cur)
	}
	return false
}
