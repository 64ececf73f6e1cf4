package types

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrUnsized is returned for types that have no value size (objects, functions).
var ErrUnsized = errors.New("type has no value size")

// Size returns the storage size of a value of type id on the interner's target.
func (in *Interner) Size(id TypeID) (uint64, error) {
	t, ok := in.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("types: invalid TypeID %d", id)
	}
	switch t.Kind {
	case KindVoid:
		return 0, nil
	case KindBool:
		return 1, nil
	case KindInt, KindUint, KindFloat:
		return uint64(t.Width) / 8, nil
	case KindTypeID:
		return in.target.TypeIDSize, nil
	case KindReference:
		return in.target.PtrSize, nil
	case KindArray:
		es, err := in.Size(t.Elem)
		if err != nil {
			return 0, err
		}
		return es * uint64(t.Count), nil
	case KindCompound:
		c, err := in.Compound(id)
		if err != nil {
			return 0, err
		}
		return c.Size, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsized, in.FriendlyString(id))
}

// Align returns the required alignment of a value of type id. Always >= 1.
func (in *Interner) Align(id TypeID) (uint64, error) {
	t, ok := in.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("types: invalid TypeID %d", id)
	}
	switch t.Kind {
	case KindVoid, KindBool:
		return 1, nil
	case KindInt, KindUint, KindFloat:
		return uint64(t.Width) / 8, nil
	case KindTypeID:
		return in.target.TypeIDSize, nil
	case KindReference:
		return in.target.PtrAlign, nil
	case KindArray:
		return in.Align(t.Elem)
	case KindCompound:
		c, err := in.Compound(id)
		if err != nil {
			return 0, err
		}
		return max(c.Align, 1), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsized, in.FriendlyString(id))
}

// SizeInt is Size converted to int for bit-level allocators.
func (in *Interner) SizeInt(id TypeID) (int, error) {
	sz, err := in.Size(id)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[int](sz)
}
