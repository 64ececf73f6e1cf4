package layout

import (
	"slices"

	"github.com/bits-and-blooms/bitset"

	"aotc/internal/definition"
	"aotc/internal/types"
)

// Info is the instance layout of one class. It is immutable once published.
type Info struct {
	typeName string
	objType  types.TypeID
	compound types.TypeID
	record   *types.Compound
	super    *Info
	bits     *bitset.BitSet
	byIndex  map[int]types.Member
	fields   []*definition.FieldElement
	size     uint64
	align    uint64
}

func (i *Info) TypeName() string         { return i.typeName }
func (i *Info) ObjectType() types.TypeID { return i.objType }

// Compound is the record type holding this class's own instance fields.
func (i *Info) Compound() types.TypeID { return i.compound }

// Size is the end of the last occupied byte, inherited fields included.
func (i *Info) Size() uint64 { return i.size }

// Align is the largest alignment of any instance field, at least 1.
func (i *Info) Align() uint64 { return i.align }

// Super returns the superclass layout, nil for the root.
func (i *Info) Super() *Info { return i.super }

// Members returns this class's own members in field order.
func (i *Info) Members() []types.Member { return slices.Clone(i.record.Members) }

// Fields returns the instance fields laid out by this class, in field order.
func (i *Info) Fields() []*definition.FieldElement { return slices.Clone(i.fields) }

// AllMembers returns inherited and own members sorted by offset.
func (i *Info) AllMembers() []types.Member {
	var out []types.Member
	for cur := i; cur != nil; cur = cur.super {
		out = append(out, cur.record.Members...)
	}
	slices.SortStableFunc(out, func(a, b types.Member) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})
	return out
}

// Member returns the member for an instance field declared by this class or
// any superclass.
func (i *Info) Member(f *definition.FieldElement) (types.Member, bool) {
	for cur := i; cur != nil; cur = cur.super {
		if f.Enclosing.Name() != cur.typeName {
			continue
		}
		m, ok := cur.byIndex[f.Index]
		return m, ok
	}
	return types.Member{}, false
}

// Occupied reports whether byte off is allocated.
func (i *Info) Occupied(off uint64) bool {
	return i.bits.Test(uint(off))
}

// Allocated returns a copy of the allocation bitset.
func (i *Info) Allocated() *bitset.BitSet { return i.bits.Clone() }
