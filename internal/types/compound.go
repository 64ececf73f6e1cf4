package types

import (
	"fmt"
	"slices"
	"strconv"
)

// CompoundTag distinguishes structs from unions.
type CompoundTag uint8

const (
	TagStruct CompoundTag = iota
	TagUnion
)

func (t CompoundTag) String() string {
	if t == TagUnion {
		return "union"
	}
	return "struct"
}

// Member is one slot of a compound type.
type Member struct {
	Name   string
	Type   TypeID
	Offset uint64
	Align  uint64
}

// End returns the first byte after the member.
func (m Member) End(in *Interner) uint64 {
	sz, _ := in.Size(m.Type)
	return m.Offset + sz
}

// Compound is a laid-out record. Compounds are immutable once interned.
type Compound struct {
	Tag     CompoundTag
	Name    string
	Size    uint64
	Align   uint64
	Members []Member
}

// NewCompound interns c as a fresh type. Compounds are nominal: two calls
// never return the same id.
func (in *Interner) NewCompound(c Compound) TypeID {
	c.Members = slices.Clone(c.Members)
	in.mu.Lock()
	defer in.mu.Unlock()
	serial := strconv.Itoa(len(in.compounds) + 1)
	id := in.internLocked(Type{Kind: KindCompound, Name: c.Name, Sig: serial})
	in.compounds[id] = &c
	return id
}

// Compound returns the record for a compound TypeID.
func (in *Interner) Compound(id TypeID) (*Compound, error) {
	in.mu.RLock()
	c, ok := in.compounds[id]
	in.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("types: %d is not a compound type", id)
	}
	return c, nil
}

// Member returns the member with the given name.
func (c *Compound) Member(name string) (Member, bool) {
	for _, m := range c.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}
