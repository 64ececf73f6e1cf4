// Package memory defines the access-mode contract of memory operations and a
// word-addressed memory region used for static storage.
package memory

import "fmt"

// AccessMode orders memory accesses. Modes form a lattice:
//
//	Unordered < Opaque < {Acquire, Release} < AcqRel < SeqCst
//
// Acquire and Release are incomparable.
type AccessMode uint8

const (
	Unordered AccessMode = iota
	Opaque
	Acquire
	Release
	AcqRel
	SeqCst
)

var modeNames = [...]string{
	Unordered: "unordered",
	Opaque:    "opaque",
	Acquire:   "acquire",
	Release:   "release",
	AcqRel:    "acq_rel",
	SeqCst:    "seq_cst",
}

func (m AccessMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", m)
}

// ParseAccessMode maps a mode name back to its value.
func ParseAccessMode(s string) (AccessMode, error) {
	for m, name := range modeNames {
		if name == s {
			return AccessMode(m), nil
		}
	}
	return Unordered, fmt.Errorf("unknown access mode %q", s)
}

// Includes reports whether other is no stronger than m, so an access that
// satisfies m also satisfies other.
func (m AccessMode) Includes(other AccessMode) bool {
	if m == other || other == Unordered {
		return true
	}
	switch m {
	case SeqCst:
		return true
	case AcqRel:
		return other != SeqCst
	case Acquire, Release:
		return other == Opaque
	}
	return false
}

// CanRead reports whether m is a valid mode for a load.
func (m AccessMode) CanRead() bool { return m != Release && m <= SeqCst }

// CanWrite reports whether m is a valid mode for a store.
func (m AccessMode) CanWrite() bool { return m != Acquire && m <= SeqCst }

// Join returns the weakest mode that includes both a and b.
func Join(a, b AccessMode) AccessMode {
	switch {
	case a.Includes(b):
		return a
	case b.Includes(a):
		return b
	case a <= AcqRel && b <= AcqRel:
		return AcqRel
	}
	return SeqCst
}
