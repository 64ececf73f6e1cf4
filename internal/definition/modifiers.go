package definition

import (
	"fmt"
	"strings"
)

// Modifiers is the access flag word of a class, field or method.
type Modifiers uint32

const (
	AccPublic    Modifiers = 0x0001
	AccPrivate   Modifiers = 0x0002
	AccProtected Modifiers = 0x0004
	AccStatic    Modifiers = 0x0008
	AccFinal     Modifiers = 0x0010
	AccVolatile  Modifiers = 0x0040
	AccNative    Modifiers = 0x0100
	AccInterface Modifiers = 0x0200
	AccAbstract  Modifiers = 0x0400
	AccSynthetic Modifiers = 0x1000
	// AccHidden marks compiler-injected members invisible to reflection.
	AccHidden Modifiers = 0x10000
)

var modifierNames = []struct {
	name string
	bit  Modifiers
}{
	{"public", AccPublic},
	{"private", AccPrivate},
	{"protected", AccProtected},
	{"static", AccStatic},
	{"final", AccFinal},
	{"volatile", AccVolatile},
	{"native", AccNative},
	{"interface", AccInterface},
	{"abstract", AccAbstract},
	{"synthetic", AccSynthetic},
	{"hidden", AccHidden},
}

func (m Modifiers) Has(bit Modifiers) bool { return m&bit == bit }

func (m Modifiers) String() string {
	var parts []string
	for _, n := range modifierNames {
		if m.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseModifiers converts keyword lists such as ["public", "static"].
func ParseModifiers(words []string) (Modifiers, error) {
	var m Modifiers
next:
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		for _, n := range modifierNames {
			if n.name == w {
				m |= n.bit
				continue next
			}
		}
		return 0, fmt.Errorf("unknown modifier %q", w)
	}
	return m, nil
}
