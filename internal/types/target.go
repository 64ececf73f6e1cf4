package types

import "fmt"

// Target carries the machine parameters that affect type sizes.
type Target struct {
	Triple     string
	PtrSize    uint64
	PtrAlign   uint64
	TypeIDSize uint64
}

var (
	X86_64LinuxGNU = Target{Triple: "x86_64-linux-gnu", PtrSize: 8, PtrAlign: 8, TypeIDSize: 4}
	Wasm32         = Target{Triple: "wasm32", PtrSize: 4, PtrAlign: 4, TypeIDSize: 4}
)

// TargetByTriple returns the known target for triple.
func TargetByTriple(triple string) (Target, error) {
	switch triple {
	case "", X86_64LinuxGNU.Triple:
		return X86_64LinuxGNU, nil
	case Wasm32.Triple:
		return Wasm32, nil
	}
	return Target{}, fmt.Errorf("unsupported target %q (expected %s or %s)", triple, X86_64LinuxGNU.Triple, Wasm32.Triple)
}
