package types

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	b := in.Builtins()
	if b.Void == NoTypeID || b.S32 == NoTypeID || b.S32 == b.U32 {
		t.Fatalf("builtins not initialized: %+v", b)
	}
	if in.Kind(b.F64) != KindFloat {
		t.Fatalf("expected float kind, got %v", in.Kind(b.F64))
	}
	if in.Intern(MakeInt(Width32)) != b.S32 {
		t.Fatalf("s32 must be deduplicated against builtin")
	}
}

func TestInternerConcurrentDedup(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	obj := in.Class("java/lang/Object")
	ids := make([]TypeID, 64)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = in.Reference(in.ReferenceArray(in.Reference(obj)))
		}()
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent interning produced distinct ids")
		}
	}
}

func TestNullabilityAffectsIdentity(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	obj := in.Class("java/lang/Object")
	if in.Intern(MakeReference(obj, true)) == in.Intern(MakeReference(obj, false)) {
		t.Fatalf("nullable and non-null references must differ")
	}
}

func TestSizesPerTarget(t *testing.T) {
	for _, tc := range []struct {
		target  Target
		refSize uint64
	}{{X86_64LinuxGNU, 8}, {Wasm32, 4}} {
		in := NewInterner(tc.target)
		ref := in.Reference(in.Class("A"))
		if sz, _ := in.Size(ref); sz != tc.refSize {
			t.Fatalf("%s: ref size %d", tc.target.Triple, sz)
		}
		b := in.Builtins()
		if sz, _ := in.Size(b.S64); sz != 8 {
			t.Fatalf("s64 size %d", sz)
		}
		if al, _ := in.Align(b.Bool); al != 1 {
			t.Fatalf("bool align %d", al)
		}
		arr := in.Intern(MakeArray(b.S32, 3))
		if sz, _ := in.Size(arr); sz != 12 {
			t.Fatalf("array size %d", sz)
		}
		if _, err := in.Size(in.Class("A")); !errors.Is(err, ErrUnsized) {
			t.Fatalf("object types are unsized, got %v", err)
		}
	}
}

func TestFriendlyStringHasNoDots(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	b := in.Builtins()
	str := in.Class("java/lang/String")
	cases := []struct {
		id   TypeID
		want string
	}{
		{b.S32, "s32"},
		{b.U16, "u16"},
		{b.F64, "f64"},
		{b.Void, "void"},
		{in.Reference(str), "ref<class<java/lang/String>>"},
		{in.PrimitiveArray(b.S32), "prim_array<s32>"},
		{in.Function(b.Void, b.S32, b.Bool), "fn<void(s32,bool)>"},
	}
	for _, tc := range cases {
		got := in.FriendlyString(tc.id)
		if got != tc.want {
			t.Fatalf("FriendlyString = %q, want %q", got, tc.want)
		}
		if strings.Contains(got, ".") {
			t.Fatalf("%q contains a dot", got)
		}
	}
}

func TestFunctionParams(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	b := in.Builtins()
	f1 := in.Function(b.S32, b.S64, b.Bool)
	f2 := in.Function(b.S32, b.S64, b.Bool)
	f3 := in.Function(b.S32, b.Bool, b.S64)
	if f1 != f2 || f1 == f3 {
		t.Fatalf("function interning: f1=%d f2=%d f3=%d", f1, f2, f3)
	}
	if p := in.Params(f3); len(p) != 2 || p[0] != b.Bool || in.Return(f3) != b.S32 {
		t.Fatalf("params=%v", p)
	}
}

func TestElementTypeAndUpperBound(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	b := in.Builtins()
	pa := in.PrimitiveArray(b.F32)
	if e, err := in.ElementType(pa); err != nil || e != b.F32 {
		t.Fatalf("ElementType = %v, %v", e, err)
	}
	if _, err := in.ElementType(b.S32); !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}
	if ub, err := in.UpperBound(in.Reference(pa)); err != nil || ub != pa {
		t.Fatalf("UpperBound = %v, %v", ub, err)
	}
}

func TestCompoundsAreNominal(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	c := Compound{Name: "A", Size: 4, Align: 4, Members: []Member{{Name: "x", Type: in.Builtins().S32}}}
	a1, a2 := in.NewCompound(c), in.NewCompound(c)
	if a1 == a2 {
		t.Fatalf("compounds must be nominal")
	}
	got, err := in.Compound(a1)
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := got.Member("x"); !ok || m.End(in) != 4 {
		t.Fatalf("member lookup failed: %+v", m)
	}
}

func TestIsSubclass(t *testing.T) {
	in := NewInterner(X86_64LinuxGNU)
	obj := in.Class("java/lang/Object")
	base := in.Class("Base")
	derived := in.Class("Derived")
	in.SetSuper(base, obj)
	in.SetSuper(derived, base)
	if in.SetSuper(derived, obj) {
		t.Fatalf("conflicting super link must be rejected")
	}
	if !in.IsSubclass(derived, obj) || in.IsSubclass(base, derived) {
		t.Fatalf("subclass walk broken")
	}
}

func TestTargetByTriple(t *testing.T) {
	if tg, err := TargetByTriple("wasm32"); err != nil || tg.PtrSize != 4 {
		t.Fatalf("wasm32: %+v %v", tg, err)
	}
	if _, err := TargetByTriple("sparc"); err == nil {
		t.Fatalf("unknown triple accepted")
	}
}
