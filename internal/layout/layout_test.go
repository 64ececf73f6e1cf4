package layout

import (
	"errors"
	"sync"
	"testing"

	"github.com/bits-and-blooms/bitset"

	"aotc/internal/definition"
	"aotc/internal/types"
)

const (
	object = "java/lang/Object"
	class  = "java/lang/Class"
)

func field(name, desc string) definition.RawField {
	return definition.RawField{Name: name, Descriptor: desc}
}

func newEngine(t *testing.T, root string, defs ...*definition.RawDefinition) (*Engine, *definition.Context) {
	t.Helper()
	src := definition.MapSource{}
	for _, d := range defs {
		src[d.Name] = d
	}
	ctx := definition.NewContext(types.NewInterner(types.X86_64LinuxGNU), src, definition.Options{RootClass: root})
	opts := Options{RootClass: root}
	if root != "" {
		opts.ClassClass = class
	}
	e, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, ctx
}

func withRoot(defs ...*definition.RawDefinition) []*definition.RawDefinition {
	return append([]*definition.RawDefinition{
		{Name: object, Modifiers: definition.AccPublic},
		{Name: class, Super: object, Modifiers: definition.AccPublic | definition.AccFinal},
	}, defs...)
}

func resolved(t *testing.T, ctx *definition.Context, name string) *definition.Resolved {
	t.Helper()
	d, err := ctx.Bootstrap().FindDefinedType(name)
	if err != nil {
		t.Fatalf("find %s: %v", name, err)
	}
	v, err := d.Verify()
	if err != nil {
		t.Fatalf("verify %s: %v", name, err)
	}
	r, err := v.Resolve()
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return r
}

func offsetOf(t *testing.T, e *Engine, r *definition.Resolved, name string) uint64 {
	t.Helper()
	f, ok := r.Verified().Field(name)
	if !ok {
		t.Fatalf("%s has no field %s", r.Name(), name)
	}
	off, err := e.FieldOffset(f)
	if err != nil {
		t.Fatalf("offset of %s.%s: %v", r.Name(), name, err)
	}
	return off
}

func TestBaseDerivedPadding(t *testing.T) {
	e, ctx := newEngine(t, "",
		&definition.RawDefinition{Name: "app/Base", Fields: []definition.RawField{field("a", "I")}},
		&definition.RawDefinition{Name: "app/Derived", Super: "app/Base", Fields: []definition.RawField{field("b", "J")}},
	)
	derived := resolved(t, ctx, "app/Derived")
	info, err := e.InstanceLayoutInfo(derived)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if got := offsetOf(t, e, derived.Super(), "a"); got != 0 {
		t.Fatalf("Base.a at %d, want 0", got)
	}
	if got := offsetOf(t, e, derived, "b"); got != 8 {
		t.Fatalf("Derived.b at %d, want 8", got)
	}
	if info.Size() != 16 || info.Align() != 8 {
		t.Fatalf("size/align = %d/%d, want 16/8", info.Size(), info.Align())
	}
	if info.Occupied(5) || !info.Occupied(3) || !info.Occupied(15) {
		t.Fatalf("unexpected occupancy %s", info.Allocated())
	}
}

func TestFirstFitFillsHoles(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(&definition.RawDefinition{
		Name:   "app/Mixed",
		Super:  object,
		Fields: []definition.RawField{field("b", "B"), field("l", "J"), field("i", "I"), field("s", "S")},
	})...)
	r := resolved(t, ctx, "app/Mixed")
	want := map[string]uint64{"b": 4, "l": 8, "i": 16, "s": 6}
	for name, off := range want {
		if got := offsetOf(t, e, r, name); got != off {
			t.Fatalf("%s at %d, want %d", name, got, off)
		}
	}
	info, err := e.InstanceLayoutInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 20 || info.Align() != 8 {
		t.Fatalf("size/align = %d/%d, want 20/8", info.Size(), info.Align())
	}
}

func TestLayoutNonOverlapAndAlignment(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(
		&definition.RawDefinition{Name: "app/A", Super: object, Fields: []definition.RawField{
			field("z", "Z"), field("d", "D"), field("c", "C"), field("o", "Ljava/lang/Object;"),
		}},
		&definition.RawDefinition{Name: "app/B", Super: "app/A", Fields: []definition.RawField{
			field("s", "S"), field("f", "F"), field("arr", "[I"), field("b", "B"), field("j", "J"),
		}},
	)...)
	in := ctx.Types()
	info, err := e.InstanceLayoutInfo(resolved(t, ctx, "app/B"))
	if err != nil {
		t.Fatal(err)
	}
	members := info.AllMembers()
	if len(members) != 10 {
		t.Fatalf("got %d members, want 10 (klass plus 9 declared)", len(members))
	}
	for i, m := range members {
		align, _ := in.Align(m.Type)
		if m.Offset%align != 0 {
			t.Fatalf("%s at %d breaks alignment %d", m.Name, m.Offset, align)
		}
		for _, o := range members[i+1:] {
			if m.Offset < o.End(in) && o.Offset < m.End(in) {
				t.Fatalf("%s [%d,%d) overlaps %s [%d,%d)", m.Name, m.Offset, m.End(in), o.Name, o.Offset, o.End(in))
			}
		}
		if m.End(in) > info.Size() {
			t.Fatalf("%s ends past size %d", m.Name, info.Size())
		}
	}
}

func TestConcurrentFirstLayoutIsShared(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(
		&definition.RawDefinition{Name: "app/A", Super: object, Fields: []definition.RawField{field("x", "B"), field("y", "J")}},
		&definition.RawDefinition{Name: "app/B", Super: "app/A", Fields: []definition.RawField{field("z", "I"), field("w", "S")}},
	)...)
	b := resolved(t, ctx, "app/B")
	z, ok := b.Verified().Field("z")
	if !ok {
		t.Fatalf("app/B has no field z")
	}
	const n = 16
	var wg sync.WaitGroup
	infos := make([]*Info, n)
	offsets := make([]uint64, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				off, err := e.FieldOffset(z)
				if err != nil {
					t.Errorf("offset: %v", err)
					return
				}
				offsets[i] = off
			}
			info, err := e.InstanceLayoutInfo(b)
			if err != nil {
				t.Errorf("layout: %v", err)
				return
			}
			infos[i] = info
			if i%2 != 0 {
				offsets[i], _ = e.FieldOffset(z)
			}
		}()
	}
	wg.Wait()
	for i := range n {
		if infos[i] == nil || infos[i] != infos[0] {
			t.Fatalf("expected one published Info for app/B")
		}
		if offsets[i] != offsets[0] {
			t.Fatalf("z offsets differ: %d vs %d", offsets[i], offsets[0])
		}
	}
	if infos[0].Super() == nil || infos[0].Super().TypeName() != "app/A" {
		t.Fatalf("super layout not linked")
	}
	member, ok := infos[0].Member(z)
	if !ok || member.Offset != offsets[0] {
		t.Fatalf("member offset disagrees with FieldOffset")
	}
}

func TestPrefixCompatibility(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(
		&definition.RawDefinition{Name: "app/A", Super: object, Fields: []definition.RawField{field("x", "B"), field("y", "J")}},
		&definition.RawDefinition{Name: "app/B", Super: "app/A", Fields: []definition.RawField{field("z", "I"), field("w", "S")}},
	)...)
	sub := resolved(t, ctx, "app/B")
	subInfo, err := e.InstanceLayoutInfo(sub)
	if err != nil {
		t.Fatal(err)
	}
	superInfo, err := e.InstanceLayoutInfo(sub.Super())
	if err != nil {
		t.Fatal(err)
	}
	if subInfo.Super() != superInfo {
		t.Fatal("subclass layout does not link the memoized superclass layout")
	}
	for _, m := range superInfo.AllMembers() {
		for off := m.Offset; off < m.End(ctx.Types()); off++ {
			if !subInfo.Occupied(off) {
				t.Fatalf("byte %d of inherited %s is free in subclass", off, m.Name)
			}
		}
	}
	for _, f := range sub.Super().Verified().InstanceFields() {
		a, _ := superInfo.Member(f)
		b, _ := subInfo.Member(f)
		if a != b {
			t.Fatalf("inherited %s moved: %+v vs %+v", f.Name, a, b)
		}
	}
	if subInfo.Size() < superInfo.Size() {
		t.Fatalf("subclass smaller than superclass")
	}
}

func TestInterfaceLayoutIsInvariantViolation(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(&definition.RawDefinition{
		Name: "app/I", Modifiers: definition.AccPublic | definition.AccInterface | definition.AccAbstract,
	})...)
	_, err := e.InstanceLayoutInfo(resolved(t, ctx, "app/I"))
	if !errors.Is(err, ErrInterfaceLayout) || !errors.Is(err, definition.ErrInvariant) {
		t.Fatalf("err = %v, want interface invariant violation", err)
	}
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrInterface {
		t.Fatalf("err = %#v, want LayoutErrInterface", err)
	}
}

func TestHeaderFields(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot()...)
	klass := e.ObjectTypeIDField()
	if klass == nil || klass.Name != FieldTypeID || !klass.IsHidden() {
		t.Fatalf("klass field = %v", klass)
	}
	if off, err := e.FieldOffset(klass); err != nil || off != 0 {
		t.Fatalf("klass at %d (%v), want 0", off, err)
	}
	id := e.ClassTypeIDField()
	if id == nil || id.Enclosing.Name() != class {
		t.Fatalf("id field = %v", id)
	}
	if off, err := e.FieldOffset(id); err != nil || off != 4 {
		t.Fatalf("id at %d (%v), want 4", off, err)
	}
	v, err := resolved(t, ctx, object).Prepare()
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if v.Layout().Size() != 4 {
		t.Fatalf("root size %d, want 4", v.Layout().Size())
	}
	if _, err := resolved(t, ctx, object).Verified().InjectField(definition.FieldSpec{Name: "late", Type: ctx.Types().Builtins().S32}); !errors.Is(err, definition.ErrFieldsSealed) {
		t.Fatalf("inject after layout: %v", err)
	}
}

func TestArrayFields(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot()...)
	in := ctx.Types()
	b := in.Builtins()
	if off, err := e.FieldOffset(e.ArrayLengthField()); err != nil || off != 4 {
		t.Fatalf("length at %d (%v), want 4", off, err)
	}

	ints := in.PrimitiveArray(b.S32)
	content, ok := e.ArrayContentField(ints)
	if !ok || content.Enclosing.Name() != ArrayBaseClass+"/I" {
		t.Fatalf("int[] content = %v, %v", content, ok)
	}
	if et, _ := in.ElementType(content.Type); et != b.S32 {
		t.Fatalf("int[] content element %s", in.FriendlyString(et))
	}
	if off, err := e.FieldOffset(content); err != nil || off != 8 {
		t.Fatalf("int[] content at %d (%v), want 8", off, err)
	}
	for _, elem := range []types.TypeID{b.Bool, b.S8, b.S16, b.S64, b.U16, b.F32, b.F64} {
		if _, ok := e.ArrayContentField(in.PrimitiveArray(elem)); !ok {
			t.Fatalf("no content field for %s[]", in.FriendlyString(elem))
		}
	}
	if _, ok := e.ArrayContentField(in.PrimitiveArray(b.U32)); ok {
		t.Fatal("u32 arrays have no array class")
	}
	if f, ok := e.ArrayContentField(b.S32); ok || f != nil {
		t.Fatal("non-array type has a content field")
	}

	strings := in.ReferenceArray(in.Reference(in.Class("java/lang/String")))
	refContent, ok := e.ArrayContentField(strings)
	if !ok || refContent != e.RefArrayContentField() {
		t.Fatalf("ref content = %v, %v", refContent, ok)
	}
	ref, ok := e.ArrayClass(strings)
	if !ok || ref.Name() != RefArrayClass {
		t.Fatalf("ArrayClass = %v", ref)
	}
	v, err := ref.Verify()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range v.InstanceFields() {
		names = append(names, f.Name)
	}
	if len(names) != 3 || names[0] != FieldDims || names[1] != FieldElementType || names[2] != FieldContent {
		t.Fatalf("ref array fields = %v", names)
	}
	want := []uint64{8, 12, 16}
	for i, f := range []*definition.FieldElement{e.RefArrayDimensionsField(), e.RefArrayElementTypeField(), e.RefArrayContentField()} {
		if off, err := e.FieldOffset(f); err != nil || off != want[i] {
			t.Fatalf("%s at %d (%v), want %d", f.Name, off, err, want[i])
		}
	}
}

func TestStaticFieldHasNoOffset(t *testing.T) {
	e, ctx := newEngine(t, object, withRoot(&definition.RawDefinition{
		Name: "app/S", Super: object,
		Fields: []definition.RawField{{Name: "count", Descriptor: "I", Modifiers: definition.AccStatic}},
	})...)
	f, _ := resolved(t, ctx, "app/S").Verified().Field("count")
	_, err := e.FieldOffset(f)
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrStaticField {
		t.Fatalf("err = %v, want static-field", err)
	}
}

func TestSetupFailsWithoutRoot(t *testing.T) {
	ctx := definition.NewContext(types.NewInterner(types.X86_64LinuxGNU), definition.MapSource{}, definition.Options{RootClass: object})
	_, err := New(ctx, Options{RootClass: object})
	var le *LayoutError
	if !errors.As(err, &le) || le.Kind != LayoutErrSetup || !errors.Is(err, definition.ErrClassNotFound) {
		t.Fatalf("err = %v, want setup failure", err)
	}
}

func TestFind(t *testing.T) {
	b := bitset.New(16)
	occupy(b, 0, 4)
	if got := find(b, 8, 8); got != 8 {
		t.Fatalf("find(8,8) = %d", got)
	}
	if got := find(b, 1, 1); got != 4 {
		t.Fatalf("find(1,1) = %d", got)
	}
	occupy(b, 4, 4)
	b.Set(10)
	if got := find(b, 2, 2); got != 8 {
		t.Fatalf("find(2,2) = %d", got)
	}
	if got := find(b, 4, 4); got != 12 {
		t.Fatalf("find(4,4) = %d", got)
	}
	if got := find(b, 1, 0); got != 8 {
		t.Fatalf("find(1,0) = %d", got)
	}
}
