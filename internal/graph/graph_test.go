package graph

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"aotc/internal/definition"
	"aotc/internal/layout"
	"aotc/internal/memory"
	"aotc/internal/types"
)

func newFactory(t *testing.T) (*Factory, *types.Interner) {
	t.Helper()
	in := types.NewInterner(types.X86_64LinuxGNU)
	return NewFactory(in, nil, nil), in
}

func params(t *testing.T, f *Factory, typ types.TypeID) (*Node, *Node) {
	t.Helper()
	x, err := f.Parameter(typ, 0)
	if err != nil {
		t.Fatal(err)
	}
	y, err := f.Parameter(typ, 1)
	if err != nil {
		t.Fatal(err)
	}
	return x, y
}

func must(t *testing.T) func(*Node, error) *Node {
	t.Helper()
	return func(n *Node, err error) *Node {
		t.Helper()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return n
	}
}

func TestHashConsingIsIdempotent(t *testing.T) {
	f, in := newFactory(t)
	s32 := in.Builtins().S32
	a := must(t)(f.IntLiteral(s32, 7))
	b := must(t)(f.IntLiteral(s32, 7))
	if a != b {
		t.Fatal("equal literals are distinct nodes")
	}
	if must(t)(f.IntLiteral(s32, 8)) == a || must(t)(f.IntLiteral(in.Builtins().S64, 7)) == a {
		t.Fatal("different literals merged")
	}
	x, y := params(t, f, s32)
	sum1 := must(t)(f.Binary(KindAdd, x, a))
	sum2 := must(t)(f.Binary(KindAdd, x, b))
	if sum1 != sum2 || sum1.Hash() != sum2.Hash() {
		t.Fatal("add over identical operands not merged")
	}
	if f.BoolLiteral(true) != f.BoolLiteral(true) || f.BoolLiteral(true) == f.BoolLiteral(false) {
		t.Fatal("bool literals not canonical")
	}
	if must(t)(f.Binary(KindSub, x, y)) == must(t)(f.Binary(KindSub, y, x)) {
		t.Fatal("sub is not commutative")
	}
}

func TestCommutativeCanonicalisation(t *testing.T) {
	f, in := newFactory(t)
	x, y := params(t, f, in.Builtins().S32)
	xy := must(t)(f.Binary(KindAnd, x, y))
	yx := must(t)(f.Binary(KindAnd, y, x))
	if xy != yx {
		t.Fatal("AND(x, y) and AND(y, x) are distinct")
	}
	if xy.ValueDependency(0) != x || xy.ValueDependency(1) != y {
		t.Fatal("operands not ordered by creation sequence")
	}
	if must(t)(f.Compare(KindIsEq, x, y)) != must(t)(f.Compare(KindIsEq, y, x)) {
		t.Fatal("is_eq not canonicalised")
	}
	if must(t)(f.Compare(KindIsLt, x, y)) == must(t)(f.Compare(KindIsLt, y, x)) {
		t.Fatal("is_lt merged across operand order")
	}
}

func TestConcurrentConstructionSharesNodes(t *testing.T) {
	f, in := newFactory(t)
	x, y := params(t, f, in.Builtins().S64)
	const n = 32
	got := make([]*Node, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, b := x, y
			if i%2 == 1 {
				a, b = y, x
			}
			node, err := f.Binary(KindXor, a, b)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = node
		}()
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("goroutine %d got a different node", i)
		}
	}
}

func TestForeignOperandsRejected(t *testing.T) {
	f, in := newFactory(t)
	g := NewFactory(in, nil, nil)
	s32 := in.Builtins().S32
	// Both factories hand out the same ids, so without an ownership check the
	// foreign pair would intern as f's own add.
	x, y := params(t, f, s32)
	gx, gy := params(t, g, s32)
	if x.ID() != gx.ID() {
		t.Fatalf("expected matching ids, got %d and %d", x.ID(), gx.ID())
	}
	local := must(t)(f.Binary(KindAdd, x, y))
	if _, err := f.Binary(KindAdd, gx, gy); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("binary over foreign operands: %v", err)
	}
	if _, err := f.Compare(KindIsEq, x, gy); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("compare with one foreign operand: %v", err)
	}
	if _, err := f.Load(g.Start(), x, memory.Unordered, NoPos); !errors.Is(err, ErrForeignNode) {
		t.Fatalf("load after foreign control: %v", err)
	}
	if again := must(t)(f.Binary(KindAdd, x, y)); again != local {
		t.Fatal("rejected construction disturbed the local cache")
	}
	if f.Len() != g.Len()+1 {
		t.Fatalf("f has %d nodes, g has %d", f.Len(), g.Len())
	}
}

func TestTyping(t *testing.T) {
	f, in := newFactory(t)
	b := in.Builtins()
	x, _ := params(t, f, b.S32)
	wide := must(t)(f.Parameter(b.S64, 2))
	if _, err := f.Binary(KindAdd, x, wide); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("s32 + s64: %v", err)
	}
	if _, err := f.Binary(KindIsEq, x, x); !errors.Is(err, ErrBadKind) {
		t.Fatalf("compare kind in Binary: %v", err)
	}
	shl := must(t)(f.Binary(KindShl, wide, x))
	if shl.Type() != b.S64 {
		t.Fatalf("shl type %s", in.FriendlyString(shl.Type()))
	}
	if cmp := must(t)(f.Compare(KindIsGe, x, x)); cmp.Type() != b.Bool {
		t.Fatalf("compare type %s", in.FriendlyString(cmp.Type()))
	}
	flag := f.BoolLiteral(true)
	if and := must(t)(f.Binary(KindAnd, flag, f.BoolLiteral(false))); and.Type() != b.Bool {
		t.Fatal("bool and is not bool")
	}
	if _, err := f.Binary(KindAdd, flag, flag); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("bool add: %v", err)
	}

	arr := must(t)(f.Parameter(in.Intern(types.MakeArray(b.U8, 4)), 3))
	el := must(t)(f.ExtractElement(f.Start(), arr, x))
	if el.Type() != b.U8 {
		t.Fatalf("extract_element type %s", in.FriendlyString(el.Type()))
	}
	if _, err := f.ExtractElement(f.Start(), x, x); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("extract from scalar: %v", err)
	}

	pair := in.NewCompound(types.Compound{Name: "pair", Size: 16, Align: 8, Members: []types.Member{
		{Name: "lo", Type: b.S64, Offset: 0, Align: 8},
		{Name: "hi", Type: b.F64, Offset: 8, Align: 8},
	}})
	p := must(t)(f.Parameter(pair, 4))
	hi := must(t)(f.ExtractMember(p, "hi"))
	if hi.Type() != b.F64 || hi.Extract().Member.Offset != 8 {
		t.Fatalf("extract_member = %s", Format(in, hi))
	}
	if _, err := f.ExtractMember(p, "mid"); err == nil {
		t.Fatal("missing member accepted")
	}

	cls := in.Class("app/Point")
	ref := must(t)(f.Parameter(in.Reference(cls), 5))
	h := must(t)(f.ReferenceHandle(ref))
	if h.Type() != cls {
		t.Fatalf("ref handle type %s, want upper bound", in.FriendlyString(h.Type()))
	}
	if _, err := f.ReferenceHandle(x); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("handle of scalar: %v", err)
	}
}

func TestUnschedulableNodesKeyedByControl(t *testing.T) {
	f, in := newFactory(t)
	b := in.Builtins()
	arr := must(t)(f.Parameter(in.Intern(types.MakeArray(b.S32, 8)), 0))
	idx := must(t)(f.IntLiteral(b.S32, 1))
	c1 := must(t)(f.Call(f.Start(), "exact.a.f.void.0.", in.Function(b.Void, idx.Type()), []*Node{idx}, NoPos))
	e0 := must(t)(f.ExtractElement(f.Start(), arr, idx))
	e0again := must(t)(f.ExtractElement(f.Start(), arr, idx))
	e1 := must(t)(f.ExtractElement(c1, arr, idx))
	if e0 != e0again {
		t.Fatal("identical pinned extraction not deduplicated")
	}
	if e0 == e1 {
		t.Fatal("extraction merged across a different control dependency")
	}
	if e1.ControlDependency() != c1 {
		t.Fatal("control dependency not recorded")
	}
}

type pointClass struct {
	in     *types.Interner
	engine *layout.Engine
	obj    types.TypeID
	x, y   *definition.FieldElement
	method *definition.Executable
}

func newPointClass(t *testing.T) *pointClass {
	t.Helper()
	in := types.NewInterner(types.X86_64LinuxGNU)
	src := definition.MapSource{"app/Point": {
		Name: "app/Point",
		Fields: []definition.RawField{
			{Name: "x", Descriptor: "I"},
			{Name: "y", Descriptor: "J", Modifiers: definition.AccFinal},
		},
		Methods: []definition.RawMethod{{Name: "norm", Descriptor: "()J"}},
	}}
	ctx := definition.NewContext(in, src, definition.Options{})
	engine, err := layout.New(ctx, layout.Options{})
	if err != nil {
		t.Fatal(err)
	}
	d, err := ctx.Bootstrap().FindDefinedType("app/Point")
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.Verify()
	if err != nil {
		t.Fatal(err)
	}
	x, _ := v.Field("x")
	y, _ := v.Field("y")
	return &pointClass{in: in, engine: engine, obj: d.ObjectType(), x: x, y: y, method: v.Methods()[0]}
}

func TestFieldHandlesAndMemory(t *testing.T) {
	pc := newPointClass(t)
	f := NewFactory(pc.in, pc.engine, pc.method)
	b := pc.in.Builtins()
	this := must(t)(f.Parameter(pc.in.Reference(pc.obj), 0))
	obj := must(t)(f.ReferenceHandle(this))
	if obj.IsWritable() || obj.DetectedMode() != memory.Unordered {
		t.Fatalf("reference handle writable=%v mode=%s", obj.IsWritable(), obj.DetectedMode())
	}

	xh := must(t)(f.InstanceFieldOf(obj, pc.x))
	yh := must(t)(f.InstanceFieldOf(obj, pc.y))
	if xh.Type() != b.S32 || xh.Handle().Offset != 0 || yh.Handle().Offset != 8 {
		t.Fatalf("field handles: %s / %s", Format(pc.in, xh), Format(pc.in, yh))
	}
	if !xh.IsWritable() || yh.IsWritable() {
		t.Fatal("final field must be the only read-only field")
	}
	if must(t)(f.InstanceFieldOf(obj, pc.x)) != xh {
		t.Fatal("field handle not deduplicated")
	}
	if _, err := f.InstanceFieldOf(this, pc.x); !errors.Is(err, ErrNotHandle) {
		t.Fatalf("field of a value: %v", err)
	}

	start := f.Start()
	l1 := must(t)(f.Load(start, xh, memory.Unordered, Pos{Line: 3, BCI: 0}))
	if must(t)(f.Load(start, xh, memory.Unordered, NoPos)) != l1 {
		t.Fatal("loads in one memory state not merged")
	}
	one := must(t)(f.IntLiteral(b.S32, 1))
	inc := must(t)(f.Binary(KindAdd, l1, one))
	st := must(t)(f.Store(start, xh, inc, memory.Release, Pos{Line: 3, BCI: 4}))
	if st2 := must(t)(f.Store(start, xh, inc, memory.Release, NoPos)); st2 == st {
		t.Fatal("stores merged")
	}
	if l2 := must(t)(f.Load(st, xh, memory.Unordered, NoPos)); l2 == l1 {
		t.Fatal("load merged across a store")
	}
	if _, err := f.Store(start, yh, l1, memory.Unordered, NoPos); !errors.Is(err, ErrNotWritable) {
		t.Fatalf("store to final: %v", err)
	}
	if _, err := f.Store(start, obj, this, memory.Unordered, NoPos); !errors.Is(err, ErrNotWritable) {
		t.Fatalf("store through reference handle: %v", err)
	}
	if _, err := f.Store(start, xh, this, memory.Unordered, NoPos); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("store of wrong type: %v", err)
	}
	if _, err := f.Load(start, xh, memory.Release, NoPos); !errors.Is(err, memory.ErrInvalidMode) {
		t.Fatalf("release load: %v", err)
	}

	loc := l1.Location()
	if loc.Type != "app/Point" || loc.Element != "norm()J" || loc.Line != 3 {
		t.Fatalf("location = %s", loc)
	}
}

func TestAnnotatedHandleMode(t *testing.T) {
	pc := newPointClass(t)
	f := NewFactory(pc.in, pc.engine, pc.method)
	this := must(t)(f.Parameter(pc.in.Reference(pc.obj), 0))
	obj := must(t)(f.ReferenceHandleMode(this, memory.Acquire))
	if obj == must(t)(f.ReferenceHandle(this)) {
		t.Fatal("annotated handle merged with plain one")
	}
	xh := must(t)(f.InstanceFieldOf(obj, pc.x))
	if xh.DetectedMode() != memory.Acquire {
		t.Fatalf("field mode %s, want acquire", xh.DetectedMode())
	}
	if l := must(t)(f.Load(f.Start(), xh, memory.Unordered, NoPos)); l.Memory().Mode != memory.Acquire {
		t.Fatalf("load mode %s", l.Memory().Mode)
	}
}

func TestCall(t *testing.T) {
	f, in := newFactory(t)
	b := in.Builtins()
	thread := must(t)(f.CurrentThread(in.Reference(in.Class("java/lang/Thread"))))
	x := must(t)(f.Parameter(b.S32, 0))
	fn := in.Function(b.S64, thread.Type(), b.S32)
	c := must(t)(f.Call(f.Start(), "exact.app.A.f.s64.1.s32", fn, []*Node{thread, x}, NoPos))
	if c.Type() != b.S64 || c.Call().Target != "exact.app.A.f.s64.1.s32" || c.ValueDependencyCount() != 2 {
		t.Fatalf("call = %s", Format(in, c))
	}
	if again := must(t)(f.Call(f.Start(), "exact.app.A.f.s64.1.s32", fn, []*Node{thread, x}, NoPos)); again == c {
		t.Fatal("calls merged")
	}
	if _, err := f.Call(f.Start(), "g", fn, []*Node{thread}, NoPos); err == nil {
		t.Fatal("arity mismatch accepted")
	}
	if _, err := f.Call(f.Start(), "g", fn, []*Node{thread, thread}, NoPos); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("argument type: %v", err)
	}
}

func TestWalkAndPrint(t *testing.T) {
	f, in := newFactory(t)
	x, y := params(t, f, in.Builtins().S32)
	sum := must(t)(f.Binary(KindAdd, x, y))
	prod := must(t)(f.Binary(KindMul, sum, x))

	var order []*Node
	Walk([]*Node{prod}, func(n *Node) bool {
		order = append(order, n)
		return true
	})
	if len(order) != 4 || order[len(order)-1] != prod {
		t.Fatalf("walk visited %d nodes, last %v", len(order), order[len(order)-1])
	}
	pos := make(map[*Node]int)
	for i, n := range order {
		pos[n] = i
	}
	if pos[sum] > pos[prod] || pos[x] > pos[sum] {
		t.Fatal("dependencies visited after dependents")
	}

	count := 0
	Walk([]*Node{prod}, func(*Node) bool { count++; return false })
	if count != 1 {
		t.Fatalf("walk did not stop: %d", count)
	}

	var buf bytes.Buffer
	if err := Print(&buf, in, prod); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("print:\n%s", buf.String())
	}
	if !strings.Contains(lines[3], "mul s32") || !strings.Contains(lines[0], "param s32") {
		t.Fatalf("print:\n%s", buf.String())
	}
}

func TestKindMetadata(t *testing.T) {
	if KindAnd.Category() != CatBinary || !KindAnd.IsCommutative() || KindSub.IsCommutative() {
		t.Fatal("binary metadata")
	}
	if !KindLoad.IsUnschedulable() || !KindExtractElement.IsUnschedulable() || KindAdd.IsUnschedulable() {
		t.Fatal("unschedulable metadata")
	}
	if !KindStore.HasSideEffects() || !KindCall.HasSideEffects() || KindLoad.HasSideEffects() {
		t.Fatal("side effect metadata")
	}
	for k := KindIntLiteral; k < kindCount; k++ {
		if k.Category() == CatInvalid || strings.HasPrefix(k.String(), "kind(") {
			t.Fatalf("kind %d has no metadata", k)
		}
	}
}
