package compile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"aotc/internal/definition"
	"aotc/internal/diag"
	"aotc/internal/graph"
	"aotc/internal/layout"
	"aotc/internal/types"
)

const root = "java/lang/Object"

func method(name, desc string, mods definition.Modifiers, calls ...string) definition.RawMethod {
	return definition.RawMethod{Name: name, Descriptor: desc, Modifiers: mods, Code: calls}
}

func classes() definition.MapSource {
	return definition.MapSource{
		root: {Name: root, Modifiers: definition.AccPublic, Methods: []definition.RawMethod{
			method("<init>", "()V", definition.AccPublic),
			method("hashCode", "()I", definition.AccPublic),
		}},
		"java/lang/Class":     {Name: "java/lang/Class", Super: root},
		"java/lang/String":    {Name: "java/lang/String", Super: root},
		"java/lang/Thread":    {Name: "java/lang/Thread", Super: root},
		"java/lang/Throwable": {Name: "java/lang/Throwable", Super: root},
		"app/Main": {Name: "app/Main", Super: root, Methods: []definition.RawMethod{
			method("<clinit>", "()V", definition.AccStatic),
			method("main", "([Ljava/lang/String;)V", definition.AccPublic|definition.AccStatic,
				"app/Util.twice(I)I", "app/Util.twice(I)I", "app/Main.helper()V"),
			method("helper", "()V", definition.AccPrivate|definition.AccStatic, "app/Util.<init>()V"),
		}},
		"app/Util": {Name: "app/Util", Super: root, Fields: []definition.RawField{{Name: "n", Descriptor: "J"}}, Methods: []definition.RawMethod{
			method("<init>", "()V", definition.AccPublic, "java/lang/Object.<init>()V"),
			method("twice", "(I)I", definition.AccPublic|definition.AccStatic),
			method("size", "()J", definition.AccAbstract|definition.AccPublic),
		}},
		"app/Broken": {Name: "app/Broken", Super: "app/Missing", Methods: []definition.RawMethod{
			method("run", "()V", definition.AccStatic),
		}},
		"app/Caller": {Name: "app/Caller", Super: root, Methods: []definition.RawMethod{
			method("go", "()V", definition.AccStatic, "app/Broken.run()V"),
		}},
	}
}

type fixture struct {
	defs *definition.Context
	c    *Context
	bag  *diag.Bag
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bag := diag.NewBag(0)
	defs := definition.NewContext(types.NewInterner(types.X86_64LinuxGNU), classes(), definition.Options{
		RootClass: root,
		Reporter:  diag.BagReporter{Bag: bag},
	})
	if _, err := layout.New(defs, layout.Options{RootClass: root, ClassClass: "java/lang/Class"}); err != nil {
		t.Fatalf("layout: %v", err)
	}
	return &fixture{defs: defs, c: NewContext(defs, Options{OutputDir: "build"}), bag: bag}
}

func (f *fixture) verified(t *testing.T, name string) *definition.Verified {
	t.Helper()
	d, err := f.defs.Bootstrap().FindDefinedType(name)
	if err != nil {
		t.Fatalf("find %s: %v", name, err)
	}
	v, err := d.Verify()
	if err != nil {
		t.Fatalf("verify %s: %v", name, err)
	}
	return v
}

func (f *fixture) element(t *testing.T, ref string) *definition.Executable {
	t.Helper()
	owner, sig, ok := strings.Cut(ref, ".")
	if !ok {
		t.Fatalf("bad reference %q", ref)
	}
	e, err := lookup(f.defs, owner, sig)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func lookup(defs *definition.Context, owner, sig string) (*definition.Executable, error) {
	d, err := defs.Bootstrap().FindDefinedType(owner)
	if err != nil {
		return nil, err
	}
	v, err := d.Verify()
	if err != nil {
		return nil, err
	}
	i := strings.IndexByte(sig, '(')
	name, desc := sig[:i], sig[i:]
	switch name {
	case definition.ConstructorName:
		if e := v.FindConstructor(desc); e != nil {
			return e, nil
		}
	case definition.InitializerName:
		if e := v.Initializer(); e != nil {
			return e, nil
		}
	default:
		if e := v.FindMethod(name, desc); e != nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s.%s not found", owner, sig)
}

func TestEnqueueIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	e := f.element(t, "app/Util.twice(I)I")
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.c.Enqueue(e) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || f.c.Pending() != 1 || !f.c.WasEnqueued(e) {
		t.Fatalf("wins=%d pending=%d", wins.Load(), f.c.Pending())
	}
	got, ok := f.c.Dequeue()
	if !ok || got != e {
		t.Fatalf("dequeue = %v, %v", got, ok)
	}
	if got, ok := f.c.Dequeue(); ok || got != nil {
		t.Fatalf("empty dequeue = %v, %v", got, ok)
	}
	if f.c.Enqueue(e) {
		t.Fatal("element queued twice in one pass")
	}
	f.c.ClearEnqueued()
	if f.c.WasEnqueued(e) || !f.c.Enqueue(e) {
		t.Fatal("cleared element not queueable again")
	}
}

func TestDequeueIsFIFO(t *testing.T) {
	f := newFixture(t)
	a := f.element(t, "app/Util.twice(I)I")
	b := f.element(t, "app/Util.<init>()V")
	f.c.Enqueue(a)
	f.c.Enqueue(b)
	if x, _ := f.c.Dequeue(); x != a {
		t.Fatalf("first = %v", x)
	}
	if x, _ := f.c.Dequeue(); x != b {
		t.Fatalf("second = %v", x)
	}
}

func TestEntryPointsAreSortedAndDeduplicated(t *testing.T) {
	f := newFixture(t)
	main := f.element(t, "app/Main.main([Ljava/lang/String;)V")
	ctor := f.element(t, "app/Util.<init>()V")
	f.c.RegisterEntryPoint(ctor)
	f.c.RegisterEntryPoint(main)
	f.c.RegisterEntryPoint(main)
	got := f.c.EntryPoints()
	if len(got) != 2 || got[0] != main || got[1] != ctor {
		t.Fatalf("entry points = %v", got)
	}
}

func TestMangledNames(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		ref  string
		want string
	}{
		{"app/Main.<clinit>()V", "clinit.app.Main"},
		{"app/Util.<init>()V", "init.app.Util.1.ref<class<app/Util>>"},
		{"app/Util.twice(I)I", "exact.app.Util.twice.s32.1.s32"},
		{"app/Main.main([Ljava/lang/String;)V", "exact.app.Main.main.void.1.ref<ref_array<ref<class<java/lang/String>>>>"},
		{"java/lang/Object.hashCode()I", "exact.java.lang.Object.hashCode.s32.1.ref<class<java/lang/Object>>"},
	}
	seen := make(map[string]string)
	for _, tc := range cases {
		fn, err := f.c.ExactFunction(f.element(t, tc.ref))
		if err != nil {
			t.Fatalf("%s: %v", tc.ref, err)
		}
		if fn.Name != tc.want {
			t.Fatalf("%s: name = %q, want %q", tc.ref, fn.Name, tc.want)
		}
		if prev, dup := seen[fn.Name]; dup {
			t.Fatalf("%s and %s share %s", prev, tc.ref, fn.Name)
		}
		seen[fn.Name] = tc.ref
	}
}

func TestDottedMemberCannotShadowNestedClass(t *testing.T) {
	src := classes()
	src["p/A"] = &definition.RawDefinition{Name: "p/A", Super: root, Methods: []definition.RawMethod{
		method("x.y", "()V", definition.AccStatic),
	}}
	src["p/A/x"] = &definition.RawDefinition{Name: "p/A/x", Super: root, Methods: []definition.RawMethod{
		method("y", "()V", definition.AccStatic),
	}}
	defs := definition.NewContext(types.NewInterner(types.X86_64LinuxGNU), src, definition.Options{RootClass: root})
	c := NewContext(defs, Options{})

	e, err := lookup(defs, "p/A/x", "y()V")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := c.ExactFunction(e)
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name != "exact.p.A.x.y.void.0" {
		t.Fatalf("name = %q", fn.Name)
	}
	d, err := defs.Bootstrap().FindDefinedType("p/A")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Verify(); !errors.Is(err, definition.ErrVerifyFailed) {
		t.Fatalf("p/A with member x.y verified: %v", err)
	}
}

func TestFunctionTypeCarriesThreadAndReceiver(t *testing.T) {
	f := newFixture(t)
	in := f.c.Types()
	thread, err := f.c.ThreadType()
	if err != nil {
		t.Fatal(err)
	}
	static, err := f.c.FunctionType(f.element(t, "app/Util.twice(I)I"))
	if err != nil {
		t.Fatal(err)
	}
	if p := in.Params(static); len(p) != 2 || p[0] != thread || p[1] != in.Builtins().S32 {
		t.Fatalf("static params = %v", p)
	}
	init, err := f.c.FunctionType(f.element(t, "app/Main.<clinit>()V"))
	if err != nil {
		t.Fatal(err)
	}
	if p := in.Params(init); len(p) != 1 || p[0] != thread || in.Return(init) != in.Builtins().Void {
		t.Fatalf("initializer type = %s", in.FriendlyString(init))
	}
	inst, err := f.c.FunctionType(f.element(t, "app/Util.size()J"))
	if err != nil {
		t.Fatal(err)
	}
	util := f.verified(t, "app/Util")
	if p := in.Params(inst); len(p) != 2 || p[1] != in.Reference(util.ObjectType()) {
		t.Fatalf("instance params = %v", p)
	}
}

func TestExactFunctionIsMemoized(t *testing.T) {
	f := newFixture(t)
	e := f.element(t, "app/Util.twice(I)I")
	var wg sync.WaitGroup
	fns := make([]any, 16)
	for i := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn, err := f.c.ExactFunction(e)
			if err != nil {
				t.Error(err)
				return
			}
			fns[i] = fn
		}()
	}
	wg.Wait()
	for _, fn := range fns[1:] {
		if fn != fns[0] {
			t.Fatal("exact function created more than once")
		}
	}
	m := f.c.ProgramModule(e.Enclosing)
	if len(m.Functions()) != 1 {
		t.Fatalf("module has %d functions", len(m.Functions()))
	}
}

func TestVirtualFunctionPerReceiver(t *testing.T) {
	f := newFixture(t)
	hash := f.element(t, "java/lang/Object.hashCode()I")
	util := f.verified(t, "app/Util").Defined()
	if _, err := f.verified(t, "app/Util").Resolve(); err != nil {
		t.Fatal(err)
	}
	base, err := f.c.VirtualFunction(hash, nil)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := f.c.VirtualFunction(hash, util)
	if err != nil {
		t.Fatal(err)
	}
	if base == sub {
		t.Fatal("receivers share one dispatch function")
	}
	if sub.Name != "virtual.app.Util.hashCode.s32.1.ref<class<java/lang/Object>>" {
		t.Fatalf("virtual name = %q", sub.Name)
	}
	again, _ := f.c.VirtualFunction(hash, util)
	if again != sub {
		t.Fatal("virtual function not memoized")
	}
	exact, err := f.c.ExactFunction(hash)
	if err != nil {
		t.Fatal(err)
	}
	if exact == base || exact.Name == base.Name {
		t.Fatal("exact and virtual functions collide")
	}
	if _, ok := f.c.ProgramModule(util).ImplicitSection().Function(sub.Name); !ok {
		t.Fatal("virtual function not in receiver module")
	}
	if _, err := f.c.VirtualFunction(f.element(t, "app/Util.twice(I)I"), nil); !errors.Is(err, ErrNotVirtual) {
		t.Fatalf("static method: err = %v", err)
	}
	if _, err := f.c.VirtualFunction(f.element(t, "app/Util.<init>()V"), nil); !errors.Is(err, ErrNotVirtual) {
		t.Fatalf("constructor: err = %v", err)
	}
}

func TestDeclareForeignFunction(t *testing.T) {
	f := newFixture(t)
	main := f.element(t, "app/Main.main([Ljava/lang/String;)V")
	helper := f.element(t, "app/Main.helper()V")
	twice := f.element(t, "app/Util.twice(I)I")
	fn, err := f.c.ExactFunction(helper)
	if err != nil {
		t.Fatal(err)
	}
	if d := f.c.DeclareForeignFunction(helper, fn, main); d != nil {
		t.Fatalf("same-class call declared: %v", d)
	}
	fn, err = f.c.ExactFunction(twice)
	if err != nil {
		t.Fatal(err)
	}
	d := f.c.DeclareForeignFunction(twice, fn, main)
	if d == nil || d.Name != fn.Name || d.Type != fn.Type {
		t.Fatalf("declaration = %v", d)
	}
	if again := f.c.DeclareForeignFunction(twice, fn, main); again != d {
		t.Fatal("declaration not deduplicated")
	}
	if decls := f.c.ProgramModule(main.Enclosing).Declarations(); len(decls) != 1 {
		t.Fatalf("declarations = %v", decls)
	}
}

func TestExceptionFieldInjectedOnce(t *testing.T) {
	f := newFixture(t)
	a, err := f.c.ExceptionField()
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.c.ExceptionField()
	if err != nil || a != b {
		t.Fatalf("second call = %v, %v", b, err)
	}
	if a.Name != "thrown" || !a.IsHidden() || a.IsStatic() {
		t.Fatalf("field = %v", a)
	}
	thread := f.verified(t, "java/lang/Thread")
	if got, ok := thread.Field("thrown"); !ok || got != a {
		t.Fatal("field not visible on thread class")
	}
}

func TestExceptionFieldAfterLayoutFails(t *testing.T) {
	f := newFixture(t)
	r, err := f.verified(t, "java/lang/Thread").Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Prepare(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.ExceptionField(); !errors.Is(err, definition.ErrFieldsSealed) {
		t.Fatalf("err = %v, want sealed", err)
	}
}

func TestOutputPaths(t *testing.T) {
	f := newFixture(t)
	util := f.verified(t, "app/Util")
	j := filepath.Join
	cases := []struct{ got, want string }{
		{f.c.OutputDirectory(util.Defined()), j("build", "app", "Util")},
		{f.c.OutputFile(util.Defined(), "o"), j("build", "app", "Util") + ".o"},
		{f.c.ElementOutputDirectory(f.element(t, "app/Util.<init>()V")), j("build", "app", "Util", "ctors", "ctor.id0")},
		{f.c.ElementOutputDirectory(f.element(t, "app/Util.twice(I)I")), j("build", "app", "Util", "methods", "twice.id0")},
		{f.c.ElementOutputDirectory(f.element(t, "app/Main.<clinit>()V")), j("build", "app", "Main", "class-init")},
	}
	n, _ := util.Field("n")
	cases = append(cases, struct{ got, want string }{f.c.FieldOutputDirectory(n), j("build", "app", "Util", "fields", "n")})
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("path = %q, want %q", tc.got, tc.want)
		}
	}
}

// callBuilder treats the element code as a list of "owner.sig" callees.
type callBuilder struct {
	mu    sync.Mutex
	built []string
}

func (b *callBuilder) BuildGraph(_ context.Context, c *Context, u *Unit) ([]*graph.Node, error) {
	b.mu.Lock()
	b.built = append(b.built, u.Element.String())
	b.mu.Unlock()

	thread, err := c.ThreadType()
	if err != nil {
		return nil, err
	}
	self, err := u.Factory.CurrentThread(thread)
	if err != nil {
		return nil, err
	}
	roots := []*graph.Node{u.Factory.Start()}
	calls, _ := u.Element.Code.([]string)
	for _, ref := range calls {
		owner, sig, _ := strings.Cut(ref, ".")
		target, err := lookup(c.Definitions(), owner, sig)
		if err != nil {
			return nil, err
		}
		c.Enqueue(target)
		fn, err := c.ExactFunction(target)
		if err != nil {
			return nil, err
		}
		c.DeclareForeignFunction(target, fn, u.Element)
		if !target.IsStatic() {
			continue
		}
		args := []*graph.Node{self}
		for i, p := range target.Params {
			arg, err := u.Factory.Parameter(p, i)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		call, err := u.Factory.Call(roots[len(roots)-1], fn.Name, fn.Type, args, graph.NoPos)
		if err != nil {
			return nil, err
		}
		roots = append(roots, call)
	}
	return roots, nil
}

func TestDriverCompilesReachableElements(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterEntryPoint(f.element(t, "app/Main.main([Ljava/lang/String;)V"))
	b := &callBuilder{}
	var events atomic.Int32
	d := NewDriver(f.c, DriverOptions{
		Jobs:        4,
		Builder:     b,
		RuntimeInit: func(name string) bool { return name == "app/Main" },
		Progress:    ProgressFunc(func(Event) { events.Add(1) }),
	})
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// main, helper, twice, Util.<init>, Object.<init>, Main.<clinit>
	if res.Compiled != 6 || len(res.Failed) != 0 {
		t.Fatalf("compiled=%d failed=%v built=%v", res.Compiled, res.Failed, b.built)
	}
	if len(b.built) != 6 {
		t.Fatalf("built %d graphs", len(b.built))
	}
	main, err := f.c.ExactFunction(f.element(t, "app/Main.main([Ljava/lang/String;)V"))
	if err != nil {
		t.Fatal(err)
	}
	body := main.Body()
	if body == nil || body.Nodes == 0 || !strings.Contains(body.Text, "exact.app.Util.twice.s32.1.s32") {
		t.Fatalf("main body = %+v", body)
	}
	if events.Load() == 0 {
		t.Fatal("no progress events")
	}
	if len(res.Modules) != 3 {
		t.Fatalf("modules = %d", len(res.Modules))
	}
}

func TestDriverCountsFailedClasses(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterEntryPoint(f.element(t, "app/Caller.go()V"))
	broken, err := f.defs.Bootstrap().FindDefinedType("app/Broken")
	if err != nil {
		t.Fatal(err)
	}
	v, err := broken.Verify()
	if err != nil {
		t.Fatal(err)
	}
	f.c.RegisterEntryPoint(v.FindMethod("run", "()V"))

	res, err := NewDriver(f.c, DriverOptions{Jobs: 2, Builder: &callBuilder{}}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "app/Broken" {
		t.Fatalf("failed = %v", res.Failed)
	}
	if res.Compiled != 1 {
		t.Fatalf("compiled = %d", res.Compiled)
	}
	if !f.bag.HasErrors() {
		t.Fatal("resolution failure not reported")
	}

	g := newFixture(t)
	g.c.RegisterEntryPoint(g.element(t, "app/Caller.go()V"))
	_, err = NewDriver(g.c, DriverOptions{Jobs: 1, MaxErrors: -1, Builder: &callBuilder{}}).Run(context.Background())
	if err != nil {
		t.Fatalf("negative limit: %v", err)
	}
}

func TestDriverStopsAfterMaxErrors(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterEntryPoint(f.element(t, "app/Caller.go()V"))
	failing := builderFunc(func(context.Context, *Context, *Unit) ([]*graph.Node, error) {
		return nil, errors.New("unsupported bytecode")
	})
	f.c.RegisterEntryPoint(f.element(t, "app/Util.twice(I)I"))
	_, err := NewDriver(f.c, DriverOptions{Jobs: 1, MaxErrors: 1, Builder: failing}).Run(context.Background())
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("err = %v, want too many errors", err)
	}
}

func TestDriverInvariantIsFatal(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterEntryPoint(f.element(t, "app/Util.twice(I)I"))
	bad := builderFunc(func(context.Context, *Context, *Unit) ([]*graph.Node, error) {
		return nil, fmt.Errorf("corrupt state: %w", definition.ErrInvariant)
	})
	res, err := NewDriver(f.c, DriverOptions{Builder: bad}).Run(context.Background())
	if !errors.Is(err, definition.ErrInvariant) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("invariant counted as class failure: %v", res.Failed)
	}
}

func TestDriverHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterEntryPoint(f.element(t, "app/Util.twice(I)I"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDriver(f.c, DriverOptions{Jobs: 2}).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type builderFunc func(context.Context, *Context, *Unit) ([]*graph.Node, error)

func (f builderFunc) BuildGraph(ctx context.Context, c *Context, u *Unit) ([]*graph.Node, error) {
	return f(ctx, c, u)
}
