package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"aotc/internal/definition"
	"aotc/internal/layout"
	"aotc/internal/object"
	"aotc/internal/types"
)

func pointModule(t *testing.T) (*types.Interner, *object.ProgramModule, *layout.Info) {
	t.Helper()
	in := types.NewInterner(types.X86_64LinuxGNU)
	src := definition.MapSource{
		"java/lang/Object": {Name: "java/lang/Object"},
		"java/lang/Class":  {Name: "java/lang/Class", Super: "java/lang/Object"},
		"app/Point": {Name: "app/Point", Super: "java/lang/Object", Fields: []definition.RawField{
			{Name: "x", Descriptor: "I"},
			{Name: "y", Descriptor: "J"},
		}},
	}
	defs := definition.NewContext(in, src, definition.Options{RootClass: "java/lang/Object"})
	eng, err := layout.New(defs, layout.Options{RootClass: "java/lang/Object", ClassClass: "java/lang/Class"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := defs.Bootstrap().FindDefinedType("app/Point")
	if err != nil {
		t.Fatal(err)
	}
	info, err := eng.LayoutOf(d)
	if err != nil {
		t.Fatal(err)
	}
	m := object.NewProgramModule(d.Name(), d.ObjectType())
	fnType := in.Function(in.Builtins().S32, in.Reference(d.ObjectType()))
	fn := m.ImplicitSection().AddFunction(nil, "exact.app.Point.getX.s32.0", fnType)
	fn.SetBody(object.Body{Nodes: 3, Text: "%0 = start void\n"})
	m.ImplicitSection().DeclareFunction("exact.app.Other.f.void.0", in.Function(in.Builtins().Void))
	return in, m, info
}

func TestWriteReadArtifact(t *testing.T) {
	in, m, info := pointModule(t)
	a, err := FromModule(in, m, info)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "app", "Point."+Suffix)
	if err := Write(path, a); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "app/Point" || got.Target != "x86_64-linux-gnu" || got.FunctionCount() != 1 {
		t.Fatalf("artifact = %+v", got)
	}
	if got.Layout == nil || got.Layout.Size != info.Size() {
		t.Fatalf("layout = %+v", got.Layout)
	}
	// klass header, then x and y
	if len(got.Layout.Members) != 3 || got.Layout.Members[0].Name != "klass" {
		t.Fatalf("members = %+v", got.Layout.Members)
	}
	sec := got.Sections[0]
	if sec.Name != object.ImplicitSectionName || sec.Functions[0].Nodes != 3 || sec.Functions[0].Type != "fn<s32(ref<class<app/Point>>)>" {
		t.Fatalf("section = %+v", sec)
	}
	if len(sec.Declarations) != 1 || sec.Declarations[0].Type != "fn<void()>" {
		t.Fatalf("declarations = %+v", sec.Declarations)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil || len(entries) != 1 {
		t.Fatalf("temp files left behind: %v %v", entries, err)
	}
}

func TestReadRejectsOtherSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mp")
	data, err := msgpack.Marshal(&Artifact{Schema: SchemaVersion + 1, Type: "a/B"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v", err)
	}
	if err := os.WriteFile(path, []byte{0xc1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("garbage decoded")
	}
}

func TestFromModuleWithoutLayout(t *testing.T) {
	in, m, _ := pointModule(t)
	a, err := FromModule(in, m, nil)
	if err != nil || a.Layout != nil {
		t.Fatalf("artifact = %+v, %v", a, err)
	}
}
