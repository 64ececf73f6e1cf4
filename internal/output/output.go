// Package output writes one msgpack artifact per program module and reads
// it back for inspection.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"aotc/internal/layout"
	"aotc/internal/object"
	"aotc/internal/types"
)

// SchemaVersion is bumped whenever Artifact changes shape.
const SchemaVersion uint16 = 1

// Suffix is the file suffix of artifacts.
const Suffix = "mp"

var ErrSchema = errors.New("artifact schema mismatch")

// Artifact is the serialized form of a program module.
type Artifact struct {
	Schema   uint16    `msgpack:"schema"`
	Type     string    `msgpack:"type"`
	Target   string    `msgpack:"target"`
	Layout   *Layout   `msgpack:"layout,omitempty"`
	Sections []Section `msgpack:"sections"`
}

// Layout is the instance layout of the module's class.
type Layout struct {
	Size    uint64   `msgpack:"size"`
	Align   uint64   `msgpack:"align"`
	Members []Member `msgpack:"members"`
}

type Member struct {
	Name   string `msgpack:"name"`
	Type   string `msgpack:"type"`
	Offset uint64 `msgpack:"offset"`
	Size   uint64 `msgpack:"size"`
}

type Section struct {
	Name         string        `msgpack:"name"`
	Functions    []Function    `msgpack:"functions"`
	Declarations []Declaration `msgpack:"declarations,omitempty"`
}

type Function struct {
	Name  string `msgpack:"name"`
	Type  string `msgpack:"type"`
	Nodes int    `msgpack:"nodes"`
	Body  string `msgpack:"body,omitempty"`
}

type Declaration struct {
	Name string `msgpack:"name"`
	Type string `msgpack:"type"`
}

// FromModule converts m. info may be nil for interfaces.
func FromModule(in *types.Interner, m *object.ProgramModule, info *layout.Info) (*Artifact, error) {
	a := &Artifact{Schema: SchemaVersion, Type: m.TypeName(), Target: in.Target().Triple}
	if info != nil {
		l, err := LayoutFrom(in, info)
		if err != nil {
			return nil, err
		}
		a.Layout = l
	}
	for _, s := range m.Sections() {
		sec := Section{Name: s.Name()}
		for _, fn := range s.Functions() {
			out := Function{Name: fn.Name, Type: in.FriendlyString(fn.Type)}
			if body := fn.Body(); body != nil {
				out.Nodes, out.Body = body.Nodes, body.Text
			}
			sec.Functions = append(sec.Functions, out)
		}
		for _, d := range s.Declarations() {
			sec.Declarations = append(sec.Declarations, Declaration{Name: d.Name, Type: in.FriendlyString(d.Type)})
		}
		a.Sections = append(a.Sections, sec)
	}
	return a, nil
}

// LayoutFrom converts a computed layout, members sorted by offset.
func LayoutFrom(in *types.Interner, info *layout.Info) (*Layout, error) {
	l := &Layout{Size: info.Size(), Align: info.Align()}
	for _, mem := range info.AllMembers() {
		size, err := in.Size(mem.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", info.TypeName(), mem.Name, err)
		}
		l.Members = append(l.Members, Member{
			Name:   mem.Name,
			Type:   in.FriendlyString(mem.Type),
			Offset: mem.Offset,
			Size:   size,
		})
	}
	return l, nil
}

// Write stores a at path through a temporary file in the same directory,
// so readers never see a partial artifact.
func Write(path string, a *Artifact) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if err := msgpack.NewEncoder(f).Encode(a); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Read loads the artifact at path.
func Read(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var a Artifact
	if err := msgpack.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if a.Schema != SchemaVersion {
		return nil, fmt.Errorf("%s: %w: have %d, want %d", path, ErrSchema, a.Schema, SchemaVersion)
	}
	return &a, nil
}

// FunctionCount returns the number of functions over all sections.
func (a *Artifact) FunctionCount() int {
	n := 0
	for _, s := range a.Sections {
		n += len(s.Functions)
	}
	return n
}
