// Package manifest reads class definitions from TOML manifests and builds
// value graphs from the call and field-read lists they carry.
//
//	[[class]]
//	name = "app/Main"
//	super = "java/lang/Object"
//	modifiers = ["public"]
//
//	  [[class.field]]
//	  name = "count"
//	  descriptor = "J"
//	  modifiers = ["static"]
//
//	  [[class.method]]
//	  name = "main"
//	  descriptor = "([Ljava/lang/String;)V"
//	  modifiers = ["public", "static"]
//	  calls = ["app/Util.twice(I)I", "virtual:java/lang/Object.hashCode()I"]
//	  reads = ["app/Main.count"]
package manifest

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"aotc/internal/definition"
)

// File is one decoded manifest.
type File struct {
	Classes []Class `toml:"class"`
}

type Class struct {
	Name       string   `toml:"name"`
	Super      string   `toml:"super"`
	Interfaces []string `toml:"interfaces"`
	Modifiers  []string `toml:"modifiers"`
	Fields     []Field  `toml:"field"`
	Methods    []Method `toml:"method"`
}

type Field struct {
	Name       string   `toml:"name"`
	Descriptor string   `toml:"descriptor"`
	Modifiers  []string `toml:"modifiers"`
}

type Method struct {
	Name       string   `toml:"name"`
	Descriptor string   `toml:"descriptor"`
	Modifiers  []string `toml:"modifiers"`
	Line       int      `toml:"line"`
	Calls      []string `toml:"calls"`
	Reads      []string `toml:"reads"`
}

// Code is the body attached to an executable: what it calls and which
// fields it reads, in order.
type Code struct {
	Line  int
	Calls []string
	Reads []string
}

// VirtualPrefix marks a call dispatched on the receiver's class.
const VirtualPrefix = "virtual:"

// Source serves the classes of one or more manifests. It implements
// definition.Source.
type Source struct {
	defs map[string]*definition.RawDefinition
}

// Find implements definition.Source.
func (s *Source) Find(name string) (*definition.RawDefinition, bool, error) {
	d, ok := s.defs[name]
	return d, ok, nil
}

// Names returns every class name sorted.
func (s *Source) Names() []string {
	out := make([]string, 0, len(s.defs))
	for name := range s.defs {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Parse decodes manifest text. path only labels errors.
func Parse(path string, data []byte) (*File, error) {
	var f File
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	return &f, nil
}

// Load reads the manifests at paths into one Source. A class defined in
// two manifests is an error.
func Load(paths ...string) (*Source, error) {
	s := &Source{defs: make(map[string]*definition.RawDefinition)}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		f, err := Parse(path, data)
		if err != nil {
			return nil, err
		}
		if err := s.add(path, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromFiles builds a Source from decoded manifests.
func FromFiles(files ...*File) (*Source, error) {
	s := &Source{defs: make(map[string]*definition.RawDefinition)}
	for i, f := range files {
		if err := s.add(fmt.Sprintf("manifest %d", i), f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) add(path string, f *File) error {
	for i, c := range f.Classes {
		raw, err := c.raw()
		if err != nil {
			return fmt.Errorf("%s: class %d: %w", path, i, err)
		}
		if _, dup := s.defs[raw.Name]; dup {
			return fmt.Errorf("%s: class %s defined twice", path, raw.Name)
		}
		s.defs[raw.Name] = raw
	}
	return nil
}

func (c *Class) raw() (*definition.RawDefinition, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, errors.New("missing name")
	}
	mods, err := definition.ParseModifiers(c.Modifiers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	raw := &definition.RawDefinition{
		Name:       c.Name,
		Super:      c.Super,
		Interfaces: slices.Clone(c.Interfaces),
		Modifiers:  mods,
	}
	for _, f := range c.Fields {
		mods, err := definition.ParseModifiers(f.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
		raw.Fields = append(raw.Fields, definition.RawField{Name: f.Name, Descriptor: f.Descriptor, Modifiers: mods})
	}
	for _, m := range c.Methods {
		mods, err := definition.ParseModifiers(m.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
		}
		for _, ref := range m.Calls {
			if _, _, _, err := ParseCall(ref); err != nil {
				return nil, fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
			}
		}
		for _, ref := range m.Reads {
			if _, _, err := ParseRead(ref); err != nil {
				return nil, fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
			}
		}
		raw.Methods = append(raw.Methods, definition.RawMethod{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Modifiers:  mods,
			Code:       &Code{Line: m.Line, Calls: slices.Clone(m.Calls), Reads: slices.Clone(m.Reads)},
		})
	}
	return raw, nil
}

// ParseCall splits "[virtual:]owner.name(desc)ret".
func ParseCall(ref string) (owner, name, desc string, err error) {
	ref = strings.TrimPrefix(ref, VirtualPrefix)
	paren := strings.IndexByte(ref, '(')
	if paren < 0 {
		return "", "", "", fmt.Errorf("call %q has no descriptor", ref)
	}
	dot := strings.LastIndexByte(ref[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", "", "", fmt.Errorf("call %q is not owner.name(desc)", ref)
	}
	return ref[:dot], ref[dot+1 : paren], ref[paren:], nil
}

// ParseRead splits "owner.field".
func ParseRead(ref string) (owner, field string, err error) {
	dot := strings.LastIndexByte(ref, '.')
	if dot <= 0 || dot == len(ref)-1 {
		return "", "", fmt.Errorf("read %q is not owner.field", ref)
	}
	return ref[:dot], ref[dot+1:], nil
}
