package compile

import (
	"path/filepath"
	"strconv"
	"strings"

	"aotc/internal/definition"
)

// OutputDirectory is the directory of class d: one path element per
// segment of its internal name.
func (c *Context) OutputDirectory(d *definition.Defined) string {
	parts := append([]string{c.opts.OutputDir}, strings.Split(d.Name(), "/")...)
	return filepath.Join(parts...)
}

// OutputFile is a file next to d's directory, named after the class with
// the given suffix.
func (c *Context) OutputFile(d *definition.Defined, suffix string) string {
	return c.OutputDirectory(d) + "." + suffix
}

// ElementOutputDirectory is the directory of an executable element inside
// its class directory.
func (c *Context) ElementOutputDirectory(e *definition.Executable) string {
	base := c.OutputDirectory(e.Enclosing)
	switch e.Kind {
	case definition.KindInitializer:
		return filepath.Join(base, "class-init")
	case definition.KindConstructor:
		return filepath.Join(base, "ctors", "ctor.id"+strconv.Itoa(e.Index))
	}
	return filepath.Join(base, "methods", e.Name+".id"+strconv.Itoa(e.Index))
}

// FieldOutputDirectory is the directory of a field inside its class
// directory.
func (c *Context) FieldOutputDirectory(f *definition.FieldElement) string {
	return filepath.Join(c.OutputDirectory(f.Enclosing), "fields", f.Name)
}
