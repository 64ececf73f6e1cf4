// Package config loads the aotc.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"aotc/internal/types"
)

// FileName is the project file searched for by Find.
const FileName = "aotc.toml"

var ErrNotFound = errors.New("no " + FileName + " found")

// Config is a parsed project file. Path and Root are filled by Load.
type Config struct {
	Path string `toml:"-"`
	Root string `toml:"-"`

	Build  Build  `toml:"build"`
	Inputs Inputs `toml:"inputs"`
}

type Build struct {
	Jobs           int    `toml:"jobs"`
	Output         string `toml:"output"`
	MaxErrors      int    `toml:"max-errors"`
	Target         string `toml:"target"`
	RootClass      string `toml:"root-class"`
	ClassClass     string `toml:"class-class"`
	ThreadClass    string `toml:"thread-class"`
	ThrowableClass string `toml:"throwable-class"`
}

type Inputs struct {
	Classes  []string `toml:"classes"`
	Features []string `toml:"features"`
	Entry    []string `toml:"entry"`
}

// Default returns the [build] defaults.
func Default() Build {
	return Build{
		Output:         "out",
		MaxErrors:      20,
		Target:         types.X86_64LinuxGNU.Triple,
		RootClass:      "java/lang/Object",
		ClassClass:     "java/lang/Class",
		ThreadClass:    "java/lang/Thread",
		ThrowableClass: "java/lang/Throwable",
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load parses and validates the project file at path.
func Load(path string) (*Config, error) {
	cfg := &Config{Build: Default()}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("inputs") {
		return nil, fmt.Errorf("%s: missing [inputs]", path)
	}
	if !meta.IsDefined("inputs", "classes") || len(cfg.Inputs.Classes) == 0 {
		return nil, fmt.Errorf("%s: missing [inputs].classes", path)
	}
	if !meta.IsDefined("inputs", "entry") || len(cfg.Inputs.Entry) == 0 {
		return nil, fmt.Errorf("%s: missing [inputs].entry", path)
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that flags may also have set.
func (c *Config) Validate() error {
	b := &c.Build
	if b.Jobs < 0 {
		return fmt.Errorf("[build].jobs must not be negative, got %d", b.Jobs)
	}
	if b.MaxErrors < 0 {
		return fmt.Errorf("[build].max-errors must not be negative, got %d", b.MaxErrors)
	}
	if strings.TrimSpace(b.Output) == "" {
		return errors.New("[build].output is empty")
	}
	if _, err := types.TargetByTriple(b.Target); err != nil {
		return fmt.Errorf("[build].target: %w", err)
	}
	for key, name := range map[string]string{
		"root-class":      b.RootClass,
		"class-class":     b.ClassClass,
		"thread-class":    b.ThreadClass,
		"throwable-class": b.ThrowableClass,
	} {
		if name == "" || strings.ContainsAny(name, ".;[") {
			return fmt.Errorf("[build].%s: %q is not an internal class name", key, name)
		}
	}
	for _, e := range c.Inputs.Entry {
		if _, _, err := SplitEntry(e); err != nil {
			return fmt.Errorf("[inputs].entry: %w", err)
		}
	}
	return nil
}

// TargetSpec returns the configured target.
func (c *Config) TargetSpec() types.Target {
	t, err := types.TargetByTriple(c.Build.Target)
	if err != nil {
		return types.X86_64LinuxGNU
	}
	return t
}

// Resolve makes p absolute relative to the project root.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// ClassFiles returns the class manifests with resolved paths.
func (c *Config) ClassFiles() []string { return c.resolveAll(c.Inputs.Classes) }

// FeatureFiles returns the feature files with resolved paths.
func (c *Config) FeatureFiles() []string { return c.resolveAll(c.Inputs.Features) }

// OutputDir returns the resolved output directory.
func (c *Config) OutputDir() string { return c.Resolve(c.Build.Output) }

func (c *Config) resolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = c.Resolve(p)
	}
	return out
}

// SplitEntry splits "owner.name(desc)ret" into the owner class and the
// member signature. The owner is the text before the last '.' preceding
// the descriptor.
func SplitEntry(entry string) (owner, sig string, err error) {
	paren := strings.IndexByte(entry, '(')
	if paren < 0 {
		return "", "", fmt.Errorf("entry %q has no descriptor", entry)
	}
	dot := strings.LastIndexByte(entry[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", "", fmt.Errorf("entry %q is not owner.name(desc)", entry)
	}
	return entry[:dot], entry[dot+1:], nil
}
