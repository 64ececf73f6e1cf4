// Package features reads build feature files. A feature file is YAML:
//
//	initializeAtRuntime:
//	  - com.example.Clock
//	  - com.example.Random
//
// Classes listed there keep their static initializer for run time, so the
// compiler must compile it.
package features

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"aotc/internal/diag"
)

// Feature is the content of one feature file. Unknown keys are ignored.
type Feature struct {
	InitializeAtRuntime []string `yaml:"initializeAtRuntime"`
}

// Set is the merged result of all feature files.
type Set struct {
	mu      sync.RWMutex
	runtime map[string]struct{}
}

func NewSet() *Set {
	return &Set{runtime: make(map[string]struct{})}
}

// Parse decodes one feature document.
func Parse(data []byte) (Feature, error) {
	var f Feature
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Feature{}, err
	}
	return f, nil
}

// Add merges f. Dotted class names are stored in internal form.
func (s *Set) Add(f Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range f.InitializeAtRuntime {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s.runtime[strings.ReplaceAll(name, ".", "/")] = struct{}{}
	}
}

// InitializeAtRuntime reports whether the class with internal name
// className is initialized at run time.
func (s *Set) InitializeAtRuntime(className string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runtime[className]
	return ok
}

// RuntimeInitialized returns the run-time initialized classes sorted.
func (s *Set) RuntimeInitialized() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.runtime))
	for name := range s.runtime {
		out = append(out, name)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Load reads every file in paths into one Set. A file that cannot be read
// or parsed is reported and skipped; the returned count is the number of
// such files.
func Load(r diag.Reporter, paths ...string) (*Set, int) {
	s := NewSet()
	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			diag.ReportError(r, diag.FeatureLoadFailed, diag.Location{}, fmt.Sprintf("failed to open build feature %s", path)).
				WithNote(diag.Location{}, err.Error()).
				Emit()
			failed++
			continue
		}
		f, err := Parse(data)
		if err != nil {
			diag.ReportError(r, diag.FeatureLoadFailed, diag.Location{}, fmt.Sprintf("failed to parse build feature %s", path)).
				WithNote(diag.Location{}, err.Error()).
				Emit()
			failed++
			continue
		}
		diag.NewReportBuilder(r, diag.LevelInfo, diag.FeatureProcessed, diag.Location{},
			fmt.Sprintf("processing build feature %s", path)).Emit()
		s.Add(f)
	}
	return s, failed
}
