package diag

import (
	"slices"
	"sync"
)

// Bag collects diagnostics up to a limit. It is safe for concurrent use.
type Bag struct {
	mu       sync.Mutex
	items    []Diagnostic
	max      int
	dropped  int
	errors   int
	warnings int
}

// NewBag creates a bag holding at most max diagnostics; max <= 0 means no limit.
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Add appends d unless the limit is reached. Errors and warnings are
// counted even when dropped.
func (b *Bag) Add(d Diagnostic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case d.Level >= LevelError:
		b.errors++
	case d.Level == LevelWarning:
		b.warnings++
	}
	if b.max > 0 && len(b.items) >= b.max {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errors > 0
}

// ErrorCount counts every error reported, dropped ones included.
func (b *Bag) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errors
}

func (b *Bag) WarningCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.warnings
}

// Dropped returns how many diagnostics exceeded the limit.
func (b *Bag) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the collected diagnostics.
func (b *Bag) Items() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Sort orders by type, element, level (most severe first) and code.
func (b *Bag) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	slices.SortStableFunc(b.items, compareDiagnostics)
}

func compareDiagnostics(a, b Diagnostic) int {
	switch {
	case a.Location.Type != b.Location.Type:
		return cmpString(a.Location.Type, b.Location.Type)
	case a.Location.Element != b.Location.Element:
		return cmpString(a.Location.Element, b.Location.Element)
	case a.Level != b.Level:
		return int(b.Level) - int(a.Level)
	default:
		return int(a.Code) - int(b.Code)
	}
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Dedup drops repeated (code, location, message) entries keeping the first.
func (b *Bag) Dedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[dedupKey]struct{}, len(b.items))
	kept := b.items[:0]
	for _, d := range b.items {
		k := keyOf(d)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, d)
	}
	b.items = kept
}
