package diag

import "sync"

type dedupKey struct {
	code    Code
	level   Level
	typ     string
	element string
	line    int
	bci     int
	msg     string
}

func keyOf(d Diagnostic) dedupKey {
	return dedupKey{
		code:    d.Code,
		level:   d.Level,
		typ:     d.Location.Type,
		element: d.Location.Element,
		line:    d.Location.Line,
		bci:     d.Location.BCI,
		msg:     d.Message,
	}
}

// DedupReporter forwards each distinct (code, level, location, message) once.
// A type that fails resolution is reached from every subtype; this keeps
// the failure reported a single time.
type DedupReporter struct {
	next Reporter
	mu   sync.Mutex
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[dedupKey]struct{})}
}

func (r *DedupReporter) Report(level Level, code Code, loc Location, msg string, notes []Note) {
	if r == nil {
		return
	}
	k := keyOf(Diagnostic{Level: level, Code: code, Location: loc, Message: msg})
	r.mu.Lock()
	_, dup := r.seen[k]
	if !dup {
		r.seen[k] = struct{}{}
	}
	r.mu.Unlock()
	if dup || r.next == nil {
		return
	}
	r.next.Report(level, code, loc, msg, notes)
}
