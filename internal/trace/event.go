package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of an event.
// Lower numeric values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole compiler invocation.
	ScopeDriver Scope = iota + 1
	// ScopePhase covers driver phases (load, schedule, emit).
	ScopePhase
	// ScopeType covers stage transitions of a single type definition.
	ScopeType
	// ScopeElement covers compilation of a single executable element.
	ScopeElement
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopePhase:
		return "phase"
	case ScopeType:
		return "type"
	case ScopeElement:
		return "element"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine that emitted the event
	Name     string            // e.g. "schedule", "prepare:java/lang/Object"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
