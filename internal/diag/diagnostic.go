package diag

import (
	"strconv"
	"strings"
)

// Location points at the class-level entity a diagnostic is about.
// BCI is -1 when no bytecode index applies.
type Location struct {
	Type    string
	Element string
	Line    int
	BCI     int
}

// TypeLocation is a location naming only a type.
func TypeLocation(typeName string) Location {
	return Location{Type: typeName, BCI: -1}
}

// ElementLocation names a member of a type.
func ElementLocation(typeName, element string) Location {
	return Location{Type: typeName, Element: element, BCI: -1}
}

// IsZero reports whether no location is set.
func (l Location) IsZero() bool {
	return l.Type == "" && l.Element == "" && l.Line == 0 && l.BCI <= 0
}

// String renders "type.element:line@bci" leaving out absent parts.
func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.Type)
	if l.Element != "" {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(l.Element)
	}
	if l.Line > 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(l.Line))
	}
	if l.BCI >= 0 && (l.Line > 0 || l.BCI > 0) {
		sb.WriteByte('@')
		sb.WriteString(strconv.Itoa(l.BCI))
	}
	if sb.Len() == 0 {
		return "<unknown>"
	}
	return sb.String()
}

type Note struct {
	Location Location
	Msg      string
}

type Diagnostic struct {
	Level    Level
	Code     Code
	Message  string
	Location Location
	Notes    []Note
}

// New builds a diagnostic without notes.
func New(level Level, code Code, loc Location, msg string) Diagnostic {
	return Diagnostic{Level: level, Code: code, Location: loc, Message: msg}
}

func NewError(code Code, loc Location, msg string) Diagnostic {
	return New(LevelError, code, loc, msg)
}

func (d Diagnostic) WithNote(loc Location, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Location: loc, Msg: msg})
	return d
}
