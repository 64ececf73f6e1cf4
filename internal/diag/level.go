package diag

import (
	"fmt"
	"strings"
)

// Level is the importance of a diagnostic. Higher is more severe.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNote
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNote:
		return "NOTE"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel accepts the lower-case level names used by CLI flags.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "note":
		return LevelNote, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown diagnostic level %q", s)
}
