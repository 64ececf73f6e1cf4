package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var levelColors = map[Level]*color.Color{
	LevelDebug:   color.New(color.FgHiBlack),
	LevelInfo:    color.New(color.FgCyan),
	LevelNote:    color.New(color.FgBlue),
	LevelWarning: color.New(color.FgYellow, color.Bold),
	LevelError:   color.New(color.FgRed, color.Bold),
}

// Render writes d in the multi-line CLI form:
//
//	ERROR resolution-failed (E1002): cannot resolve superclass
//	  --> app/Child
//	  note: app/Parent: class not found
func Render(w io.Writer, d Diagnostic, colored bool) error {
	head := d.Level.String()
	if colored {
		if c, ok := levelColors[d.Level]; ok {
			c.EnableColor()
			head = c.Sprint(head)
		}
	}
	if _, err := fmt.Fprintf(w, "%s %s (%s): %s\n", head, d.Code, d.Code.ID(), d.Message); err != nil {
		return err
	}
	if !d.Location.IsZero() {
		if _, err := fmt.Fprintf(w, "  --> %s\n", d.Location); err != nil {
			return err
		}
	}
	for _, n := range d.Notes {
		line := "  note: " + n.Msg
		if !n.Location.IsZero() {
			line = "  note: " + n.Location.String() + ": " + n.Msg
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// RenderAll renders every diagnostic in the bag after sorting it.
func RenderAll(w io.Writer, b *Bag, colored bool) error {
	b.Sort()
	for _, d := range b.Items() {
		if err := Render(w, d, colored); err != nil {
			return err
		}
	}
	return nil
}

// FormatShort renders one line per diagnostic, notes indented under it:
//
//	app/Child: ERROR resolution-failed: cannot resolve superclass
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	var sb strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&sb, "%s: %s %s: %s\n", d.Location, d.Level, d.Code, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&sb, "  %s: note: %s\n", n.Location, n.Msg)
		}
	}
	return sb.String()
}
