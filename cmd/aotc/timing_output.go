package main

import (
	"fmt"
	"io"

	"aotc/internal/observ"
)

// printTimings writes the phase summary of t when enabled.
func printTimings(out io.Writer, t *observ.Timer, enabled bool) {
	if !enabled || t == nil || out == nil {
		return
	}
	fmt.Fprint(out, t.Summary())
}
