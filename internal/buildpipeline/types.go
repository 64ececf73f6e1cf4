// Package buildpipeline runs one compilation from a loaded project file to
// written artifacts.
package buildpipeline

import (
	"errors"

	"aotc/internal/compile"
	"aotc/internal/config"
	"aotc/internal/diag"
	"aotc/internal/observ"
)

var (
	// ErrNoEntryPoints is returned when none of the configured entries
	// could be found.
	ErrNoEntryPoints = errors.New("no entry points")
	// ErrBuildFailed is returned when the run completed but reported
	// errors.
	ErrBuildFailed = errors.New("build reported errors")
)

// Request configures a build.
type Request struct {
	Config *config.Config
	// Progress receives driver events; nil discards them.
	Progress compile.ProgressSink
	// MaxDiagnostics bounds the diagnostics bag; 0 keeps everything.
	MaxDiagnostics int
	// MinLevel drops diagnostics below it.
	MinLevel diag.Level
}

// Result captures what a build produced.
type Result struct {
	Bag       *diag.Bag
	Timer     *observ.Timer
	Compiled  int
	Failed    []string
	Artifacts []string
	// RuntimeInit lists the classes whose initializers run at runtime.
	RuntimeInit []string
}
