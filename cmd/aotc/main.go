// Command aotc compiles class manifests into per-class program modules.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"aotc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "aotc",
	Short:        "Ahead-of-time compiler middle tier",
	Long:         `aotc schedules, lays out and lowers class definitions into program modules`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		stopProf, err := setupProfiling(cmd)
		if err != nil {
			cleanup()
			return err
		}
		cleanups = append(cleanups, stopProf, cleanup)
		return nil
	},
}

// cleanups run after the command, in order.
var cleanups []func()

// main registers the subcommands and global flags and executes the root
// command, exiting with status 1 on error.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	flags.String("config", "", "path to aotc.toml (default: search upwards from the working directory)")

	flags.String("trace", "", "write trace events to file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval")

	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file")
	flags.String("runtime-trace", "", "write a runtime trace to file")

	err := rootCmd.Execute()
	for _, fn := range cleanups {
		fn()
	}
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against stdout.
func useColor(cmd *cobra.Command) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return isTerminal(os.Stdout), nil
}
