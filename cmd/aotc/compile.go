package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"aotc/internal/buildpipeline"
	"aotc/internal/config"
	"aotc/internal/diag"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags]",
	Short: "Compile the project described by aotc.toml",
	Long: `Compile loads the class manifests and build features named in aotc.toml,
compiles every element reachable from the entry points and writes one
program module per class into the output directory.`,
	Args: cobra.NoArgs,
	RunE: compileExecution,
}

func init() {
	compileCmd.Flags().Int("jobs", 0, "worker goroutines (0 = GOMAXPROCS)")
	compileCmd.Flags().String("output", "", "output directory")
	compileCmd.Flags().Int("max-errors", 0, "failed classes tolerated before stopping (0 = unlimited)")
	compileCmd.Flags().String("target", "", "target triple (x86_64-linux-gnu|wasm32)")
	compileCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func compileExecution(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCompileFlags(cmd, cfg); err != nil {
		return err
	}

	root := cmd.Root().PersistentFlags()
	quiet, err := root.GetBool("quiet")
	if err != nil {
		return err
	}
	timings, err := root.GetBool("timings")
	if err != nil {
		return err
	}
	maxDiagnostics, err := root.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}

	req := buildpipeline.Request{Config: cfg, MaxDiagnostics: maxDiagnostics, MinLevel: diag.LevelInfo}
	if quiet {
		req.MinLevel = diag.LevelWarning
	}

	var res buildpipeline.Result
	if shouldUseTUI(mode) && !quiet {
		res, err = runBuildWithUI(cmd.Context(), "aotc compile", req)
	} else {
		res, err = buildpipeline.Build(cmd.Context(), &req)
	}
	if res.Bag != nil {
		if renderErr := diag.RenderAll(os.Stderr, res.Bag, colored); renderErr != nil {
			return renderErr
		}
		if dropped := res.Bag.Dropped(); dropped > 0 {
			fmt.Fprintf(os.Stderr, "... %d more diagnostics not shown\n", dropped)
		}
	}
	printTimings(os.Stdout, res.Timer, timings)
	if len(res.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "failed classes: %s\n", strings.Join(res.Failed, ", "))
	}
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stdout, "compiled %d elements into %d modules under %s\n",
			res.Compiled, len(res.Artifacts), formatPathForOutput(cfg.Root, cfg.OutputDir()))
	}
	return nil
}

// loadConfig reads --config or searches for aotc.toml upwards from the
// working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		if path, err = config.Find("."); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// applyCompileFlags overrides cfg with the flags set on the command line
// and validates the result.
func applyCompileFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("jobs") {
		if cfg.Build.Jobs, err = flags.GetInt("jobs"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.Build.Output, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("max-errors") {
		if cfg.Build.MaxErrors, err = flags.GetInt("max-errors"); err != nil {
			return err
		}
	}
	if flags.Changed("target") {
		if cfg.Build.Target, err = flags.GetString("target"); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", cfg.Path, err)
	}
	return nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
