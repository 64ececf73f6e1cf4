package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"aotc/internal/buildpipeline"
	"aotc/internal/diag"
	"aotc/internal/output"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <class>...",
	Short: "Print the instance layout of classes",
	Long:  "Layout loads the project's class manifests and prints each class's members with offsets and sizes.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  layoutExecution,
}

func init() {
	layoutCmd.Flags().String("target", "", "target triple (x86_64-linux-gnu|wasm32)")
}

func layoutExecution(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCompileFlags(cmd, cfg); err != nil {
		return err
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	bag := diag.NewBag(0)
	env, err := buildpipeline.Open(cmd.Context(), cfg, diag.BagReporter{Bag: bag, Min: diag.LevelWarning}, nil)
	if err != nil {
		_ = diag.RenderAll(os.Stderr, bag, colored)
		return err
	}
	in := env.Defs.Types()
	for i, name := range args {
		info, err := env.LayoutOf(name)
		if err != nil {
			_ = diag.RenderAll(os.Stderr, bag, colored)
			return fmt.Errorf("%s: %w", name, err)
		}
		l, err := output.LayoutFrom(in, info)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := printLayout(cmd.OutOrStdout(), name, l); err != nil {
			return err
		}
	}
	return nil
}

func printLayout(w io.Writer, name string, l *output.Layout) error {
	if _, err := fmt.Fprintf(w, "%s  size %d  align %d\n", name, l.Size, l.Align); err != nil {
		return err
	}
	t := &table{}
	t.add("offset", "size", "name", "type")
	for _, m := range l.Members {
		t.add(strconv.FormatUint(m.Offset, 10), strconv.FormatUint(m.Size, 10), m.Name, m.Type)
	}
	return t.write(w, "  ")
}
