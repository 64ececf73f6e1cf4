package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"aotc/internal/output"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mp>...",
	Short: "Print the contents of program module artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  inspectExecution,
}

func init() {
	inspectCmd.Flags().Bool("bodies", false, "print function graphs")
}

func inspectExecution(cmd *cobra.Command, args []string) error {
	bodies, err := cmd.Flags().GetBool("bodies")
	if err != nil {
		return err
	}
	for i, path := range args {
		a, err := output.Read(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := printArtifact(cmd.OutOrStdout(), a, bodies); err != nil {
			return err
		}
	}
	return nil
}

func printArtifact(w io.Writer, a *output.Artifact, bodies bool) error {
	if _, err := fmt.Fprintf(w, "module %s (%s, %d functions)\n", a.Type, a.Target, a.FunctionCount()); err != nil {
		return err
	}
	if a.Layout != nil {
		if err := printLayout(w, "layout", a.Layout); err != nil {
			return err
		}
	}
	for _, s := range a.Sections {
		fmt.Fprintf(w, "section %s\n", s.Name)
		t := &table{}
		for _, fn := range s.Functions {
			t.add("define", fn.Name, fn.Type, fmt.Sprintf("%d nodes", fn.Nodes))
		}
		for _, d := range s.Declarations {
			t.add("declare", d.Name, d.Type)
		}
		if err := t.write(w, "  "); err != nil {
			return err
		}
		if !bodies {
			continue
		}
		for _, fn := range s.Functions {
			if fn.Body == "" {
				continue
			}
			fmt.Fprintf(w, "  %s:\n", fn.Name)
			for _, line := range strings.Split(strings.TrimRight(fn.Body, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	return nil
}
