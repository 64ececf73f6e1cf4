package graph

import (
	"fmt"
	"io"
	"strings"

	"aotc/internal/types"
)

// Walk visits every node reachable from roots through value and control
// dependencies, each once, dependencies before dependents. visit returning
// false stops the walk.
func Walk(roots []*Node, visit func(*Node) bool) {
	seen := make(map[*Node]struct{})
	var stop bool
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || stop {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		if n.control != nil {
			walk(n.control)
		}
		for _, d := range n.deps {
			walk(d)
		}
		if !stop && !visit(n) {
			stop = true
		}
	}
	for _, r := range roots {
		walk(r)
	}
}

// Print writes one line per node reachable from roots, operands first:
//
//	%3 = add s32 %1, %2
//	%5 = load s32 %4 after %2 [unordered]
func Print(w io.Writer, in *types.Interner, roots ...*Node) error {
	var err error
	Walk(roots, func(n *Node) bool {
		_, err = fmt.Fprintln(w, Format(in, n))
		return err == nil
	})
	return err
}

// Format renders a single node as Print does.
func Format(in *types.Interner, n *Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%%%d = %s %s", n.id, n.kind, in.FriendlyString(n.typ))
	for i, d := range n.deps {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%%d", d.id)
	}
	if n.control != nil {
		fmt.Fprintf(&sb, " after %%%d", n.control.id)
	}
	switch n.kind.Category() {
	case CatLiteral:
		if n.kind != KindNullLiteral {
			fmt.Fprintf(&sb, " %d", n.literal.Value)
		}
	case CatParameter:
		if n.kind == KindParameter {
			fmt.Fprintf(&sb, " #%d", n.param.Index)
		}
	case CatExtract:
		if n.kind == KindExtractMember {
			fmt.Fprintf(&sb, " .%s", n.extract.Member.Name)
		}
	case CatHandle:
		if n.handle.Field != nil {
			fmt.Fprintf(&sb, " %s@%d", n.handle.Field, n.handle.Offset)
		}
		fmt.Fprintf(&sb, " [%s]", n.DetectedMode())
	case CatMemory:
		fmt.Fprintf(&sb, " [%s]", n.mem.Mode)
	case CatCall:
		fmt.Fprintf(&sb, " %s", n.call.Target)
	}
	return sb.String()
}
