package compile

import (
	"strconv"
	"strings"

	"aotc/internal/definition"
	"aotc/internal/types"
)

// Mangled names join their parts with '.'. Class names are dotted, type
// renderings never contain '.', so a name splits unambiguously from the
// right: the parameter count tells how many trailing parts are parameter
// types.

// ExactName returns the linkage name for a direct call of e with function
// type fnType:
//
//	clinit.<class>
//	init.<class>.<n>.<params...>
//	exact.<class>.<name>.<ret>.<n>.<params...>
//
// n counts the parameters after the thread parameter.
func ExactName(in *types.Interner, e *definition.Executable, fnType types.TypeID) string {
	dotted := e.Enclosing.DottedName()
	var sb strings.Builder
	switch e.Kind {
	case definition.KindInitializer:
		return "clinit." + dotted
	case definition.KindConstructor:
		sb.WriteString("init.")
		sb.WriteString(dotted)
		sb.WriteByte('.')
	default:
		sb.WriteString("exact.")
		writeMember(&sb, in, dotted, e.Name, fnType)
	}
	writeParams(&sb, in, fnType)
	return sb.String()
}

// VirtualName returns the linkage name for dispatch of method e through a
// receiver of class receiver:
//
//	virtual.<receiver>.<name>.<ret>.<n>.<params...>
func VirtualName(in *types.Interner, e *definition.Executable, receiver *definition.Defined, fnType types.TypeID) string {
	var sb strings.Builder
	sb.WriteString("virtual.")
	writeMember(&sb, in, receiver.DottedName(), e.Name, fnType)
	writeParams(&sb, in, fnType)
	return sb.String()
}

func writeMember(sb *strings.Builder, in *types.Interner, dotted, name string, fnType types.TypeID) {
	sb.WriteString(dotted)
	sb.WriteByte('.')
	sb.WriteString(name)
	sb.WriteByte('.')
	sb.WriteString(in.FriendlyString(in.Return(fnType)))
	sb.WriteByte('.')
}

func writeParams(sb *strings.Builder, in *types.Interner, fnType types.TypeID) {
	params := in.Params(fnType)
	n := max(len(params)-1, 0)
	sb.WriteString(strconv.Itoa(n))
	for i := 1; i < len(params); i++ {
		sb.WriteByte('.')
		sb.WriteString(in.FriendlyString(params[i]))
	}
}
