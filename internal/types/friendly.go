package types

import (
	"strconv"
	"strings"
)

// FriendlyString renders id in the canonical form used inside mangled
// function names. The rendering never contains '.', so names joined with
// '.' remain unambiguous: s32, u16, f64, bool, void, type_id,
// ref<class<java/lang/String>>, prim_array<s32>, ref_array<ref<class<A>>>,
// array<4,u8>, fn<void(s32,bool)>.
func (in *Interner) FriendlyString(id TypeID) string {
	var sb strings.Builder
	in.writeFriendly(&sb, id)
	return sb.String()
}

func (in *Interner) writeFriendly(sb *strings.Builder, id TypeID) {
	t, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("invalid")
		return
	}
	switch t.Kind {
	case KindVoid, KindBool, KindTypeID:
		sb.WriteString(t.Kind.String())
	case KindInt:
		sb.WriteByte('s')
		sb.WriteString(strconv.Itoa(int(t.Width)))
	case KindUint:
		sb.WriteByte('u')
		sb.WriteString(strconv.Itoa(int(t.Width)))
	case KindFloat:
		sb.WriteByte('f')
		sb.WriteString(strconv.Itoa(int(t.Width)))
	case KindReference:
		sb.WriteString("ref<")
		in.writeFriendly(sb, t.Elem)
		sb.WriteByte('>')
	case KindArray:
		sb.WriteString("array<")
		sb.WriteString(strconv.FormatUint(uint64(t.Count), 10))
		sb.WriteByte(',')
		in.writeFriendly(sb, t.Elem)
		sb.WriteByte('>')
	case KindCompound:
		sb.WriteString("struct<")
		sb.WriteString(t.Name)
		sb.WriteByte('#')
		sb.WriteString(t.Sig)
		sb.WriteByte('>')
	case KindFunction:
		sb.WriteString("fn<")
		in.writeFriendly(sb, t.Elem)
		sb.WriteByte('(')
		for i, p := range in.Params(id) {
			if i > 0 {
				sb.WriteByte(',')
			}
			in.writeFriendly(sb, p)
		}
		sb.WriteString(")>")
	case KindClass, KindInterface:
		sb.WriteString(t.Kind.String())
		sb.WriteByte('<')
		sb.WriteString(t.Name)
		sb.WriteByte('>')
	case KindPrimArray, KindRefArray:
		sb.WriteString(t.Kind.String())
		sb.WriteByte('<')
		in.writeFriendly(sb, t.Elem)
		sb.WriteByte('>')
	default:
		sb.WriteString(t.Kind.String())
	}
}
