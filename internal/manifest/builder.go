package manifest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aotc/internal/compile"
	"aotc/internal/definition"
	"aotc/internal/graph"
	"aotc/internal/memory"
	"aotc/internal/types"
)

// ErrNoReceiver is returned for an instance field read from a static
// element or through an unrelated receiver.
var ErrNoReceiver = errors.New("field read needs a receiver of the owning class")

// Builder builds graphs from Code bodies. It implements
// compile.GraphBuilder.
type Builder struct{}

// BuildGraph emits, in order, the field reads and calls listed in the
// element's Code. Reads of instance fields go through the receiver; calls
// pass the current thread, the receiver where one is needed, and zero
// arguments. Callees are enqueued for compilation.
func (Builder) BuildGraph(ctx context.Context, c *compile.Context, u *compile.Unit) ([]*graph.Node, error) {
	code, _ := u.Element.Code.(*Code)
	b := &build{c: c, u: u, f: u.Factory, in: c.Types(), control: u.Factory.Start()}
	if code != nil {
		b.pos = graph.Pos{Line: code.Line, BCI: -1}
	}
	if err := b.prologue(); err != nil {
		return nil, err
	}
	if code == nil {
		return []*graph.Node{b.control}, nil
	}
	for _, ref := range code.Reads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.read(ref); err != nil {
			return nil, err
		}
	}
	for _, ref := range code.Calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.call(ref); err != nil {
			return nil, err
		}
	}
	return append([]*graph.Node{b.control}, b.values...), nil
}

type build struct {
	c  *compile.Context
	u  *compile.Unit
	f  *graph.Factory
	in *types.Interner

	pos      graph.Pos
	control  *graph.Node
	thread   *graph.Node
	receiver *graph.Node
	values   []*graph.Node
}

func (b *build) prologue() error {
	threadT, err := b.c.ThreadType()
	if err != nil {
		return err
	}
	if b.thread, err = b.f.CurrentThread(threadT); err != nil {
		return err
	}
	e := b.u.Element
	idx := 0
	if !e.IsStatic() {
		if b.receiver, err = b.f.Parameter(b.in.Reference(e.Enclosing.ObjectType()), 0); err != nil {
			return err
		}
		idx = 1
	}
	for i, p := range e.Params {
		if _, err := b.f.Parameter(p, idx+i); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) lookupClass(owner string) (*definition.Verified, error) {
	d, err := b.u.Element.Enclosing.ClassContext().FindDefinedType(owner)
	if err != nil {
		return nil, err
	}
	return d.Verify()
}

func (b *build) read(ref string) error {
	owner, name, err := ParseRead(ref)
	if err != nil {
		return err
	}
	v, err := b.lookupClass(owner)
	if err != nil {
		return err
	}
	field, ok := v.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %s", owner, name)
	}
	if field.IsStatic() {
		// static storage lives outside object layout
		return nil
	}
	if b.receiver == nil || !b.in.IsSubclass(b.u.Element.Enclosing.ObjectType(), v.ObjectType()) {
		return fmt.Errorf("%s: %w", ref, ErrNoReceiver)
	}
	mode := memory.Unordered
	if field.Modifiers.Has(definition.AccVolatile) {
		mode = memory.SeqCst
	}
	handle, err := b.f.ReferenceHandle(b.receiver)
	if err != nil {
		return err
	}
	fh, err := b.f.InstanceFieldOf(handle, field)
	if err != nil {
		return err
	}
	load, err := b.f.Load(b.control, fh, mode, b.pos)
	if err != nil {
		return err
	}
	b.values = append(b.values, load)
	return nil
}

func (b *build) call(ref string) error {
	owner, name, desc, err := ParseCall(ref)
	if err != nil {
		return err
	}
	v, target, err := FindMember(b.u.Element.Enclosing.ClassContext(), owner, name, desc)
	if err != nil {
		return err
	}
	b.c.Enqueue(target)

	var fnName string
	var fnType types.TypeID
	if strings.HasPrefix(ref, VirtualPrefix) {
		fn, err := b.c.VirtualFunction(target, v.Defined())
		if err != nil {
			return err
		}
		b.c.DeclareForeignFunction(target, fn, b.u.Element)
		fnName, fnType = fn.Name, fn.Type
	} else {
		fn, err := b.c.ExactFunction(target)
		if err != nil {
			return err
		}
		b.c.DeclareForeignFunction(target, fn, b.u.Element)
		fnName, fnType = fn.Name, fn.Type
	}

	params := b.in.Params(fnType)
	args := make([]*graph.Node, len(params))
	args[0] = b.thread
	for i := 1; i < len(params); i++ {
		if args[i], err = b.zero(params[i]); err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, fnName, err)
		}
	}
	if !target.IsStatic() && b.receiver != nil {
		args[1] = b.receiver
	}
	n, err := b.f.Call(b.control, fnName, fnType, args, b.pos)
	if err != nil {
		return err
	}
	b.control = n
	return nil
}

// FindMember looks up owner in cc and returns its verified form and the
// member name+desc. Constructors and the class initializer are matched on
// the class itself; methods are resolved through supertypes.
func FindMember(cc *definition.ClassContext, owner, name, desc string) (*definition.Verified, *definition.Executable, error) {
	d, err := cc.FindDefinedType(owner)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.Verify()
	if err != nil {
		return nil, nil, err
	}
	var target *definition.Executable
	switch name {
	case definition.ConstructorName:
		target = v.FindConstructor(desc)
	case definition.InitializerName:
		target = v.Initializer()
	default:
		r, err := v.Resolve()
		if err != nil {
			return nil, nil, err
		}
		target = r.FindMethod(name, desc)
	}
	if target == nil {
		return nil, nil, fmt.Errorf("%s.%s%s not found", owner, name, desc)
	}
	return v, target, nil
}

// zero returns the default value of typ.
func (b *build) zero(typ types.TypeID) (*graph.Node, error) {
	switch b.in.Kind(typ) {
	case types.KindBool:
		return b.f.BoolLiteral(false), nil
	case types.KindInt, types.KindUint:
		return b.f.IntLiteral(typ, 0)
	case types.KindReference:
		return b.f.NullLiteral(typ)
	}
	return nil, fmt.Errorf("no literal of type %s", b.in.FriendlyString(typ))
}
