package compile

import (
	"errors"
	"fmt"

	"aotc/internal/definition"
	"aotc/internal/object"
	"aotc/internal/types"
)

// ErrNotVirtual is returned when a virtual function is requested for a
// constructor, initializer or static method.
var ErrNotVirtual = errors.New("element has no virtual dispatch")

// ThreadType returns the reference type of the thread parameter.
func (c *Context) ThreadType() (types.TypeID, error) {
	return c.threadT.Do(func() (types.TypeID, error) {
		d, err := c.defs.Bootstrap().FindDefinedType(c.opts.ThreadClass)
		if err != nil {
			return types.NoTypeID, fmt.Errorf("thread class: %w", err)
		}
		if _, err := d.Verify(); err != nil {
			return types.NoTypeID, fmt.Errorf("thread class: %w", err)
		}
		return c.types.Reference(d.ObjectType()), nil
	})
}

// FunctionType returns the function type of e: the thread reference first,
// then the receiver for constructors and instance methods, then the
// declared parameters.
func (c *Context) FunctionType(e *definition.Executable) (types.TypeID, error) {
	thread, err := c.ThreadType()
	if err != nil {
		return types.NoTypeID, err
	}
	params := make([]types.TypeID, 0, len(e.Params)+2)
	params = append(params, thread)
	if !e.IsStatic() {
		params = append(params, c.types.Reference(e.Enclosing.ObjectType()))
	}
	params = append(params, e.Params...)
	return c.types.Function(e.Return, params...), nil
}

// ExactFunction returns the function for direct calls of e, adding it to
// the implicit section of e's class on first request.
func (c *Context) ExactFunction(e *definition.Executable) (*object.Function, error) {
	return c.exact.LoadOrCompute(e, func() (*object.Function, error) {
		fnType, err := c.FunctionType(e)
		if err != nil {
			return nil, err
		}
		return c.ImplicitSection(e).AddFunction(e, ExactName(c.types, e, fnType), fnType), nil
	})
}

// VirtualFunction returns the dispatch function of method e for receivers
// of class receiver. It lives in the receiver's module.
func (c *Context) VirtualFunction(e *definition.Executable, receiver *definition.Defined) (*object.Function, error) {
	if e.Kind != definition.KindMethod || e.IsStatic() {
		return nil, fmt.Errorf("%s: %w", e, ErrNotVirtual)
	}
	if receiver == nil {
		receiver = e.Enclosing
	}
	return c.virtual.LoadOrCompute(virtualKey{element: e, receiver: receiver}, func() (*object.Function, error) {
		if !receiver.IsInterface() && !e.Enclosing.IsInterface() &&
			!c.types.IsSubclass(receiver.ObjectType(), e.Enclosing.ObjectType()) {
			return nil, fmt.Errorf("%s does not inherit %s", receiver.Name(), e)
		}
		fnType, err := c.FunctionType(e)
		if err != nil {
			return nil, err
		}
		name := VirtualName(c.types, e, receiver, fnType)
		return c.ProgramModule(receiver).ImplicitSection().AddFunction(e, name, fnType), nil
	})
}

// DeclareForeignFunction makes fn, the function of target, callable from
// current. Calls within one class need no declaration and get nil.
func (c *Context) DeclareForeignFunction(target *definition.Executable, fn *object.Function, current *definition.Executable) *object.Declaration {
	if target.Enclosing == current.Enclosing {
		return nil
	}
	return c.ImplicitSection(current).DeclareFunction(fn.Name, fn.Type)
}

// ExceptionField returns the hidden field of the thread class that carries
// the in-flight exception, injecting it on first call. It must be called
// before the thread class is laid out.
func (c *Context) ExceptionField() (*definition.FieldElement, error) {
	return c.excField.Do(func() (*definition.FieldElement, error) {
		boot := c.defs.Bootstrap()
		thread, err := boot.FindDefinedType(c.opts.ThreadClass)
		if err != nil {
			return nil, err
		}
		v, err := thread.Verify()
		if err != nil {
			return nil, err
		}
		throwable, err := boot.ObjectType(c.opts.ThrowableClass)
		if err != nil {
			return nil, err
		}
		return v.InjectField(definition.FieldSpec{
			Name:       "thrown",
			Descriptor: "L" + c.opts.ThrowableClass + ";",
			Type:       c.types.Reference(throwable),
			Modifiers:  definition.AccPrivate | definition.AccHidden,
		})
	})
}
