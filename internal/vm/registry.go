// Package vm holds the interpreter-facing registry: which class loader owns
// which class dictionary, which runtime class stands for which class type,
// and the logical threads that run class initializers.
//
// Every registration is insert-if-absent. A second registration of the same
// identity is a broken contract between collaborators and fails with an
// error matching definition.ErrInvariant; the first registration stays.
package vm

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"aotc/internal/definition"
	"aotc/internal/once"
	"aotc/internal/types"
)

var (
	ErrDuplicateLoader     = fmt.Errorf("class loader registered twice: %w", definition.ErrInvariant)
	ErrDuplicateDictionary = fmt.Errorf("dictionary registered twice: %w", definition.ErrInvariant)
	ErrUnknownLoader       = fmt.Errorf("class loader is unknown: %w", definition.ErrInvariant)
	ErrUnknownDictionary   = fmt.Errorf("dictionary has no class loader: %w", definition.ErrInvariant)
	ErrDuplicateClass      = fmt.Errorf("class registered twice: %w", definition.ErrInvariant)
)

// Loader is the identity of a class loader object. Two loaders are the
// same only if they are the same pointer.
type Loader struct {
	Name string
}

func (l *Loader) String() string {
	if l == nil {
		return "<bootstrap>"
	}
	return l.Name
}

// Registry maps loaders to dictionaries and class types to runtime classes.
// The nil loader always names the bootstrap dictionary.
type Registry struct {
	defs *definition.Context

	loaderMu sync.Mutex
	loaders  once.Map[*Loader, *definition.ClassContext]
	dicts    once.Map[*definition.ClassContext, *Loader]
	classes  once.Map[types.TypeID, *Class]
	anon     atomic.Uint64

	threadMu sync.Mutex
	threads  map[uint64]*Thread
	threadID atomic.Uint64
}

// NewRegistry creates a registry over the class dictionaries of defs.
func NewRegistry(defs *definition.Context) *Registry {
	return &Registry{defs: defs, threads: make(map[uint64]*Thread)}
}

func (r *Registry) Definitions() *definition.Context { return r.defs }

// RegisterLoader binds loader to dict in both directions. Either side
// already bound fails.
func (r *Registry) RegisterLoader(loader *Loader, dict *definition.ClassContext) error {
	if loader == nil || dict == nil {
		return fmt.Errorf("register loader: nil argument: %w", definition.ErrInvariant)
	}
	r.loaderMu.Lock()
	defer r.loaderMu.Unlock()
	if _, ok := r.loaders.Load(loader); ok {
		return fmt.Errorf("%s: %w", loader, ErrDuplicateLoader)
	}
	if _, ok := r.dicts.Load(dict); ok || dict == r.defs.Bootstrap() {
		return fmt.Errorf("%s: %w", dict.Name(), ErrDuplicateDictionary)
	}
	r.dicts.LoadOrStore(dict, loader)
	r.loaders.LoadOrStore(loader, dict)
	return nil
}

// DictionaryFor returns the dictionary of loader; nil means bootstrap.
func (r *Registry) DictionaryFor(loader *Loader) (*definition.ClassContext, error) {
	if loader == nil {
		return r.defs.Bootstrap(), nil
	}
	dict, ok := r.loaders.Load(loader)
	if !ok {
		return nil, fmt.Errorf("%s: %w", loader, ErrUnknownLoader)
	}
	return dict, nil
}

// LoaderFor returns the loader that owns dict; the bootstrap dictionary
// has the nil loader.
func (r *Registry) LoaderFor(dict *definition.ClassContext) (*Loader, error) {
	if dict == r.defs.Bootstrap() {
		return nil, nil
	}
	loader, ok := r.dicts.Load(dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w", dict.Name(), ErrUnknownDictionary)
	}
	return loader, nil
}

// DefineClass defines raw under name in loader's dictionary, verifies it
// and registers its runtime class.
func (r *Registry) DefineClass(loader *Loader, name string, raw *definition.RawDefinition) (*Class, error) {
	dict, err := r.DictionaryFor(loader)
	if err != nil {
		return nil, err
	}
	d, err := dict.DefineClass(name, raw)
	if err != nil {
		return nil, err
	}
	v, err := d.Verify()
	if err != nil {
		return nil, err
	}
	c, err := newClass(v, loader)
	if err != nil {
		return nil, err
	}
	if err := r.RegisterClass(d.ObjectType(), c); err != nil {
		return nil, err
	}
	return c, nil
}

// DefineAnonymousClass defines raw in the host's loader under a fresh name
// "<host>/<n>".
func (r *Registry) DefineAnonymousClass(host *Class, raw *definition.RawDefinition) (*Class, error) {
	name := host.Name() + "/" + strconv.FormatUint(r.anon.Add(1)-1, 10)
	return r.DefineClass(host.Loader(), name, raw)
}

// RegisterClass binds objType to c. A second binding fails and leaves the
// first in place.
func (r *Registry) RegisterClass(objType types.TypeID, c *Class) error {
	if _, stored := r.classes.LoadOrStore(objType, c); !stored {
		return fmt.Errorf("%s: %w", c.Name(), ErrDuplicateClass)
	}
	return nil
}

// ClassOf returns the runtime class registered for objType.
func (r *Registry) ClassOf(objType types.TypeID) (*Class, bool) {
	return r.classes.Load(objType)
}
