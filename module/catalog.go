package module

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
)

var (
	moduleType = reflect.TypeFor[Module]()
	inputType  = reflect.TypeFor[*Input]()
	errorType  = reflect.TypeFor[error]()
)

// Constructor is a registered module factory.
type Constructor struct {
	name   string
	fn     reflect.Value
	result reflect.Type
	hasErr bool
}

func (c *Constructor) Name() string { return c.name }

// ResultType is the declared type the constructor returns.
func (c *Constructor) ResultType() reflect.Type { return c.result }

// Validate checks statically that the constructor produces a Module and, when
// iface is not nil, that its result also implements iface.
func (c *Constructor) Validate(iface reflect.Type) error {
	if !c.result.Implements(moduleType) {
		return fmt.Errorf("%w: %q returns %s, which has no Forward(context.Context, *module.Input) (*module.Output, error)",
			ErrNotModule, c.name, c.result)
	}
	if iface == nil {
		return nil
	}
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("%w: %s is not an interface type", ErrInterfaceMismatch, iface)
	}
	if !c.result.Implements(iface) {
		return fmt.Errorf("%w: %q returns %s, which does not implement %s", ErrInterfaceMismatch, c.name, c.result, iface)
	}
	return nil
}

// New runs the constructor and checks the value it produced.
func (c *Constructor) New(in *Input) (m Module, err error) {
	if in == nil {
		in = &Input{}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module: constructor %q panicked: %v", c.name, r)
		}
	}()

	out := c.fn.Call([]reflect.Value{reflect.ValueOf(in)})
	if c.hasErr && !out[1].IsNil() {
		return nil, fmt.Errorf("construct %q: %w", c.name, out[1].Interface().(error))
	}
	v := out[0]
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && v.IsNil() {
		return nil, fmt.Errorf("%w: %q returned nil", ErrNotModule, c.name)
	}
	m, ok := v.Interface().(Module)
	if !ok {
		return nil, fmt.Errorf("%w: %q produced %T", ErrNotModule, c.name, v.Interface())
	}
	return m, nil
}

// Catalog maps constructor names to constructors.
type Catalog struct {
	mu    sync.RWMutex
	ctors map[string]*Constructor
}

func NewCatalog() *Catalog {
	return &Catalog{ctors: make(map[string]*Constructor)}
}

// Register adds fn under name. fn must be func(*Input) T or func(*Input) (T, error).
// Whether T is a Module is checked by Validate, so a catalog may hold
// constructors of anything.
func (c *Catalog) Register(name string, fn any) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrBadConstructor)
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %q is %T, not a function", ErrBadConstructor, name, fn)
	}
	t := v.Type()
	if t.IsVariadic() || t.NumIn() != 1 || t.In(0) != inputType {
		return fmt.Errorf("%w: %q must take a single *module.Input", ErrBadConstructor, name)
	}
	ctor := &Constructor{name: name, fn: v}
	switch {
	case t.NumOut() == 1:
		ctor.result = t.Out(0)
	case t.NumOut() == 2 && t.Out(1) == errorType:
		ctor.result = t.Out(0)
		ctor.hasErr = true
	default:
		return fmt.Errorf("%w: %q must return T or (T, error)", ErrBadConstructor, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.ctors[name]; dup {
		return fmt.Errorf("%w: %q already registered", ErrBadConstructor, name)
	}
	c.ctors[name] = ctor
	return nil
}

// MustRegister is Register that panics on error.
func (c *Catalog) MustRegister(name string, fn any) {
	if err := c.Register(name, fn); err != nil {
		panic(err)
	}
}

func (c *Catalog) Lookup(name string) (*Constructor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctor, ok := c.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConstructor, name)
	}
	return ctor, nil
}

// Names lists registered constructors, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.ctors))
}

// Default is the process-wide catalog.
var Default = NewCatalog()

// InterfaceOf returns the reflect.Type of interface T, for WithInterface and Validate.
func InterfaceOf[T any]() reflect.Type {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("module: InterfaceOf[%s]: not an interface", t))
	}
	return t
}
