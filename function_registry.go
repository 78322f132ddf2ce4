package opts

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"unicode"
)

var (
	// ErrUnknownFunction indicates a rule calling an unregistered function.
	ErrUnknownFunction = errors.New("opts: function not registered")
	// ErrDuplicateFunction indicates a second function under one name.
	ErrDuplicateFunction = errors.New("opts: function already registered")
)

// Function is a helper callable from rules.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers exposed to rules. Names are case
// sensitive identifiers since engines bind them as variables.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// DefaultFunctions returns a registry holding coalesce and oneOf.
//
//	coalesce(writeConcern, "ACKNOWLEDGED")
//	oneOf(readPreference, "SECONDARY", "NEAREST")
func DefaultFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	registry.MustRegister("coalesce", coalesce)
	registry.MustRegister("oneOf", oneOf)
	return registry
}

// Register stores fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("opts: function %q is nil", name)
	}
	if !isIdentifier(name) {
		return fmt.Errorf("opts: function name %q is not an identifier", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	r.functions[name] = fn
	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *FunctionRegistry) MustRegister(name string, fn Function) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Clone returns a copy that later registrations on r do not affect.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[name]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names returns registered names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes the functions of registry to the service's
// rules.
func WithFunctionRegistry(registry *FunctionRegistry) ServiceOption {
	return func(cfg *serviceConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction adds fn to the service's rule functions. Invalid or
// duplicate names are ignored.
func WithCustomFunction(name string, fn Function) ServiceOption {
	return func(cfg *serviceConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func coalesce(args ...any) (any, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

func oneOf(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("oneOf: missing value")
	}
	for _, candidate := range args[1:] {
		if reflect.DeepEqual(ruleValue(args[0]), ruleValue(candidate)) {
			return true, nil
		}
	}
	return false, nil
}
