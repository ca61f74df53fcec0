package optsync

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownFunction reports a call to a helper nobody registered.
	ErrUnknownFunction = errors.New("optsync: function not registered")
	// ErrDuplicateFunction reports a second registration under one name.
	ErrDuplicateFunction = errors.New("optsync: function already registered")
)

// Function is a helper callable from binding expressions, for example
// `call("format", vm.amount)`.
type Function func(args ...any) (any, error)

// FunctionRegistry holds binding helpers. Names are case-insensitive.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: make(map[string]Function)}
}

func functionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := functionKey(name)
	switch {
	case key == "":
		return errors.New("optsync: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("optsync: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]Function)
	}
	if _, ok := r.funcs[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateFunction, name)
	}
	r.funcs[key] = fn
	return nil
}

// RegisterAll adds every entry of funcs in name order and stops at the first
// failure.
func (r *FunctionRegistry) RegisterAll(funcs map[string]Function) error {
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(name, funcs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[functionKey(name)]
	return ok
}

// Len reports the number of registered helpers.
func (r *FunctionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// Clone returns an independent copy. Engines clone the registry they are
// given so later registrations do not leak into running evaluators.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{funcs: make(map[string]Function, len(r.funcs))}
	for key, fn := range r.funcs {
		clone.funcs[key] = fn
	}
	return clone
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.funcs[functionKey(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names lists the registered names, lower-cased and sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for key := range r.funcs {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes a copy of registry to binding expressions
// through the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers one helper for binding expressions. A later
// registration under the same name is ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *engineConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
