package transform

import (
	"strings"
	"sync"
)

// Mapper transforms a single array element.
type Mapper func(any) any

// Predicate decides whether an array element is kept by filter.
type Predicate func(any) bool

// FuncRegistry is the safe lookup table for map and filter functions.
// Transform declarations reference functions by name; the set of callable
// code is fixed at registration time, never parsed from the declaration.
type FuncRegistry struct {
	mu         sync.RWMutex
	mappers    map[string]Mapper
	predicates map[string]Predicate
}

// NewFuncRegistry creates an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{
		mappers:    make(map[string]Mapper),
		predicates: make(map[string]Predicate),
	}
}

// DefaultFuncRegistry returns a registry preloaded with the built-in
// functions.
func DefaultFuncRegistry() *FuncRegistry {
	r := NewFuncRegistry()

	r.RegisterMapper("to_upper", func(v any) any {
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
		return v
	})
	r.RegisterMapper("to_lower", func(v any) any {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
		return v
	})
	r.RegisterMapper("trim_space", func(v any) any {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return v
	})

	r.RegisterPredicate("non_nil", func(v any) bool {
		return v != nil
	})
	r.RegisterPredicate("non_empty", func(v any) bool {
		switch t := v.(type) {
		case nil:
			return false
		case string:
			return t != ""
		case []any:
			return len(t) > 0
		case map[string]any:
			return len(t) > 0
		default:
			return true
		}
	})

	return r
}

// RegisterMapper registers or replaces a named mapper.
func (r *FuncRegistry) RegisterMapper(name string, fn Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappers[name] = fn
}

// RegisterPredicate registers or replaces a named predicate.
func (r *FuncRegistry) RegisterPredicate(name string, fn Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = fn
}

// Mapper resolves a named mapper.
func (r *FuncRegistry) Mapper(name string) (Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.mappers[name]
	return fn, ok
}

// Predicate resolves a named predicate.
func (r *FuncRegistry) Predicate(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[name]
	return fn, ok
}
