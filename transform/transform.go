// Package transform applies a small declarative pipeline to raw adapter
// results before they reach the caller: field selection, renaming, mapping,
// filtering, and flattening. Operations are pure and stateless and are
// applied left to right.
//
// Map and filter reference named functions resolved from a registry rather
// than evaluated expressions, so a transform declaration is data, never
// code.
package transform

import (
	"fmt"
	"strings"

	"github.com/meshworks/adapterkit/core"
)

// OpType identifies a transform operation.
type OpType string

const (
	OpSelect  OpType = "select"
	OpRename  OpType = "rename"
	OpMap     OpType = "map"
	OpFilter  OpType = "filter"
	OpFlatten OpType = "flatten"
)

// Operation is one step of a transform pipeline. The declarative wire form
// is a list of {type, ...params} objects; only the parameters for the given
// type are consulted.
type Operation struct {
	Type OpType `json:"type" yaml:"type"`

	// Fields names the fields kept by select. Dotted paths (a.b.c) resolve
	// through nested objects and are written back as nested structure.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Mapping is the oldKey to newKey table for rename. Keys not present
	// in the mapping are copied through unchanged.
	Mapping map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`

	// Fn names a registered mapper (map) or predicate (filter).
	Fn string `json:"fn,omitempty" yaml:"fn,omitempty"`

	// Path optionally points flatten at a nested array.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config is an ordered transform pipeline.
type Config struct {
	Operations []Operation `json:"operations" yaml:"operations"`
}

// Transformer applies transform pipelines, resolving named functions from
// its registry. It holds no mutable per-call state and is safe for
// concurrent use.
type Transformer struct {
	funcs *FuncRegistry
}

// New creates a transformer over the given function registry. A nil
// registry means only the built-in functions are available.
func New(funcs *FuncRegistry) *Transformer {
	if funcs == nil {
		funcs = DefaultFuncRegistry()
	}
	return &Transformer{funcs: funcs}
}

// Apply runs the pipeline over result. A nil config is the identity.
func (t *Transformer) Apply(result any, config *Config) (any, error) {
	if config == nil {
		return result, nil
	}

	current := result
	for i, op := range config.Operations {
		next, err := t.applyOne(current, op)
		if err != nil {
			return nil, &core.BindingError{
				Op:   fmt.Sprintf("transform[%d] %s", i, op.Type),
				Kind: "transform",
				Err:  err,
			}
		}
		current = next
	}
	return current, nil
}

func (t *Transformer) applyOne(value any, op Operation) (any, error) {
	switch op.Type {
	case OpSelect:
		return applySelect(value, op.Fields), nil
	case OpRename:
		return applyRename(value, op.Mapping), nil
	case OpMap:
		return t.applyMap(value, op.Fn)
	case OpFilter:
		return t.applyFilter(value, op.Fn)
	case OpFlatten:
		return applyFlatten(value, op.Path)
	default:
		return nil, fmt.Errorf("%q: %w", op.Type, core.ErrUnknownTransform)
	}
}

// applySelect keeps only the named fields. Arrays are handled element-wise;
// missing fields are simply absent from the output, never an error.
func applySelect(value any, fields []string) any {
	if arr, ok := value.([]any); ok {
		out := make([]any, len(arr))
		for i, elem := range arr {
			out[i] = applySelect(elem, fields)
		}
		return out
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}

	out := make(map[string]any)
	for _, field := range fields {
		v, found := lookupPath(obj, field)
		if !found {
			continue
		}
		writePath(out, field, v)
	}
	return out
}

// applyRename relocates mapped keys and copies every unmapped key through
// unchanged. Arrays are handled element-wise.
func applyRename(value any, mapping map[string]string) any {
	if arr, ok := value.([]any); ok {
		out := make([]any, len(arr))
		for i, elem := range arr {
			out[i] = applyRename(elem, mapping)
		}
		return out
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}

	out := make(map[string]any, len(obj))
	for key, v := range obj {
		if newKey, ok := mapping[key]; ok {
			out[newKey] = v
		} else {
			out[key] = v
		}
	}
	return out
}

func (t *Transformer) applyMap(value any, fnName string) (any, error) {
	arr, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("map requires array input, got %T: %w", value, core.ErrTransformType)
	}

	fn, ok := t.funcs.Mapper(fnName)
	if !ok {
		return nil, fmt.Errorf("mapper %q is not registered: %w", fnName, core.ErrUnknownTransform)
	}

	out := make([]any, len(arr))
	for i, elem := range arr {
		out[i] = fn(elem)
	}
	return out, nil
}

func (t *Transformer) applyFilter(value any, fnName string) (any, error) {
	arr, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("filter requires array input, got %T: %w", value, core.ErrTransformType)
	}

	fn, ok := t.funcs.Predicate(fnName)
	if !ok {
		return nil, fmt.Errorf("predicate %q is not registered: %w", fnName, core.ErrUnknownTransform)
	}

	out := make([]any, 0, len(arr))
	for _, elem := range arr {
		if fn(elem) {
			out = append(out, elem)
		}
	}
	return out, nil
}

// applyFlatten flattens one array level, either at the top level or at the
// value resolved at path.
func applyFlatten(value any, path string) (any, error) {
	if path == "" {
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("flatten requires array input, got %T: %w", value, core.ErrTransformType)
		}
		return flattenOne(arr), nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("flatten at path %q requires object input, got %T: %w", path, value, core.ErrTransformType)
	}

	nested, found := lookupPath(obj, path)
	if !found {
		// Missing path is treated like a missing field: nothing to do.
		return value, nil
	}

	arr, ok := nested.([]any)
	if !ok {
		return nil, fmt.Errorf("value at path %q is %T, not an array: %w", path, nested, core.ErrTransformType)
	}

	// Copy every object along the path before writing, so the flattened
	// array never lands in a map shared with the caller's input.
	out := clonePathMaps(obj, path)
	writePath(out, path, flattenOne(arr))
	return out, nil
}

// clonePathMaps shallow-copies obj and each nested object traversed by the
// dotted path, leaving values off the path shared.
func clonePathMaps(obj map[string]any, path string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	current := out
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		m, ok := current[part].(map[string]any)
		if !ok {
			break
		}
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		current[part] = cp
		current = cp
	}
	return out
}

// flattenOne removes exactly one level of nesting; non-array elements pass
// through untouched.
func flattenOne(arr []any) []any {
	out := make([]any, 0, len(arr))
	for _, elem := range arr {
		if inner, ok := elem.([]any); ok {
			out = append(out, inner...)
		} else {
			out = append(out, elem)
		}
	}
	return out
}

// lookupPath resolves a dotted path through nested objects.
func lookupPath(obj map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = obj
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// writePath writes value at a dotted path, creating nested objects as
// needed so selected paths come back as nested structure rather than
// flattened keys.
func writePath(obj map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := obj
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
