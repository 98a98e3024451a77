package transform

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/meshworks/adapterkit/core"
)

// TestApplyNilConfig verifies a nil config is the identity
func TestApplyNilConfig(t *testing.T) {
	tr := New(nil)
	in := map[string]any{"a": 1}
	out, err := tr.Apply(in, nil)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Apply(nil config) = %v, want input unchanged", out)
	}
}

// TestSelect tests field selection on objects and arrays
func TestSelect(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpSelect, Fields: []string{"id", "name"}},
	}}

	out, err := tr.Apply(map[string]any{
		"id":     "a1",
		"name":   "alpha",
		"secret": "drop-me",
	}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := map[string]any{"id": "a1", "name": "alpha"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("select = %v, want %v", out, want)
	}

	// Element-wise over arrays
	out, err = tr.Apply([]any{
		map[string]any{"id": "a", "x": 1},
		map[string]any{"id": "b", "x": 2},
	}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	wantArr := []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	}
	if !reflect.DeepEqual(out, wantArr) {
		t.Errorf("select over array = %v, want %v", out, wantArr)
	}
}

// TestSelectDottedPath verifies nested paths resolve and reconstruct
func TestSelectDottedPath(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpSelect, Fields: []string{"user.name", "user.address.city"}},
	}}

	out, err := tr.Apply(map[string]any{
		"user": map[string]any{
			"name": "ada",
			"address": map[string]any{
				"city": "london",
				"zip":  "e1",
			},
			"email": "drop",
		},
		"meta": "drop",
	}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := map[string]any{
		"user": map[string]any{
			"name": "ada",
			"address": map[string]any{
				"city": "london",
			},
		},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("select nested = %v, want %v", out, want)
	}
}

// TestSelectMissingField verifies missing fields are absent, not errors
func TestSelectMissingField(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpSelect, Fields: []string{"id", "nope", "a.b.c"}},
	}}

	out, err := tr.Apply(map[string]any{"id": 7}, cfg)
	if err != nil {
		t.Fatalf("missing field should not error, got %v", err)
	}
	want := map[string]any{"id": 7}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("select with missing fields = %v, want %v", out, want)
	}
}

// TestRename verifies mapped keys move and unmapped keys pass through
func TestRename(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpRename, Mapping: map[string]string{"old": "new"}},
	}}

	out, err := tr.Apply(map[string]any{"old": 1, "keep": 2}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := map[string]any{"new": 1, "keep": 2}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("rename = %v, want %v", out, want)
	}
}

// TestSelectThenRename tests the two most common steps chained
func TestSelectThenRename(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpSelect, Fields: []string{"sku", "qty"}},
		{Type: OpRename, Mapping: map[string]string{"qty": "quantity"}},
	}}

	out, err := tr.Apply(map[string]any{"sku": "x-1", "qty": 3, "noise": true}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := map[string]any{"sku": "x-1", "quantity": 3}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("pipeline = %v, want %v", out, want)
	}
}

// TestMap tests named mapper application
func TestMap(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpMap, Fn: "to_upper"},
	}}

	out, err := tr.Apply([]any{"a", "b"}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := []any{"A", "B"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("map to_upper = %v, want %v", out, want)
	}
}

// TestMapNonArray verifies map on a non-array is a type error
func TestMapNonArray(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: OpMap, Fn: "to_upper"}}}

	_, err := tr.Apply(map[string]any{"a": 1}, cfg)
	if !errors.Is(err, core.ErrTransformType) {
		t.Errorf("error = %v, want ErrTransformType", err)
	}

	var be *core.BindingError
	if !errors.As(err, &be) {
		t.Fatalf("error should be a BindingError, got %T", err)
	}
	if !strings.Contains(be.Op, "transform[0]") {
		t.Errorf("BindingError.Op = %q, should name the failing step", be.Op)
	}
}

// TestMapUnknownFunction verifies unregistered names fail
func TestMapUnknownFunction(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: OpMap, Fn: "no_such_fn"}}}

	_, err := tr.Apply([]any{1}, cfg)
	if !errors.Is(err, core.ErrUnknownTransform) {
		t.Errorf("error = %v, want ErrUnknownTransform", err)
	}
}

// TestFilter tests named predicate application
func TestFilter(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{
		{Type: OpFilter, Fn: "non_nil"},
	}}

	out, err := tr.Apply([]any{"a", nil, "b", nil}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := []any{"a", "b"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("filter non_nil = %v, want %v", out, want)
	}
}

// TestFilterCustomPredicate tests a caller-registered predicate
func TestFilterCustomPredicate(t *testing.T) {
	reg := DefaultFuncRegistry()
	reg.RegisterPredicate("positive", func(v any) bool {
		n, ok := v.(int)
		return ok && n > 0
	})

	tr := New(reg)
	cfg := &Config{Operations: []Operation{{Type: OpFilter, Fn: "positive"}}}

	out, err := tr.Apply([]any{-1, 2, 0, 3}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := []any{2, 3}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("filter positive = %v, want %v", out, want)
	}
}

// TestFlattenTopLevel tests one-level array flattening
func TestFlattenTopLevel(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: OpFlatten}}}

	out, err := tr.Apply([]any{
		[]any{1, 2},
		3,
		[]any{[]any{4}},
	}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	// Exactly one level: the inner [4] stays nested
	want := []any{1, 2, 3, []any{4}}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("flatten = %v, want %v", out, want)
	}
}

// TestFlattenAtPath tests flattening of a nested array in place
func TestFlattenAtPath(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: OpFlatten, Path: "items"}}}

	out, err := tr.Apply(map[string]any{
		"id":    "order-1",
		"items": []any{[]any{"a", "b"}, []any{"c"}},
	}, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	want := map[string]any{
		"id":    "order-1",
		"items": []any{"a", "b", "c"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("flatten at path = %v, want %v", out, want)
	}
}

// TestFlattenMissingPath verifies a missing path leaves the value unchanged
func TestFlattenMissingPath(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: OpFlatten, Path: "nope"}}}

	in := map[string]any{"id": 1}
	out, err := tr.Apply(in, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("flatten missing path = %v, want input unchanged", out)
	}
}

// TestFlattenNonArray verifies type errors for non-array flatten targets
func TestFlattenNonArray(t *testing.T) {
	tr := New(nil)

	_, err := tr.Apply("scalar", &Config{Operations: []Operation{{Type: OpFlatten}}})
	if !errors.Is(err, core.ErrTransformType) {
		t.Errorf("flatten scalar error = %v, want ErrTransformType", err)
	}

	_, err = tr.Apply(map[string]any{"x": "not-an-array"}, &Config{
		Operations: []Operation{{Type: OpFlatten, Path: "x"}},
	})
	if !errors.Is(err, core.ErrTransformType) {
		t.Errorf("flatten at non-array path error = %v, want ErrTransformType", err)
	}
}

// TestUnknownOperationType verifies unrecognized step types fail
func TestUnknownOperationType(t *testing.T) {
	tr := New(nil)
	cfg := &Config{Operations: []Operation{{Type: "explode"}}}

	_, err := tr.Apply(map[string]any{}, cfg)
	if !errors.Is(err, core.ErrUnknownTransform) {
		t.Errorf("error = %v, want ErrUnknownTransform", err)
	}
}

// TestApplyDoesNotMutateInput verifies pipelines build new values
func TestApplyDoesNotMutateInput(t *testing.T) {
	tr := New(nil)
	in := map[string]any{"a": 1, "b": 2}
	cfg := &Config{Operations: []Operation{
		{Type: OpSelect, Fields: []string{"a"}},
		{Type: OpRename, Mapping: map[string]string{"a": "z"}},
	}}

	if _, err := tr.Apply(in, cfg); err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	if len(in) != 2 || in["a"] != 1 || in["b"] != 2 {
		t.Errorf("input mutated: %v", in)
	}
}

// TestFlattenAtNestedPathDoesNotMutateInput verifies flattening deep in an
// object leaves the caller's nested maps untouched
func TestFlattenAtNestedPathDoesNotMutateInput(t *testing.T) {
	tr := New(nil)
	in := map[string]any{
		"data": map[string]any{
			"items": []any{[]any{"a"}, []any{"b"}},
			"count": 2,
		},
	}
	cfg := &Config{Operations: []Operation{{Type: OpFlatten, Path: "data.items"}}}

	out, err := tr.Apply(in, cfg)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}

	wantOut := map[string]any{
		"data": map[string]any{
			"items": []any{"a", "b"},
			"count": 2,
		},
	}
	if !reflect.DeepEqual(out, wantOut) {
		t.Errorf("flatten = %v, want %v", out, wantOut)
	}

	wantIn := map[string]any{
		"data": map[string]any{
			"items": []any{[]any{"a"}, []any{"b"}},
			"count": 2,
		},
	}
	if !reflect.DeepEqual(in, wantIn) {
		t.Errorf("input mutated: %v", in)
	}
}

// TestFlattenTwiceDepthThree verifies each flatten removes exactly one
// level, so applying it twice fully flattens depth two but not depth three
func TestFlattenTwiceDepthThree(t *testing.T) {
	tr := New(nil)
	twice := &Config{Operations: []Operation{{Type: OpFlatten}, {Type: OpFlatten}}}

	out, err := tr.Apply([]any{[]any{[]any{1, 2}}, 3}, twice)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	if want := []any{1, 2, 3}; !reflect.DeepEqual(out, want) {
		t.Errorf("double flatten of depth 3 = %v, want %v", out, want)
	}

	out, err = tr.Apply([]any{[]any{[]any{[]any{1}}}, 2}, twice)
	if err != nil {
		t.Fatalf("Apply returned %v", err)
	}
	// Depth 4: one nesting level must survive two flattens
	if want := []any{[]any{1}, 2}; !reflect.DeepEqual(out, want) {
		t.Errorf("double flatten of depth 4 = %v, want %v", out, want)
	}
}
