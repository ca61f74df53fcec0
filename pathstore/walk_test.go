package pathstore

import (
	"errors"
	"testing"
)

type counterProperty struct {
	value any
	sets  int
}

func (p *counterProperty) Get() any { return p.value }

func (p *counterProperty) Set(value any) {
	p.sets++
	p.value = value
}

func TestLookupMissingIntermediates(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1}}

	if v, ok := Lookup(root, MustParse("a.b")); !ok || v != 1 {
		t.Fatalf("expected 1, got %v (%v)", v, ok)
	}
	for _, raw := range []string{"a.c", "x.y.z", "a.b.c", "a[0]"} {
		if v, ok := Lookup(root, MustParse(raw)); ok || v != nil {
			t.Fatalf("expected %s to be missing, got %v", raw, v)
		}
	}
}

func TestAssignCreatesAndGrows(t *testing.T) {
	root := map[string]any{}

	if _, err := Assign(root, MustParse("items[2].text"), "c"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	items, ok := root["items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("expected slice grown to 3, got %#v", root["items"])
	}
	if v, _ := Lookup(root, MustParse("items[2].text")); v != "c" {
		t.Fatalf("expected c, got %v", v)
	}
}

func TestAssignMutatesInPlace(t *testing.T) {
	items := []any{map[string]any{"text": "a"}, map[string]any{"text": "b"}}
	root := map[string]any{"items": items}

	if _, err := Assign(root, MustParse("items[1].text"), "changed"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if items[1].(map[string]any)["text"] != "changed" {
		t.Fatalf("expected shared slice element to change, got %#v", items[1])
	}
}

func TestAssignThroughScalarFails(t *testing.T) {
	root := map[string]any{"a": 5}
	if _, err := Assign(root, MustParse("a.b"), 1); !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
}

func TestPropertyAccessors(t *testing.T) {
	prop := &counterProperty{value: "initial"}
	root := map[string]any{"text": prop}

	if v, ok := Lookup(root, MustParse("text")); !ok || v != "initial" {
		t.Fatalf("expected getter value, got %v", v)
	}
	if _, err := Assign(root, MustParse("text"), "next"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if prop.sets != 1 || prop.value != "next" {
		t.Fatalf("expected setter call, got %+v", prop)
	}
	if root["text"] != prop {
		t.Fatalf("expected property to stay in place")
	}
}

func TestPropertyFuncsNested(t *testing.T) {
	inner := map[string]any{"value": 1}
	root := map[string]any{
		"obj": PropertyFuncs{GetFunc: func() any { return inner }},
	}
	if _, err := Assign(root, MustParse("obj.value"), 2); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if inner["value"] != 2 {
		t.Fatalf("expected nested write through getter, got %#v", inner)
	}
}

func TestStructFields(t *testing.T) {
	type viewModel struct {
		Name  string
		Count int
	}
	vm := &viewModel{Name: "a"}
	root := map[string]any{"vm": vm}

	if v, ok := Lookup(root, MustParse("vm.Name")); !ok || v != "a" {
		t.Fatalf("expected struct field read, got %v", v)
	}
	if _, err := Assign(root, MustParse("vm.Count"), 3); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if vm.Count != 3 {
		t.Fatalf("expected struct field write, got %+v", vm)
	}
	if _, err := Assign(root, MustParse("vm.Count"), "x"); !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected type mismatch error, got %v", err)
	}
}
