// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package registry_test

import (
	"testing"

	"github.com/lucent-ml/lucent/internal/registry"
)

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	tree := map[string]any{
		"b": []any{1, 2},
		"a": 3,
	}
	leaves, def := registry.Flatten(tree)
	if len(leaves) != 3 {
		t.Fatalf("got %d leaves, want 3", len(leaves))
	}
	// Map children visit in ascending key order: "a" before "b".
	if leaves[0] != 3 {
		t.Errorf("leaves[0] = %v, want 3 (key \"a\" visited first)", leaves[0])
	}

	got, err := registry.Unflatten(def, leaves)
	if err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	gotMap := got.(map[string]any)
	if gotMap["a"] != 3 {
		t.Errorf("round-tripped a = %v, want 3", gotMap["a"])
	}
	gotSeq := gotMap["b"].([]any)
	if gotSeq[0] != 1 || gotSeq[1] != 2 {
		t.Errorf("round-tripped b = %v, want [1 2]", gotSeq)
	}
}

func TestUnflattenWrongLeafCount(t *testing.T) {
	_, def := registry.Flatten([]any{1, 2, 3})
	if _, err := registry.Unflatten(def, []any{1, 2}); err == nil {
		t.Errorf("Unflatten with wrong leaf count should fail")
	}
}

func TestStructureEqual(t *testing.T) {
	_, d1 := registry.Flatten(map[string]any{"x": 1, "y": 2})
	_, d2 := registry.Flatten(map[string]any{"x": 10, "y": 20})
	if !registry.StructureEqual(d1, d2) {
		t.Errorf("treedefs with identical shape and keys should be equal")
	}
	_, d3 := registry.Flatten(map[string]any{"x": 1, "z": 2})
	if registry.StructureEqual(d1, d3) {
		t.Errorf("treedefs with different keys should not be equal")
	}
}

func TestMapTrees(t *testing.T) {
	a := []any{1, 2, 3}
	b := []any{10, 20, 30}
	got, err := registry.MapTrees(func(leaves ...any) any {
		return leaves[0].(int) + leaves[1].(int)
	}, a, b)
	if err != nil {
		t.Fatalf("MapTrees: %v", err)
	}
	seq := got.([]any)
	want := []int{11, 22, 33}
	for i, w := range want {
		if seq[i] != w {
			t.Errorf("MapTrees result[%d] = %v, want %d", i, seq[i], w)
		}
	}
}

func TestMapTreesStructureMismatch(t *testing.T) {
	a := []any{1, 2}
	b := []any{1, 2, 3}
	if _, err := registry.MapTrees(func(leaves ...any) any { return nil }, a, b); err == nil {
		t.Errorf("MapTrees over mismatched treedefs should fail")
	}
}

type point struct {
	X, Y int
}

func TestRegisterPytreeNode(t *testing.T) {
	registry.RegisterPytreeNode(point{},
		func(node any) ([]any, any) {
			p := node.(point)
			return []any{p.X, p.Y}, nil
		},
		func(_ any, children []any) any {
			return point{X: children[0].(int), Y: children[1].(int)}
		},
	)

	leaves, def := registry.Flatten(point{X: 1, Y: 2})
	if len(leaves) != 2 {
		t.Fatalf("got %d leaves, want 2", len(leaves))
	}
	got, err := registry.Unflatten(def, []any{3, 4})
	if err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	if got.(point) != (point{X: 3, Y: 4}) {
		t.Errorf("round-tripped point = %v, want {3 4}", got)
	}
}
