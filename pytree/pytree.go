// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pytree is the user-facing surface over the pytree registry:
// flatten/unflatten arbitrarily nested containers of
// tuples, string-keyed maps and leaves. Thin re-export over
// internal/registry, mirroring how the teacher's top-level tensor
// package re-exports internal/tensor's RawTensor as a type alias.
package pytree

import "github.com/lucent-ml/lucent/internal/registry"

// TreeDef is the canonical structural description of a flattened tree.
type TreeDef = registry.TreeDef

// NodeKind classifies a pytree node.
type NodeKind = registry.NodeKind

const (
	LeafNode     = registry.LeafNode
	SequenceNode = registry.SequenceNode
	MapNode      = registry.MapNode
)

// FlattenFn and UnflattenFn describe how a registered external type
// participates in flattening.
type FlattenFn = registry.PytreeFlattenFn
type UnflattenFn = registry.PytreeUnflattenFn

// Flatten returns the ordered leaves of tree and a TreeDef describing
// how to rebuild it.
func Flatten(tree any) ([]any, *TreeDef) {
	return registry.Flatten(tree)
}

// Unflatten rebuilds a tree isomorphic to the one def was built from,
// substituting leaves for the original leaves in flatten order.
func Unflatten(def *TreeDef, leaves []any) (any, error) {
	return registry.Unflatten(def, leaves)
}

// Map applies fn pointwise to the leaves of one or more trees sharing
// a treedef, and rebuilds the result in the shape of the first tree.
func Map(fn func(leaves ...any) any, trees ...any) (any, error) {
	return registry.MapTrees(fn, trees...)
}

// StructureEqual reports whether two treedefs were built from
// identical node kinds and child treedefs in the same positions.
func StructureEqual(a, b *TreeDef) bool {
	return registry.StructureEqual(a, b)
}

// RegisterNode registers flatten/unflatten for every value of sample's
// concrete type, letting external types participate in pytrees
// without modifying this package.
func RegisterNode(sample any, flatten FlattenFn, unflatten UnflattenFn) {
	registry.RegisterPytreeNode(sample, flatten, unflatten)
}
