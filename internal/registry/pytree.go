// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package registry

import (
	"reflect"
	"sort"
	"sync"

	"github.com/lucent-ml/lucent/internal/lucenterr"
)

// NodeKind classifies a pytree node: an ordered sequence, a
// string-keyed map, or a leaf.
type NodeKind int

const (
	// LeafNode is an opaque value — anything not recognised as a
	// sequence, a map, or a registered container.
	LeafNode NodeKind = iota
	// SequenceNode is an ordered, tuple-like container ([]any, or a
	// registered type flattened to an ordered child list).
	SequenceNode
	// MapNode is a string-keyed container whose children are visited
	// in ascending lexicographic key order.
	MapNode
)

// PytreeFlattenFn decomposes a registered node into its children plus
// whatever auxiliary data unflatten needs to rebuild it (e.g. field names).
type PytreeFlattenFn func(node any) (children []any, aux any)

// PytreeUnflattenFn rebuilds a registered node from its (possibly new)
// children and the aux data captured at flatten time.
type PytreeUnflattenFn func(aux any, children []any) any

type pytreeNodeDef struct {
	flatten   PytreeFlattenFn
	unflatten PytreeUnflattenFn
}

var (
	pytreeMu    sync.RWMutex
	pytreeTypes = map[reflect.Type]pytreeNodeDef{}
)

// RegisterPytreeNode registers flatten/unflatten for every value of
// sample's concrete type: an open registry so external types
// participate in pytree flattening without modifying this package.
func RegisterPytreeNode(sample any, flatten PytreeFlattenFn, unflatten PytreeUnflattenFn) {
	pytreeMu.Lock()
	defer pytreeMu.Unlock()
	pytreeTypes[reflect.TypeOf(sample)] = pytreeNodeDef{flatten: flatten, unflatten: unflatten}
}

func lookupPytreeType(t reflect.Type) (pytreeNodeDef, bool) {
	pytreeMu.RLock()
	defer pytreeMu.RUnlock()
	d, ok := pytreeTypes[t]
	return d, ok
}

// TreeDef is the canonical structural description of a flattened
// pytree, shared by every call to Flatten with the same nesting shape.
type TreeDef struct {
	Kind      NodeKind
	Type      reflect.Type // non-nil only for a registered node
	Aux       any           // sorted keys for MapNode, flatten's aux for a registered node
	Children  []*TreeDef
	NumLeaves int
}

// StructureEqual reports whether a and b were built from identical
// node kinds and child treedefs in the same positions.
func StructureEqual(a, b *TreeDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Type != b.Type || len(a.Children) != len(b.Children) {
		return false
	}
	if a.Kind == MapNode {
		ak, bk := a.Aux.([]string), b.Aux.([]string)
		if len(ak) != len(bk) {
			return false
		}
		for i := range ak {
			if ak[i] != bk[i] {
				return false
			}
		}
	} else if a.Kind == SequenceNode && a.Type != nil {
		if !reflect.DeepEqual(a.Aux, b.Aux) {
			return false
		}
	}
	for i := range a.Children {
		if !StructureEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Flatten decomposes tree into its ordered leaves and a TreeDef
// capturing how to rebuild it.
func Flatten(tree any) ([]any, *TreeDef) {
	switch t := tree.(type) {
	case []any:
		return flattenChildren(t, SequenceNode, nil, nil)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		children := make([]any, len(keys))
		for i, k := range keys {
			children[i] = t[k]
		}
		return flattenChildren(children, MapNode, nil, keys)
	default:
		if tree == nil {
			return []any{nil}, &TreeDef{Kind: LeafNode, NumLeaves: 1}
		}
		rt := reflect.TypeOf(tree)
		if def, ok := lookupPytreeType(rt); ok {
			children, aux := def.flatten(tree)
			return flattenChildren(children, SequenceNode, rt, aux)
		}
		return []any{tree}, &TreeDef{Kind: LeafNode, NumLeaves: 1}
	}
}

func flattenChildren(children []any, kind NodeKind, typ reflect.Type, aux any) ([]any, *TreeDef) {
	var leaves []any
	childDefs := make([]*TreeDef, len(children))
	total := 0
	for i, c := range children {
		ls, d := Flatten(c)
		leaves = append(leaves, ls...)
		childDefs[i] = d
		total += d.NumLeaves
	}
	return leaves, &TreeDef{Kind: kind, Type: typ, Aux: aux, Children: childDefs, NumLeaves: total}
}

// Unflatten rebuilds a tree isomorphic to the one TreeDef was built
// from, substituting newLeaves for the original leaves in flatten order.
// It fails when len(newLeaves) disagrees with def.NumLeaves.
func Unflatten(def *TreeDef, newLeaves []any) (any, error) {
	if len(newLeaves) != def.NumLeaves {
		return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "",
			leafCountMismatch(def.NumLeaves, len(newLeaves)))
	}
	idx := 0
	return unflattenAt(def, newLeaves, &idx)
}

func leafCountMismatch(want, got int) string {
	return "unflatten: got " + itoa(got) + " leaves, treedef expects " + itoa(want)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func unflattenAt(def *TreeDef, leaves []any, idx *int) (any, error) {
	switch def.Kind {
	case LeafNode:
		v := leaves[*idx]
		*idx++
		return v, nil
	case MapNode:
		keys := def.Aux.([]string)
		out := make(map[string]any, len(keys))
		for i, child := range def.Children {
			v, err := unflattenAt(child, leaves, idx)
			if err != nil {
				return nil, err
			}
			out[keys[i]] = v
		}
		return out, nil
	case SequenceNode:
		children := make([]any, len(def.Children))
		for i, child := range def.Children {
			v, err := unflattenAt(child, leaves, idx)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		if def.Type != nil {
			nodeDef, ok := lookupPytreeType(def.Type)
			if !ok {
				return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "",
					"no pytree node registered for type "+def.Type.String())
			}
			return nodeDef.unflatten(def.Aux, children), nil
		}
		return children, nil
	default:
		return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "", "unknown node kind")
	}
}

// MapTrees applies fn pointwise across the leaves of trees, which must
// all share the same TreeDef, and rebuilds the
// result in the shape of the first tree.
func MapTrees(fn func(leaves ...any) any, trees ...any) (any, error) {
	if len(trees) == 0 {
		return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "", "map: no trees given")
	}
	leavesLists := make([][]any, len(trees))
	var def0 *TreeDef
	for i, tree := range trees {
		leaves, def := Flatten(tree)
		if i == 0 {
			def0 = def
		} else if !StructureEqual(def0, def) {
			return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "",
				"map: trees do not share a treedef")
		}
		leavesLists[i] = leaves
	}
	out := make([]any, def0.NumLeaves)
	for j := range out {
		args := make([]any, len(trees))
		for i := range trees {
			args[i] = leavesLists[i][j]
		}
		out[j] = fn(args...)
	}
	return Unflatten(def0, out)
}
