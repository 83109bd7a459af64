// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import (
	"fmt"
	"strings"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
	"github.com/lucent-ml/lucent/pytree"
)

// avalOf computes the abstract value of a raw leaf value crossing the
// lucent/internal boundary, mirroring the similar helpers in
// numpy/helpers.go, jvpmode, stage and batchmode — every trace
// layer of this codebase carries its own copy rather than importing
// one another's internal package. The copies differ in which types
// they accept, and jvpmode's tags a bare float64 as float32.
func avalOf(x any) aval.Aval {
	switch v := x.(type) {
	case *trace.Tracer:
		return v.Aval()
	case *backend.Buffer:
		return v.Aval()
	case jvpmode.Zero:
		return v.Aval
	case float64:
		return aval.ShapedArray(aval.Shape{}, aval.Float64)
	case float32:
		return aval.ShapedArray(aval.Shape{}, aval.Float32)
	default:
		panic("lucent: value of unrecognized type flowing through a transformation boundary")
	}
}

// materialize turns a symbolic zero tangent/cotangent into a concrete
// buffer, needed anywhere a result crosses back out to caller code
// that has no notion of jvpmode.Zero.
func materialize(x any) any {
	if z, ok := x.(jvpmode.Zero); ok {
		return jvpmode.Materialize(z)
	}
	return x
}

// asArgs normalizes a transform's input to a positional argument
// slice: a []any passes through as-is (multi-argument call), anything
// else is treated as the sole argument.
func asArgs(x any) ([]any, bool) {
	if a, ok := x.([]any); ok {
		return a, true
	}
	return []any{x}, false
}

// scalarOne is the unit cotangent grad seeds backward() with. Raw
// scalar leaves in this codebase are always represented as a Go
// float64 regardless of logical dtype (eager.Pure only ever lifts
// float64), so the seed does not need to consult the output's dtype.
func scalarOne() any { return float64(1) }

// zeroTreeLike builds a pytree isomorphic to tree whose every leaf is
// the symbolic zero tangent for that leaf's aval — used by
// VjpWithAux to seed an aux output's cotangent as zero without asking
// the caller to supply one.
func zeroTreeLike(tree any) any {
	out, err := pytree.Map(func(leaves ...any) any {
		return jvpmode.Zero{Aval: avalOf(leaves[0])}
	}, tree)
	if err != nil {
		panic(err) // tree was just produced by Flatten/Unflatten above; always well-formed
	}
	return out
}

// treedefKey renders a TreeDef into a string canonical enough to use
// as part of a jit cache key: two calls with the same pytree shape
// produce identical keys, and differently-shaped calls collide only
// with vanishing probability.
func treedefKey(d *pytree.TreeDef) string {
	var b strings.Builder
	writeTreedef(&b, d)
	return b.String()
}

func writeTreedef(b *strings.Builder, d *pytree.TreeDef) {
	if d == nil {
		b.WriteString("_")
		return
	}
	fmt.Fprintf(b, "(%d", int(d.Kind))
	if d.Type != nil {
		fmt.Fprintf(b, ":%s", d.Type.String())
	}
	if keys, ok := d.Aux.([]string); ok {
		fmt.Fprintf(b, ":%v", keys)
	}
	for _, c := range d.Children {
		writeTreedef(b, c)
	}
	b.WriteString(")")
}

// avalKey renders one leaf's abstract value into the cache key.
func avalKey(a aval.Aval) string {
	return a.String()
}
