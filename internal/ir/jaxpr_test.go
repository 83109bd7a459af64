// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ir_test

import (
	"testing"

	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/registry"
)

var jitPrim = &registry.Primitive{Name: "jit", NumIn: -1}

// TestFlattenInlinesJit checks that a jit
// equation inlines to a semantically identical sequence of equations.
func TestFlattenInlinesJit(t *testing.T) {
	f32 := aval.ShapedArray(aval.Shape{}, aval.Float32)

	// inner: { lambda p:f32[] . let q:f32[] = add p 1 in ( q ) }
	p := ir.NewVar(f32)
	q := ir.NewVar(f32)
	inner := &ir.ClosedJaxpr{Jaxpr: &ir.Jaxpr{
		InVars:   []*ir.Var{p},
		Eqns:     []*ir.JaxprEqn{{OutVars: []*ir.Var{q}, Primitive: addPrim, InVars: []ir.Atom{ir.VarAtom(p), ir.LitAtom(1, aval.Int32)}}},
		OutAtoms: []ir.Atom{ir.VarAtom(q)},
	}}

	// outer: { lambda x:f32[] . let r:f32[] = jit[jaxpr=inner] x in ( r ) }
	x := ir.NewVar(f32)
	r := ir.NewVar(f32)
	outer := &ir.ClosedJaxpr{Jaxpr: &ir.Jaxpr{
		InVars: []*ir.Var{x},
		Eqns: []*ir.JaxprEqn{{
			OutVars:   []*ir.Var{r},
			Primitive: jitPrim,
			InVars:    []ir.Atom{ir.VarAtom(x)},
			Params:    registry.Params{"jaxpr": inner},
		}},
		OutAtoms: []ir.Atom{ir.VarAtom(r)},
	}}

	flat := ir.Flatten(outer)

	if len(flat.Jaxpr.Eqns) != 2 {
		t.Fatalf("Flatten: got %d equations, want 2 (inlined add + copy)", len(flat.Jaxpr.Eqns))
	}
	if flat.Jaxpr.Eqns[0].Primitive.Name != "add" {
		t.Errorf("Flatten: first inlined equation is %q, want add", flat.Jaxpr.Eqns[0].Primitive.Name)
	}
	last := flat.Jaxpr.Eqns[len(flat.Jaxpr.Eqns)-1]
	if last.Primitive.Name != "copy" || last.OutVars[0] != r {
		t.Errorf("Flatten: expected a closing copy into the original out-var r")
	}
	if flat.Jaxpr.OutAtoms[0].V != r {
		t.Errorf("Flatten must preserve the outer jaxpr's own out-atoms")
	}
}
