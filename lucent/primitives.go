// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace/batchmode"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// jitPrimitive is the higher-order `jit` primitive Jit emits when it
// is invoked while already inside another tracing context: rather than
// executing, it records a jit equation whose single parameter, "jaxpr",
// holds the closed sub-jaxpr; no name or const-count parameter is
// recorded.
// Variadic like the teacher's cat, since the sub-jaxpr it carries may
// close over any number of dynamic leaves.
//
// No Transpose rule: Linearize always inlines a nested Jit call via
// jitJVP into the tangent jaxpr it is itself building (jitJVP's g
// closure runs under the very trace doing the linearizing), so a
// literal "jit" equation never appears inside a jaxpr transpose.go is
// asked to walk.
var jitPrimitive = registry.Register(&registry.Primitive{
	Name:         "jit",
	NumIn:        -1,
	AbstractEval: jitAbstractEval,
	JVP:          jitJVP,
	Batch:        jitBatch,
})

func closedJaxprOf(params registry.Params) (*ir.ClosedJaxpr, error) {
	cj, ok := params["jaxpr"].(*ir.ClosedJaxpr)
	if !ok || cj == nil {
		return nil, lucenterr.New(lucenterr.MissingRule, "jit", "missing jaxpr param")
	}
	return cj, nil
}

func jitAbstractEval(params registry.Params, _ ...aval.Aval) ([]aval.Aval, error) {
	cj, err := closedJaxprOf(params)
	if err != nil {
		return nil, err
	}
	out := make([]aval.Aval, len(cj.Jaxpr.OutAtoms))
	for i, a := range cj.Jaxpr.OutAtoms {
		out[i] = a.Aval()
	}
	return out, nil
}

// jitJVP inlines the sub-jaxpr's body via a freshly pushed JVP trace
// rather than differentiating the jaxpr's equations directly — the
// same "re-run the traced function" strategy every other higher-order
// use of evalClosedJaxprAny in this file follows, keeping exactly one
// jaxpr interpreter in the codebase.
func jitJVP(params registry.Params, primals, tangents []any) ([]any, []any, error) {
	cj, err := closedJaxprOf(params)
	if err != nil {
		return nil, nil, err
	}
	g := func(in []any) ([]any, error) { return evalClosedJaxprAny(cj, in) }
	return jvpmode.Run(g, primals, tangents)
}

// jitBatch inlines the sub-jaxpr via a freshly pushed batching trace.
// It requests every output at axis 0 — correct whenever the jitted
// function's outputs are all actually derived from a mapped input, the
// ordinary case a vmap(jit(f)) composition exercises; an output with
// no dependency on any mapped input is not handled by this rule, since
// batchmode.Run only reports which axis it actually used for the wrapped call as a
// whole, not per output.
func jitBatch(params registry.Params, in []any, inAxes []int) ([]any, []int, error) {
	cj, err := closedJaxprOf(params)
	if err != nil {
		return nil, nil, err
	}
	g := func(vals []any) ([]any, error) { return evalClosedJaxprAny(cj, vals) }
	outAxes := make([]int, len(cj.Jaxpr.OutAtoms))
	for i := range outAxes {
		outAxes[i] = 0
	}
	out, err := batchmode.Run(g, in, inAxes, outAxes)
	if err != nil {
		return nil, nil, err
	}
	return out, outAxes, nil
}
