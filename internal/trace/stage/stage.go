// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package stage implements the partial-evaluation / jaxpr-staging
// trace backing makeJaxpr: makeJaxpr(f) runs f once under a trace whose
// tracers carry a jaxpr binder instead of a value, recording every
// primitive application it touches as a JaxprEqn. There is no teacher
// analogue — born only ever records a flat backward tape
// (GradientTape), never stages a forward graph — so this trace's
// control flow is a fresh design; it reuses C4's bind/Interpreter
// plumbing and delegates constant folding to C5 (the eager trace) the
// same way GradientTape.Backward delegates zero-fill to
// tensor.NewRaw for a missing gradient.
package stage

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

// node is a jaxpr tracer's payload: either a genuinely abstract value
// derived from one of makeJaxpr's formal inputs — in which case atom
// already names the binder or equation output it came from and val is
// nil — or a value known concretely at trace time, materialized into
// an atom lazily, only once some equation actually needs to reference
// it — a pure-concrete bind constant-folds straight through eager.
type node struct {
	val          any
	atom         ir.Atom
	materialized bool
	aval         aval.Aval
}

// builder accumulates the pieces of the jaxpr makeJaxpr is staging;
// it lives as the owning MainTrace's Global for the duration of the trace.
type builder struct {
	constVars []*ir.Var
	consts    []any
	eqns      []*ir.JaxprEqn
}

func init() {
	trace.RegisterInterpreter(trace.Jaxpr, interp{})
}

type interp struct{}

// Pure wraps a bare concrete Go value (float64/int/bool literal, or a
// *backend.Buffer produced by an earlier, non-staged computation) as a
// constant node. It is never emitted into the jaxpr unless an
// equation mixing it with a genuinely abstract operand forces atomize
// to materialize it.
func (interp) Pure(mt *trace.MainTrace, x any) *trace.Tracer {
	av := avalOf(x)
	return trace.NewTracer(mt, av, &node{val: x, aval: av})
}

// Lift handles a tracer belonging to a strictly lower trace flowing
// into a staged primitive application. The only case this trace
// supports is a concrete eager tracer (payload *backend.Buffer),
// treated exactly like Pure; anything else — a tracer of another
// abstract trace — has no concrete value to capture and is out of
// scope for this trace.
func (interp) Lift(mt *trace.MainTrace, t *trace.Tracer) *trace.Tracer {
	buf, ok := t.Payload.(*backend.Buffer)
	if !ok {
		panic("stage: cannot lift a non-concrete tracer into a jaxpr trace")
	}
	return trace.NewTracer(mt, buf.Aval(), &node{val: buf, aval: buf.Aval()})
}

func (interp) ProcessPrimitive(mt *trace.MainTrace, prim *registry.Primitive, args []*trace.Tracer, params registry.Params) ([]*trace.Tracer, error) {
	b := mt.Global.(*builder)

	nodes := make([]*node, len(args))
	shapedIns := make([]aval.Aval, len(args))
	concreteIns := make([]any, len(args))
	allConcrete := true
	for i, a := range args {
		n := a.Payload.(*node)
		nodes[i] = n
		shapedIns[i] = n.aval.ToShaped()
		if n.val == nil {
			allConcrete = false
		} else {
			concreteIns[i] = n.val
		}
	}

	if allConcrete {
		outs, err := trace.Bind(prim, concreteIns, params)
		if err != nil {
			return nil, err
		}
		results := make([]*trace.Tracer, len(outs))
		for i, o := range outs {
			results[i] = trace.NewTracer(mt, o.Aval(), &node{val: o.Payload, aval: o.Aval()})
		}
		return results, nil
	}

	if prim.AbstractEval == nil {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "no abstractEval rule registered")
	}
	outAvals, err := prim.AbstractEval(params, shapedIns...)
	if err != nil {
		return nil, err
	}

	inAtoms := make([]ir.Atom, len(nodes))
	for i, n := range nodes {
		inAtoms[i] = atomize(b, n)
	}
	outVars := make([]*ir.Var, len(outAvals))
	results := make([]*trace.Tracer, len(outAvals))
	for i, av := range outAvals {
		v := ir.NewVar(av)
		outVars[i] = v
		results[i] = trace.NewTracer(mt, av, &node{atom: ir.VarAtom(v), aval: av, materialized: true})
	}
	b.eqns = append(b.eqns, &ir.JaxprEqn{OutVars: outVars, Primitive: prim, InVars: inAtoms, Params: params})
	return results, nil
}

func (interp) FullLower(t *trace.Tracer) *trace.Tracer { return t }

// atomize returns the Atom n is known by in the jaxpr under
// construction, materializing a literal or a fresh captured constant
// the first time a concrete node is actually referenced by an equation.
func atomize(b *builder, n *node) ir.Atom {
	if n.val == nil || n.materialized {
		return n.atom
	}
	if lit, dtype, ok := literalOf(n.val); ok {
		n.atom = ir.LitAtom(lit, dtype)
	} else {
		v := ir.NewVar(n.aval.ToShaped())
		b.constVars = append(b.constVars, v)
		b.consts = append(b.consts, n.val)
		n.atom = ir.VarAtom(v)
	}
	n.materialized = true
	return n.atom
}

// literalOf reports whether val is small enough to inline as a bare
// jaxpr literal rather than a captured constant — the Go scalar types
// a user might write directly in arithmetic (e.g. "x + 1"), plus the
// degenerate case of a rank-0 *backend.Buffer. A fully concrete
// sub-computation (every operand a Go literal, no formal input in
// sight) never reaches ProcessPrimitive at all: it constant-folds
// straight through eager into a scalar buffer before atomize ever
// sees it. That buffer still has to print as a bare literal rather
// than a captured const, the same as if the user had written the
// literal directly.
func literalOf(val any) (any, aval.DType, bool) {
	switch v := val.(type) {
	case bool:
		return v, aval.Bool, true
	case int:
		return v, aval.Int32, true
	case int32:
		return v, aval.Int32, true
	case int64:
		return v, aval.Int64, true
	case float32:
		return v, aval.Float32, true
	case float64:
		return v, aval.Float64, true
	case *backend.Buffer:
		if len(v.Shape) == 0 {
			return v.Data[0], v.DType, true
		}
		return nil, 0, false
	default:
		return nil, 0, false
	}
}

// avalOf computes the abstract value of a bare Go value flowing into
// Pure, mirroring the analogous helpers in the eager and jvpmode traces.
func avalOf(x any) aval.Aval {
	switch v := x.(type) {
	case *backend.Buffer:
		return v.Aval()
	case float64:
		return aval.ShapedArray(aval.Shape{}, aval.Float64)
	case float32:
		return aval.ShapedArray(aval.Shape{}, aval.Float32)
	case int, int32:
		return aval.ShapedArray(aval.Shape{}, aval.Int32)
	case int64:
		return aval.ShapedArray(aval.Shape{}, aval.Int64)
	case bool:
		return aval.ShapedArray(aval.Shape{}, aval.Bool)
	default:
		panic("stage: pure() given a value of unrecognized type")
	}
}
