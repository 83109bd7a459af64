// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package jvpmode implements the forward-mode AD trace: a JVP tracer
// pairs a primal with its tangent, and processPrimitive dispatches to
// each primitive's registered JVP rule.
// Grounded on the chain-rule structure already present in the
// teacher's per-op files (internal/autodiff/ops/*.go each document
// their local derivative in a doc comment); here that same math runs
// forward instead of being taped for a later backward pass.
package jvpmode

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

// Payload is the (primal, tangent) pair a JVP tracer carries. Both
// fields hold whatever the next trace down represents its values as —
// a *trace.Tracer if JVP is stacked over another trace (e.g. linearize
// staging a jaxpr), or a *backend.Buffer at the bottom.
type Payload struct {
	Primal  any
	Tangent any
}

func init() {
	trace.RegisterInterpreter(trace.JVP, interp{})
}

type interp struct{}

func (interp) Pure(mt *trace.MainTrace, x any) *trace.Tracer {
	av := AvalOf(x)
	return trace.NewTracer(mt, av, Payload{Primal: x, Tangent: Zero{Aval: av}})
}

// Lift treats a lower tracer as a constant with no tangent
// information: the tangent of a constant is zero.
func (interp) Lift(mt *trace.MainTrace, t *trace.Tracer) *trace.Tracer {
	return trace.NewTracer(mt, t.Aval(), Payload{Primal: t, Tangent: Zero{Aval: t.Aval()}})
}

func (interp) ProcessPrimitive(mt *trace.MainTrace, prim *registry.Primitive, args []*trace.Tracer, params registry.Params) ([]*trace.Tracer, error) {
	if prim.JVP == nil {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "no JVP rule registered")
	}
	primals := make([]any, len(args))
	tangents := make([]any, len(args))
	for i, a := range args {
		p := a.Payload.(Payload)
		primals[i] = p.Primal
		tangents[i] = p.Tangent
	}
	primalsOut, tangentsOut, err := prim.JVP(params, primals, tangents)
	if err != nil {
		return nil, err
	}
	outs := make([]*trace.Tracer, len(primalsOut))
	for i := range primalsOut {
		outs[i] = trace.NewTracer(mt, AvalOf(primalsOut[i]), Payload{Primal: primalsOut[i], Tangent: tangentsOut[i]})
	}
	return outs, nil
}

func (interp) FullLower(t *trace.Tracer) *trace.Tracer { return t }

// AvalOf extracts the abstract value of a raw (non-JVP) value flowing
// through bind: a tracer of some other trace, a concrete buffer, a
// bare float64 scalar, or an already-Zero tangent.
func AvalOf(x any) aval.Aval {
	switch v := x.(type) {
	case *trace.Tracer:
		return v.Aval()
	case *backend.Buffer:
		return v.Aval()
	case Zero:
		return v.Aval
	case float64:
		return aval.ShapedArray(aval.Shape{}, aval.Float32)
	default:
		panic("jvpmode: value of unrecognized type flowing through bind")
	}
}
