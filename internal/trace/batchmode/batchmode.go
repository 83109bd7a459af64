// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package batchmode implements the batching trace backing vmap: a
// batched tracer pairs a value with an optional batch axis (NoAxis
// meaning "not mapped over"), and processPrimitive dispatches to each
// primitive's registered Batch rule. There is no teacher analogue —
// born has no vectorizing-map transform — so this trace's control
// flow is a fresh design, following the same Payload-pair shape C6's
// (primal, tangent) pairing already established for this codebase.
package batchmode

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

// NoAxis marks a value as not mapped over the batch dimension.
const NoAxis = -1

// Payload is the (value, batch axis) pair a batching tracer carries.
type Payload struct {
	Value any
	Axis  int
}

func init() {
	trace.RegisterInterpreter(trace.Batch, interp{})
}

type interp struct{}

func (interp) Pure(mt *trace.MainTrace, x any) *trace.Tracer {
	return trace.NewTracer(mt, AvalOf(x), Payload{Value: x, Axis: NoAxis})
}

// Lift treats a tracer of a lower trace as an unbatched constant —
// there is no batch axis to inherit from a trace that knows nothing
// about vmap.
func (interp) Lift(mt *trace.MainTrace, t *trace.Tracer) *trace.Tracer {
	return trace.NewTracer(mt, t.Aval(), Payload{Value: t, Axis: NoAxis})
}

func (interp) ProcessPrimitive(mt *trace.MainTrace, prim *registry.Primitive, args []*trace.Tracer, params registry.Params) ([]*trace.Tracer, error) {
	if prim.Batch == nil {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "no batch rule registered")
	}
	in := make([]any, len(args))
	axes := make([]int, len(args))
	batchSize := -1
	for i, a := range args {
		p := a.Payload.(Payload)
		in[i] = p.Value
		axes[i] = p.Axis
		if p.Axis == NoAxis {
			continue
		}
		sz := AvalOf(p.Value).Shape[p.Axis]
		if batchSize == -1 {
			batchSize = sz
		} else if sz != batchSize {
			return nil, lucenterr.New(lucenterr.ShapeMismatch, prim.Name, "batch size mismatch across mapped operands")
		}
	}

	out, outAxes, err := prim.Batch(params, in, axes)
	if err != nil {
		return nil, err
	}
	outs := make([]*trace.Tracer, len(out))
	for i := range out {
		outs[i] = trace.NewTracer(mt, AvalOf(out[i]), Payload{Value: out[i], Axis: outAxes[i]})
	}
	return outs, nil
}

func (interp) FullLower(t *trace.Tracer) *trace.Tracer { return t }

// AvalOf extracts the abstract value of a raw (non-batching) value
// flowing through bind, mirroring the analogous helpers in the eager
// and jvpmode traces.
func AvalOf(x any) aval.Aval {
	switch v := x.(type) {
	case *trace.Tracer:
		return v.Aval()
	case *backend.Buffer:
		return v.Aval()
	case float64:
		return aval.ShapedArray(aval.Shape{}, aval.Float64)
	case float32:
		return aval.ShapedArray(aval.Shape{}, aval.Float32)
	default:
		panic("batchmode: value of unrecognized type flowing through bind")
	}
}
