// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package eager implements the bottom-of-stack trace: pure(x) wraps a
// bare value into a concrete-array tracer via the
// active backend's constructors, and processPrimitive calls straight
// into backend.Backend.Impl. This trace never stages and never lifts
// anything above level 0 — it is the trace every other trace kind
// eventually bottoms out on when it needs an actual number.
package eager

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

var active backend.Backend

// SetBackend installs the device every eager primitive application
// dispatches to. lucent.SetDefaultBackend calls this; tests may call
// it directly against backend/cpu without going through the top-level
// package.
func SetBackend(b backend.Backend) { active = b }

// Backend returns the currently installed device, or nil if none has
// been set yet.
func Backend() backend.Backend { return active }

func init() {
	trace.RegisterInterpreter(trace.Eager, interp{})
}

type interp struct{}

// Pure lifts a bare Go value into a concrete-array tracer. Accepted
// inputs: an existing *backend.Buffer (passed through), or a float64
// scalar (lifted via the backend's FromScalar).
func (interp) Pure(mt *trace.MainTrace, x any) *trace.Tracer {
	switch v := x.(type) {
	case *backend.Buffer:
		return trace.NewTracer(mt, v.Aval(), v)
	case float64:
		buf, err := active.FromScalar(v, aval.Float32)
		if err != nil {
			panic(err)
		}
		return trace.NewTracer(mt, buf.Aval(), buf)
	default:
		panic("eager: pure() given a value that is neither *backend.Buffer nor float64")
	}
}

// Lift is the identity at the bottom trace: nothing is ever below it.
func (interp) Lift(mt *trace.MainTrace, t *trace.Tracer) *trace.Tracer {
	return t
}

// ProcessPrimitive unwraps every tracer's buffer payload and calls the
// backend's Impl.
func (interp) ProcessPrimitive(mt *trace.MainTrace, prim *registry.Primitive, args []*trace.Tracer, params registry.Params) ([]*trace.Tracer, error) {
	if active == nil {
		return nil, lucenterr.New(lucenterr.BackendError, prim.Name, "no backend installed: call lucent.SetDefaultBackend first")
	}
	in := make([]*backend.Buffer, len(args))
	for i, a := range args {
		buf, ok := a.Payload.(*backend.Buffer)
		if !ok {
			return nil, lucenterr.New(lucenterr.BackendError, prim.Name, "eager tracer payload is not a *backend.Buffer")
		}
		in[i] = buf
	}
	out, err := active.Impl(prim, in, params)
	if err != nil {
		return nil, err
	}
	outTracers := make([]*trace.Tracer, len(out))
	for i, buf := range out {
		outTracers[i] = trace.NewTracer(mt, buf.Aval(), buf)
	}
	return outTracers, nil
}

// FullLower is the identity: eager tracers never need unboxing, they
// already are the concrete value.
func (interp) FullLower(t *trace.Tracer) *trace.Tracer { return t }
