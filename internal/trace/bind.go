// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Bind routes a primitive application through the interpreter stack.
//
//  1. Find the topmost relevant trace: the highest-level MainTrace
//     among the owners of any *Tracer in args, or the dynamic trace
//     override, whichever is higher; the reserved bottom eager trace
//     if neither is present.
//  2. Lift every argument to that trace — a bare value via Pure, a
//     tracer owned by a strictly lower trace via Lift, a tracer
//     already owned by the top trace passed through unchanged.
//  3. Call the top trace's ProcessPrimitive.
//  4. FullLower every result, so a trace never hands back a tracer
//     it owns once its caller only needed the value underneath.
func Bind(prim *registry.Primitive, args []any, params registry.Params) ([]*Tracer, error) {
	top := bottom
	for _, a := range args {
		if t, ok := a.(*Tracer); ok {
			if !t.Owner.live {
				return nil, lucenterr.New(lucenterr.LevelViolation, prim.Name, "tracer used after its owning trace was popped")
			}
			if t.Owner.Level > top.Level {
				top = t.Owner
			}
		}
	}
	if dynamicTraceP != nil && dynamicTraceP.Level > top.Level {
		top = dynamicTraceP
	}

	interp := interpreters[top.Kind]
	if interp == nil {
		return nil, lucenterr.New(lucenterr.BackendError, prim.Name, "no interpreter registered for trace kind "+top.Kind.String())
	}

	tracers := make([]*Tracer, len(args))
	for i, a := range args {
		if t, ok := a.(*Tracer); ok {
			if t.Owner == top {
				tracers[i] = t
			} else {
				tracers[i] = interp.Lift(top, t)
			}
		} else {
			tracers[i] = interp.Pure(top, a)
		}
	}

	outs, err := interp.ProcessPrimitive(top, prim, tracers, params)
	if err != nil {
		return nil, err
	}
	for i, o := range outs {
		outs[i] = interp.FullLower(o)
	}
	return outs, nil
}
