// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import (
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/trace"
)

// evalClosedJaxprAny interprets cj against concrete or tracer leaves
// by walking its equations in program order and re-binding each one
// through whichever trace is currently topmost — the same generic
// role stage.MakeJaxpr's builder plays in reverse. Every trace kind's
// Bind uniformly returns []*Tracer and picks its topmost trace purely
// from the levels of the *Tracer arguments a given call actually
// carries (internal/trace/bind.go), so this one interpreter serves
// both Jit's true-top-level dispatch (in, out are concrete buffers,
// bottoming out at the eager trace) and its JVP/Batch inlining rules
// (in, out are tracers of whichever trace pushed them).
func evalClosedJaxprAny(cj *ir.ClosedJaxpr, in []any) ([]any, error) {
	env := map[int64]any{}
	for i, v := range cj.Jaxpr.InVars {
		env[v.ID()] = in[i]
	}
	for i, v := range cj.Jaxpr.ConstVars {
		env[v.ID()] = cj.Consts[i]
	}

	resolve := func(a ir.Atom) any {
		if !a.IsVar() {
			return a.Lit
		}
		return env[a.V.ID()]
	}

	for _, eqn := range cj.Jaxpr.Eqns {
		args := make([]any, len(eqn.InVars))
		for i, a := range eqn.InVars {
			args[i] = resolve(a)
		}
		outs, err := trace.Bind(eqn.Primitive, args, eqn.Params)
		if err != nil {
			return nil, err
		}
		for i, v := range eqn.OutVars {
			env[v.ID()] = outs[i].Payload
		}
	}

	out := make([]any, len(cj.Jaxpr.OutAtoms))
	for i, a := range cj.Jaxpr.OutAtoms {
		out[i] = resolve(a)
	}
	return out, nil
}
