// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package transpose implements transpose(jaxpr, cotangentOutputs) ->
// cotangentInputs: a single backward pass over a linear jaxpr's
// equations, accumulating cotangents into an environment keyed by
// binder. Unlike the other trace kinds (C5–C6, C9) this is not tracer
// dispatch through internal/trace's bind/Interpreter machinery — it is
// a direct walk over an already-built jaxpr. Directly
// grounded on the teacher's GradientTape.Backward: its
// `grads map[*tensor.RawTensor]*tensor.RawTensor` reverse
// cotangent-accumulation map generalizes here to `map[int64]any`
// keyed by ir.Var identity, and dead/never-visited binders fall back
// to a zero cotangent the same way Backward zero-fills a parameter
// that never received a gradient contribution.
package transpose

import (
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Transpose runs the backward pass over cj, a jaxpr
// linear in its InVars (the "tangent inputs"), seeded with
// cotangentOuts (one per OutAtoms entry, nil meaning "no cotangent
// flows from this output"). It returns one cotangent per InVars
// entry, jvpmode.Zero where no equation ever contributed to it.
//
// Accumulating two cotangent contributions for the same binder goes
// through the globally registered "add" primitive (registry.MustLookup),
// not a locally constructed one — transpose has no numeric kernel of
// its own, and by the time any real vjp/grad call reaches here,
// numpy's add.go has already registered it.
func Transpose(cj *ir.ClosedJaxpr, cotangentOuts []any) ([]any, error) {
	env := map[int64]any{}

	constVal := map[int64]any{}
	for i, v := range cj.Jaxpr.ConstVars {
		constVal[v.ID()] = cj.Consts[i]
	}
	resolve := func(a ir.Atom) any {
		if !a.IsVar() {
			return a.Lit
		}
		return constVal[a.V.ID()] // nil for a tangent var; rules must not need it
	}
	// isLinear reports whether atom a is genuinely the linear operand
	// of the equation it appears in. A primitive's LinearInputs names
	// the indices that *can* be linear (e.g. mul declares both, since
	// either side may carry the tangent depending on how linearize
	// built the equation); which one actually is, for this particular
	// equation, is decided here by whether the var was captured as a
	// constant, not by the static declaration alone.
	isLinear := func(a ir.Atom) bool {
		if !a.IsVar() {
			return false
		}
		_, isConst := constVal[a.V.ID()]
		return !isConst
	}

	for i, a := range cj.Jaxpr.OutAtoms {
		if !a.IsVar() {
			continue // a literal output carries no cotangent anywhere
		}
		if err := accumulate(env, a.V, cotangentOuts[i]); err != nil {
			return nil, err
		}
	}

	for i := len(cj.Jaxpr.Eqns) - 1; i >= 0; i-- {
		eqn := cj.Jaxpr.Eqns[i]
		if len(eqn.Primitive.LinearInputs) == 0 {
			continue // e.g. comparisons, integer ops: never linear, so nothing to transpose
		}

		outCts := make([]any, len(eqn.OutVars))
		anyCt := false
		for j, ov := range eqn.OutVars {
			ct, ok := env[ov.ID()]
			if ok && !jvpmode.IsZero(ct) {
				anyCt = true
			}
			outCts[j] = ct
		}
		if !anyCt {
			continue // nothing downstream needed this equation's output
		}

		// in carries, per operand: the resolved concrete value for a
		// non-linear (constant) operand, or just its Aval for a linear
		// (tangent) one — a rule un-broadcasting a cotangent (add, mul
		// by a constant) needs the original pre-broadcast shape even
		// though the operand itself has no concrete value yet.
		in := make([]any, len(eqn.InVars))
		for j, a := range eqn.InVars {
			if eqn.Primitive.IsLinearIn(j) && isLinear(a) {
				in[j] = a.Aval()
			} else {
				in[j] = resolve(a)
			}
		}

		if eqn.Primitive.Transpose == nil {
			return nil, lucenterr.New(lucenterr.MissingRule, eqn.Primitive.Name, "no transpose rule on a primitive declared linear in some input")
		}
		inCts, err := eqn.Primitive.Transpose(eqn.Params, outCts, in)
		if err != nil {
			return nil, err
		}
		for _, idx := range eqn.Primitive.LinearInputs {
			a := eqn.InVars[idx]
			if !isLinear(a) {
				continue // this equation's instance of the operand is a captured constant
			}
			if err := accumulate(env, a.V, inCts[idx]); err != nil {
				return nil, err
			}
		}
	}

	out := make([]any, len(cj.Jaxpr.InVars))
	for i, v := range cj.Jaxpr.InVars {
		ct, ok := env[v.ID()]
		if !ok {
			ct = jvpmode.Zero{Aval: v.Aval}
		}
		out[i] = ct
	}
	return out, nil
}

// accumulate adds ct into env's running cotangent for v, treating a
// missing entry or an explicit jvpmode.Zero as the additive identity.
func accumulate(env map[int64]any, v *ir.Var, ct any) error {
	if ct == nil {
		ct = jvpmode.Zero{Aval: v.Aval}
	}
	existing, ok := env[v.ID()]
	if !ok || jvpmode.IsZero(existing) {
		env[v.ID()] = ct
		return nil
	}
	if jvpmode.IsZero(ct) {
		return nil
	}
	addPrim := registry.MustLookup("add")
	outs, err := trace.Bind(addPrim, []any{existing, ct}, registry.Params{})
	if err != nil {
		return err
	}
	env[v.ID()] = outs[0].Payload
	return nil
}
