// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package stage

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/trace"
)

// MakeJaxpr implements makeJaxpr(f): trace f once over
// formal inputs of the given avals, bottoming every primitive it
// applies out into either a recorded JaxprEqn (operands depend on a
// formal input) or a constant-folded value (operands are all known
// concretely, per C5 — requires a backend already installed via
// lucent.SetDefaultBackend). f receives and returns flat leaf lists;
// pytree flattening is the caller's job (lucent.MakeJaxpr).
func MakeJaxpr(f func(in []any) ([]any, error), avals []aval.Aval) (*ir.ClosedJaxpr, error) {
	mt, pop := trace.Push(trace.Jaxpr, &builder{})
	defer pop()
	b := mt.Global.(*builder)

	inVars := make([]*ir.Var, len(avals))
	in := make([]any, len(avals))
	for i, av := range avals {
		shaped := av.ToShaped()
		v := ir.NewVar(shaped)
		inVars[i] = v
		in[i] = trace.NewTracer(mt, shaped, &node{atom: ir.VarAtom(v), aval: shaped, materialized: true})
	}

	outs, err := f(in)
	if err != nil {
		return nil, err
	}

	outAtoms := make([]ir.Atom, len(outs))
	for i, o := range outs {
		var n *node
		if t, ok := o.(*trace.Tracer); ok && t.Owner == mt {
			n = t.Payload.(*node)
		} else {
			av := avalOf(o)
			n = &node{val: o, aval: av}
		}
		outAtoms[i] = atomize(b, n)
	}

	j := &ir.Jaxpr{
		ConstVars: b.constVars,
		InVars:    inVars,
		Eqns:      b.eqns,
		OutAtoms:  outAtoms,
	}
	return &ir.ClosedJaxpr{Jaxpr: j, Consts: b.consts}, nil
}
