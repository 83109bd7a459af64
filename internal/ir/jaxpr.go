// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ir

import "github.com/lucent-ml/lucent/internal/registry"

// JaxprEqn is one IR statement: outputs, primitive, inputs, params.
// Params may hold a nested *ClosedJaxpr for higher-order primitives
// such as jit.
type JaxprEqn struct {
	OutVars   []*Var
	Primitive *registry.Primitive
	InVars    []Atom
	Params    registry.Params
}

// Jaxpr is the typed IR program: constants, inputs,
// equations, outputs. Invariants (checked by the trace that builds it,
// not re-validated here):
//
//	(i)   every use of a binder is preceded by its definition;
//	(ii)  dead binders are permitted;
//	(iii) OutAtoms are binders or literal constants;
//	(iv)  each equation's output Avals match its primitive's abstractEval.
type Jaxpr struct {
	ConstVars []*Var
	InVars    []*Var
	Eqns      []*JaxprEqn
	OutAtoms  []Atom
}

// ClosedJaxpr pairs a Jaxpr with the concrete constants captured at
// trace time, one per ConstVars entry.
type ClosedJaxpr struct {
	Jaxpr  *Jaxpr
	Consts []any
}

// InVarAvals returns the Avals of the jaxpr's (non-const) inputs, the
// shape signature a jit cache key is built from.
func (j *Jaxpr) InVarAvals() []any {
	out := make([]any, len(j.InVars))
	for i, v := range j.InVars {
		out[i] = v.Aval
	}
	return out
}

// renameEnv substitutes an inlined sub-jaxpr's binders for either the
// caller's actual operand atom (for its consts/inputs) or a freshly
// α-renamed binder (for its equations' own outputs).
type renameEnv map[int64]Atom

func (env renameEnv) resolve(a Atom) Atom {
	if !a.IsVar() {
		return a
	}
	if r, ok := env[a.V.ID()]; ok {
		return r
	}
	return a
}

// Flatten inlines every "jit" equation in cj by substituting its
// nested closed jaxpr's equations in place, α-renaming the nested
// jaxpr's binders to fresh Vars so identities stay unique across the
// merge. Equations that are not "jit" pass through
// unchanged. The result is semantics-preserving: eval(J, x) == eval(Flatten(J), x).
func Flatten(cj *ClosedJaxpr) *ClosedJaxpr {
	out := &Jaxpr{
		ConstVars: cj.Jaxpr.ConstVars,
		InVars:    cj.Jaxpr.InVars,
	}
	consts := append([]any{}, cj.Consts...)

	for _, eqn := range cj.Jaxpr.Eqns {
		if eqn.Primitive.Name != "jit" {
			out.Eqns = append(out.Eqns, eqn)
			continue
		}
		inner := eqn.Params["jaxpr"].(*ClosedJaxpr)
		flatInner := Flatten(inner) // inline nested jits recursively first

		env := renameEnv{}
		for i, cv := range flatInner.Jaxpr.ConstVars {
			env[cv.ID()] = LitAtom(flatInner.Consts[i], cv.Aval.DType)
		}
		for i, iv := range flatInner.Jaxpr.InVars {
			env[iv.ID()] = eqn.InVars[i]
		}

		for _, innerEqn := range flatInner.Jaxpr.Eqns {
			renamedIns := make([]Atom, len(innerEqn.InVars))
			for i, a := range innerEqn.InVars {
				renamedIns[i] = env.resolve(a)
			}
			freshOuts := make([]*Var, len(innerEqn.OutVars))
			for i, ov := range innerEqn.OutVars {
				fresh := NewVar(ov.Aval)
				env[ov.ID()] = VarAtom(fresh)
				freshOuts[i] = fresh
			}
			out.Eqns = append(out.Eqns, &JaxprEqn{
				OutVars:   freshOuts,
				Primitive: innerEqn.Primitive,
				InVars:    renamedIns,
				Params:    innerEqn.Params,
			})
		}

		// Alias this equation's own out vars to the resolved inner
		// outputs with an identity "copy", so any outer equation that
		// already holds a pointer to eqn.OutVars[i] keeps seeing a
		// defining equation for it.
		for i, outAtom := range flatInner.Jaxpr.OutAtoms {
			out.Eqns = append(out.Eqns, &JaxprEqn{
				OutVars:   []*Var{eqn.OutVars[i]},
				Primitive: registry.MustLookup("copy"),
				InVars:    []Atom{env.resolve(outAtom)},
			})
		}
	}

	out.OutAtoms = cj.Jaxpr.OutAtoms
	return &ClosedJaxpr{Jaxpr: out, Consts: consts}
}
