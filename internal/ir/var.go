// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ir implements the typed SSA-style intermediate representation:
// binders (Var), equations, jaxprs, and closed jaxprs,
// plus the canonical pretty-printer. There is no teacher
// analogue to generalize here — born never stages a graph, it only
// records a flat tape — so this package is a fresh design written in
// the teacher's documentation style (one doc comment per exported type,
// stating invariants rather than rationale).
package ir

import (
	"sync/atomic"

	"github.com/lucent-ml/lucent/internal/aval"
)

var nextVarID int64

// Var is an SSA binder: a program-unique identity with an attached
// abstract value. Two distinct Vars are never equal even
// if their Avals coincide; identity, not value, is what equations
// reference.
type Var struct {
	id   int64
	Aval aval.Aval
}

// NewVar allocates a fresh binder typed by av.
func NewVar(av aval.Aval) *Var {
	return &Var{id: atomic.AddInt64(&nextVarID, 1), Aval: av}
}

// ID returns the binder's program-unique identity. It has no bearing
// on the printed name (pretty.go assigns those canonically, in
// definition order) — it exists only so two Vars can be compared cheaply.
func (v *Var) ID() int64 { return v.id }

// Atom is an equation operand or jaxpr output: either a binder
// reference or an inline literal constant.
type Atom struct {
	V   *Var // nil when this atom is a literal
	Lit any  // valid only when V == nil
	// LitDType records the dtype a literal should be treated as during
	// abstractEval / promotion; literals default to a 0-rank shape.
	LitDType aval.DType
}

// VarAtom wraps a binder reference as an Atom.
func VarAtom(v *Var) Atom { return Atom{V: v} }

// LitAtom wraps a literal constant as an Atom.
func LitAtom(value any, dtype aval.DType) Atom { return Atom{Lit: value, LitDType: dtype} }

// IsVar reports whether the atom references a binder rather than a literal.
func (a Atom) IsVar() bool { return a.V != nil }

// Aval returns the atom's abstract value: the binder's Aval, or a
// scalar Aval of LitDType for a literal.
func (a Atom) Aval() aval.Aval {
	if a.V != nil {
		return a.V.Aval
	}
	return aval.ShapedArray(aval.Shape{}, a.LitDType)
}
