// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lucent is the top-level transformation API: makeJaxpr, jit,
// jvp, vjp, vjpWithAux, linearize, grad, valueAndGrad, jacfwd, jacrev,
// vmap. Every function here is a thin pytree-flattening wrapper over
// the lower-level, flat-leaf-list primitives internal/trace's concrete
// trace packages already implement (jvpmode.Run, stage.MakeJaxpr,
// transpose.Transpose, batchmode.Run) — this package's own job is
// exactly the flatten/call/unflatten boilerplate, plus Jit's cache.
// There is no teacher analogue: born exposes its transforms as tensor
// methods (t.Backward()), not as composable higher-order functions
// over plain Go closures, so this file's shape is a fresh design
// following the same one-exported-function-per-concept doc-comment
// density the teacher uses for its own top-level API (e.g.
// tensor.MatMul, tensor.Conv2D).
package lucent

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/trace/eager"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
	"github.com/lucent-ml/lucent/internal/trace/stage"
	"github.com/lucent-ml/lucent/internal/trace/transpose"
	"github.com/lucent-ml/lucent/pytree"
)

// Fn is the canonical shape every transformation in this package
// consumes and produces: a single pytree in, a single pytree out.
// Multiple positional arguments are represented as a []any pytree;
// hasAux's (main, aux) pair is represented as a two-element []any.
type Fn func(x any) (any, error)

// Options configures a transformation's optional behavior: hasAux,
// argnums, holomorphic.
//
// Argnums accepts an int naming which positional argument (when x is
// a []any) to differentiate with respect to; every other positional
// argument is closed over as a fixed value. A fuller design would also
// allow argnums to be an int slice returning one gradient per named
// argument — not implemented here: differentiating with respect to
// several arguments at once is argument-list plumbing on top of the
// same single-argnum Vjp this package already provides, not a new
// capability of the tracing core.
//
// Holomorphic is accepted for interface compatibility but has no
// distinct behavior: this module's backends carry no complex dtype
// arithmetic, so there is nothing for it to change.
type Options struct {
	HasAux      bool
	Argnums     any // int, or nil for argnum 0
	Holomorphic bool
}

func resolveOptions(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

func resolveArgnum(o Options) int {
	if n, ok := o.Argnums.(int); ok {
		return n
	}
	return 0
}

// selectArg splits x into the argument being differentiated (at idx,
// when x is a []any) and the full positional argument list, so a
// caller can later reassemble a modified selection back into place.
func selectArg(x any, idx int) (selected any, args []any, wasSlice bool) {
	args, wasSlice = asArgs(x)
	if !wasSlice {
		return x, args, wasSlice
	}
	return args[idx], args, wasSlice
}

func reassembleArg(args []any, wasSlice bool, idx int, newVal any) any {
	if !wasSlice {
		return newVal
	}
	full := append([]any{}, args...)
	full[idx] = newVal
	return full
}

// SetDefaultBackend installs the device every eager (untraced or
// constant-folded) primitive application dispatches to.
func SetDefaultBackend(b backend.Backend) { eager.SetBackend(b) }

// MakeJaxpr implements makeJaxpr(f): trace f once over
// a pytree of example inputs, without executing it, and return the
// resulting closed jaxpr together with the treedef needed to
// interpret its flat leaves as f's actual output shape.
func MakeJaxpr(f Fn, example any) (*ir.ClosedJaxpr, *pytree.TreeDef, error) {
	leaves, treedefIn := pytree.Flatten(example)
	avals := make([]aval.Aval, len(leaves))
	for i, l := range leaves {
		avals[i] = avalOf(l).ToShaped()
	}

	var outTreedef *pytree.TreeDef
	g := func(in []any) ([]any, error) {
		tree, err := pytree.Unflatten(treedefIn, in)
		if err != nil {
			return nil, err
		}
		out, err := f(tree)
		if err != nil {
			return nil, err
		}
		outLeaves, td := pytree.Flatten(out)
		outTreedef = td
		return outLeaves, nil
	}
	cj, err := stage.MakeJaxpr(g, avals)
	if err != nil {
		return nil, nil, err
	}
	return cj, outTreedef, nil
}

// Jvp implements jvp(f, primal, tangent): run f under
// a fresh JVP trace with tangent attached to primal, and split the
// result back into (primalOut, tangentOut). primal and tangent must
// share the same pytree structure.
func Jvp(f Fn, primal, tangent any) (primalOut, tangentOut any, err error) {
	pLeaves, ptd := pytree.Flatten(primal)
	tLeaves, ttd := pytree.Flatten(tangent)
	if !pytree.StructureEqual(ptd, ttd) {
		return nil, nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "jvp", "primal and tangent have different pytree structure")
	}

	var outTreedef *pytree.TreeDef
	g := func(in []any) ([]any, error) {
		tree, err := pytree.Unflatten(ptd, in)
		if err != nil {
			return nil, err
		}
		out, err := f(tree)
		if err != nil {
			return nil, err
		}
		leaves, td := pytree.Flatten(out)
		outTreedef = td
		return leaves, nil
	}

	primalsOut, tangentsOut, err := jvpmode.Run(g, pLeaves, tLeaves)
	if err != nil {
		return nil, nil, err
	}
	materialized := make([]any, len(tangentsOut))
	for i, t := range tangentsOut {
		materialized[i] = materialize(t)
	}
	primalOut, err = pytree.Unflatten(outTreedef, primalsOut)
	if err != nil {
		return nil, nil, err
	}
	tangentOut, err = pytree.Unflatten(outTreedef, materialized)
	if err != nil {
		return nil, nil, err
	}
	return primalOut, tangentOut, nil
}

// Linearize implements the first half of vjp: run
// jvp-based linearization once to obtain (primalsOut, a jaxpr linear
// in fresh tangent inputs matching primal's leaves). Vjp composes this
// with Transpose; exposed separately because a caller who needs the
// linear jaxpr itself (e.g. to transpose it more than once) should not
// have to re-run f to get it.
func Linearize(f Fn, primal any) (primalOut any, cj *ir.ClosedJaxpr, outTreedef *pytree.TreeDef, err error) {
	pLeaves, ptd := pytree.Flatten(primal)
	avals := make([]aval.Aval, len(pLeaves))
	for i, l := range pLeaves {
		avals[i] = avalOf(l).ToShaped()
	}

	var primalsOutCaptured []any
	g := func(tangentIn []any) ([]any, error) {
		inner := func(in []any) ([]any, error) {
			tree, ierr := pytree.Unflatten(ptd, in)
			if ierr != nil {
				return nil, ierr
			}
			out, ierr := f(tree)
			if ierr != nil {
				return nil, ierr
			}
			leaves, td := pytree.Flatten(out)
			outTreedef = td
			return leaves, nil
		}
		pOut, tOut, jerr := jvpmode.Run(inner, pLeaves, tangentIn)
		if jerr != nil {
			return nil, jerr
		}
		primalsOutCaptured = pOut
		return tOut, nil
	}

	cj, err = stage.MakeJaxpr(g, avals)
	if err != nil {
		return nil, nil, nil, err
	}
	primalOut, err = pytree.Unflatten(outTreedef, primalsOutCaptured)
	if err != nil {
		return nil, nil, nil, err
	}
	return primalOut, cj, outTreedef, nil
}

// Vjp implements vjp(f, primal): linearize f at primal,
// and return (primalOut, backward) where backward(cotangent) runs
// Transpose over the linear jaxpr to produce the cotangent with
// respect to primal.
func Vjp(f Fn, primal any) (primalOut any, backward func(any) (any, error), err error) {
	primalOut, cj, outTreedef, err := Linearize(f, primal)
	if err != nil {
		return nil, nil, err
	}
	_, primalTreedef := pytree.Flatten(primal)

	backward = func(ct any) (any, error) {
		ctLeaves, ctTreedef := pytree.Flatten(ct)
		if !pytree.StructureEqual(ctTreedef, outTreedef) {
			return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "vjp", "cotangent structure does not match output structure")
		}
		inCts, terr := transpose.Transpose(cj, ctLeaves)
		if terr != nil {
			return nil, terr
		}
		materialized := make([]any, len(inCts))
		for i, c := range inCts {
			materialized[i] = materialize(c)
		}
		return pytree.Unflatten(primalTreedef, materialized)
	}
	return primalOut, backward, nil
}

// VjpWithAux implements the hasAux form of vjp: f must return a
// two-element []any{main, aux}. aux is traced but never differentiated
// — its cotangent is always the symbolic zero, seeded automatically so
// the caller's backward only ever supplies a cotangent shaped like
// main.
func VjpWithAux(f Fn, primal any) (mainOut, aux any, backward func(any) (any, error), err error) {
	wrapped := func(x any) (any, error) {
		out, ferr := f(x)
		if ferr != nil {
			return nil, ferr
		}
		pair, ok := out.([]any)
		if !ok || len(pair) != 2 {
			return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "vjpWithAux", "hasAux function must return []any{main, aux}")
		}
		return pair, nil
	}

	fullOut, cj, outTreedef, err := Linearize(wrapped, primal)
	if err != nil {
		return nil, nil, nil, err
	}
	pair := fullOut.([]any)
	mainOut, aux = pair[0], pair[1]
	_, primalTreedef := pytree.Flatten(primal)
	_, mainTreedef := pytree.Flatten(mainOut)

	backward = func(ctMain any) (any, error) {
		_, ctMainTreedef := pytree.Flatten(ctMain)
		if !pytree.StructureEqual(ctMainTreedef, mainTreedef) {
			return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "vjpWithAux", "cotangent structure does not match main output structure")
		}
		auxZero := zeroTreeLike(aux)
		fullCtLeaves, fullTreedef := pytree.Flatten([]any{ctMain, auxZero})
		if !pytree.StructureEqual(fullTreedef, outTreedef) {
			return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "vjpWithAux", "internal (main, aux) structure mismatch")
		}
		inCts, terr := transpose.Transpose(cj, fullCtLeaves)
		if terr != nil {
			return nil, terr
		}
		materialized := make([]any, len(inCts))
		for i, c := range inCts {
			materialized[i] = materialize(c)
		}
		return pytree.Unflatten(primalTreedef, materialized)
	}
	return mainOut, aux, backward, nil
}

// Grad implements grad(f): vjp(f) then backward(1.0),
// checking the (possibly hasAux-stripped) output is scalar.
func Grad(f Fn, opts ...Options) Fn {
	o := resolveOptions(opts)
	idx := resolveArgnum(o)

	return func(x any) (any, error) {
		primal, args, wasSlice := selectArg(x, idx)
		target := func(sel any) (any, error) {
			full := reassembleArg(args, wasSlice, idx, sel)
			out, ferr := f(full)
			if ferr != nil {
				return nil, ferr
			}
			if o.HasAux {
				pair, ok := out.([]any)
				if !ok || len(pair) != 2 {
					return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "grad", "hasAux function must return []any{main, aux}")
				}
				return pair[0], nil
			}
			return out, nil
		}

		primalOut, backward, err := Vjp(target, primal)
		if err != nil {
			return nil, err
		}
		if err := requireScalar("grad", primalOut); err != nil {
			return nil, err
		}
		return backward(scalarOne())
	}
}

// ValueAndGrad implements valueAndGrad(f): like Grad,
// but also returns the value f produced, as a two-element
// []any{value, grad} (three elements, []any{value, grad, aux}, when
// Options.HasAux is set).
func ValueAndGrad(f Fn, opts ...Options) Fn {
	o := resolveOptions(opts)
	idx := resolveArgnum(o)

	return func(x any) (any, error) {
		primal, args, wasSlice := selectArg(x, idx)
		var auxOut any
		target := func(sel any) (any, error) {
			full := reassembleArg(args, wasSlice, idx, sel)
			out, ferr := f(full)
			if ferr != nil {
				return nil, ferr
			}
			if o.HasAux {
				pair, ok := out.([]any)
				if !ok || len(pair) != 2 {
					return nil, lucenterr.New(lucenterr.PytreeStructureMismatch, "valueAndGrad", "hasAux function must return []any{main, aux}")
				}
				auxOut = pair[1]
				return pair[0], nil
			}
			return out, nil
		}

		primalOut, backward, err := Vjp(target, primal)
		if err != nil {
			return nil, err
		}
		if err := requireScalar("valueAndGrad", primalOut); err != nil {
			return nil, err
		}
		grad, err := backward(scalarOne())
		if err != nil {
			return nil, err
		}
		if o.HasAux {
			return []any{primalOut, grad, auxOut}, nil
		}
		return []any{primalOut, grad}, nil
	}
}

func requireScalar(who string, out any) error {
	leaves, _ := pytree.Flatten(out)
	if len(leaves) != 1 || avalOf(leaves[0]).Rank() != 0 {
		return lucenterr.New(lucenterr.OutputNotScalar, who, "function must return a scalar-valued output")
	}
	return nil
}
