// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/lucent"
	"github.com/lucent-ml/lucent/pytree"
)

// Staging a function with no formal inputs at all never touches the
// jaxpr trace's ProcessPrimitive — it constant-folds straight through
// to a concrete scalar, which should still print as a bare literal
// with nothing captured as a constant.
func TestMakeJaxprOfAllConcreteClosureIsALiteralWithNoConsts(t *testing.T) {
	activeBackend()

	f := func(any) (any, error) { return mul(2.0, 2.0) }
	cj, _, err := lucent.MakeJaxpr(f, []any{})
	require.NoError(t, err)

	require.Empty(t, cj.Consts)
	require.Empty(t, cj.Jaxpr.Eqns)
	require.Equal(t, "{ lambda . ( 4 ) }", ir.Pretty(cj))
}

// Staging add-then-mul over an array input produces the expected
// two-equation jaxpr, binder names and all.
func TestMakeJaxprStagesAddThenMulOverAnArrayInput(t *testing.T) {
	example := backend.NewBuffer(aval.Shape{2, 3}, aval.Float32)
	// A float32-typed scalar, not a bare Go float64 literal: avalOf
	// treats every bare float64 as logical dtype float64 (this
	// codebase has no JAX-style weak typing for literals), which would
	// promote the add's output to f64 and break the expected f32[2,3]
	// result. Constructing "2" as an f32 buffer keeps the dtype that x
	// already carries.
	two, err := activeBackend().FromScalar(2, aval.Float32)
	require.NoError(t, err)

	f := func(x any) (any, error) {
		sum, err := add(x, two)
		if err != nil {
			return nil, err
		}
		return mul(sum, x)
	}
	cj, _, err := lucent.MakeJaxpr(f, example)
	require.NoError(t, err)

	want := "{ lambda a:f32[2,3] .\n  let b:f32[2,3] = add a 2\n      c:f32[2,3] = mul b a\n  in ( c ) }"
	require.Equal(t, want, ir.Pretty(cj))
	require.Empty(t, cj.Consts)
}

// grad(x => sin(cos(x))) and its second derivative match known
// constants at x=3.
func TestGradOfSinCosMatchesKnownConstants(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		c, err := cos(x)
		if err != nil {
			return nil, err
		}
		return sin(c)
	}

	g := lucent.Grad(f)
	out, err := g(3.0)
	require.NoError(t, err)
	require.InDelta(t, -0.077432003, toFloat(out), 1e-5)

	g2 := lucent.Grad(lucent.Grad(f))
	out2, err := g2(3.0)
	require.NoError(t, err)
	require.InDelta(t, 0.559854311, toFloat(out2), 1e-5)
}

// vmap over a reduction matches per-row and per-column reductions
// depending on which axis is mapped.
func TestVmapOfSumMatchesPerRowAndPerColumnReductions(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) { return sum(x) }
	xs := matrix(2, 3, []float64{1, 2, 3, 4, 5, 6})

	byRow := lucent.Vmap(f, 0, 0)
	out, err := byRow(xs)
	require.NoError(t, err)
	require.Equal(t, []float64{6, 15}, toFloats(out))

	byCol := lucent.Vmap(f, 1, 0)
	out2, err := byCol(xs)
	require.NoError(t, err)
	require.Equal(t, []float64{5, 7, 9}, toFloats(out2))
}

// jit is transparent to both direct calls and to jvp/grad composed
// around it.
func TestJitOfSquareComposesWithJvpAndGrad(t *testing.T) {
	activeBackend()

	square := func(x any) (any, error) { return mul(x, x) }
	jitted := lucent.Jit(square)

	out, err := jitted(3.0)
	require.NoError(t, err)
	require.InDelta(t, 9, toFloat(out), 1e-9)

	primalOut, tangentOut, err := lucent.Jvp(jitted, 3.0, 1.0)
	require.NoError(t, err)
	require.InDelta(t, 9, toFloat(primalOut), 1e-9)
	require.InDelta(t, 6, toFloat(tangentOut), 1e-9)

	gradSquare := lucent.Grad(jitted)
	gradOut, err := gradSquare(3.0)
	require.NoError(t, err)
	require.InDelta(t, 6, toFloat(gradOut), 1e-9)
}

// vjpWithAux returns the primal, the untouched auxiliary output, and a
// backward pass that only ever differentiates through the primal.
func TestVjpWithAuxReturnsPrimalAuxAndBackwardPass(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		s, err := sum(x)
		if err != nil {
			return nil, err
		}
		doubled, err := mul(x, 2.0)
		if err != nil {
			return nil, err
		}
		return []any{s, doubled}, nil
	}

	xs := vector([]float64{1, 2, 3})
	mainOut, aux, backward, err := lucent.VjpWithAux(f, xs)
	require.NoError(t, err)
	require.InDelta(t, 6, toFloat(mainOut), 1e-9)
	require.Equal(t, []float64{2, 4, 6}, toFloats(aux))

	grad, err := backward(1.0)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1, 1}, toFloats(grad))
}

// A jit wrapping another jit evaluates exactly as the unjitted
// function would.
func TestFlattenIsSemanticsPreservingForJitOfJit(t *testing.T) {
	activeBackend()

	square := func(x any) (any, error) { return mul(x, x) }
	innerJit := lucent.Jit(square)
	outerJit := lucent.Jit(innerJit)

	out, err := outerJit(5.0)
	require.NoError(t, err)
	require.InDelta(t, 25, toFloat(out), 1e-9)
}

// jvp's primal output always matches a direct call to the function.
func TestJvpPrimalOutputMatchesDirectCall(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		c, err := cos(x)
		if err != nil {
			return nil, err
		}
		return sin(c)
	}

	direct, err := f(1.5)
	require.NoError(t, err)

	primalOut, _, err := lucent.Jvp(f, 1.5, 1.0)
	require.NoError(t, err)
	require.InDelta(t, toFloat(direct), toFloat(primalOut), 1e-9)
}

// vjp's backward pass and jvp's tangent agree on the derivative at a
// unit tangent/cotangent, the transpose-correctness check reduced to
// its simplest case.
func TestVjpAndJvpAgreeOnTheDerivative(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		c, err := cos(x)
		if err != nil {
			return nil, err
		}
		return sin(c)
	}

	_, tangentOut, err := lucent.Jvp(f, 2.0, 1.0)
	require.NoError(t, err)

	_, backward, err := lucent.Vjp(f, 2.0)
	require.NoError(t, err)
	grad, err := backward(1.0)
	require.NoError(t, err)

	require.InDelta(t, toFloat(tangentOut), toFloat(grad), 1e-9)
}

// grad matches central finite differences to the expected order of
// accuracy.
func TestGradMatchesCentralFiniteDifferences(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		xx, err := mul(x, x)
		if err != nil {
			return nil, err
		}
		return mul(xx, x) // x^3, derivative 3x^2
	}

	grad := lucent.Grad(f)
	got, err := grad(4.0)
	require.NoError(t, err)
	require.InDelta(t, 48, toFloat(got), 1e-9)

	const eps = 1e-4
	plus, err := f(4.0 + eps)
	require.NoError(t, err)
	minus, err := f(4.0 - eps)
	require.NoError(t, err)
	finiteDiff := (toFloat(plus) - toFloat(minus)) / (2 * eps)
	require.InDelta(t, finiteDiff, toFloat(got), 1e-3)
}

// jit matches a direct call and is idempotent under repeated wrapping.
func TestJitEqualsDirectCallAndIsIdempotent(t *testing.T) {
	activeBackend()

	f := func(x any) (any, error) {
		c, err := cos(x)
		if err != nil {
			return nil, err
		}
		return sin(c)
	}
	direct, err := f(0.7)
	require.NoError(t, err)

	jitted := lucent.Jit(f)
	out, err := jitted(0.7)
	require.NoError(t, err)
	require.InDelta(t, toFloat(direct), toFloat(out), 1e-9)

	doubleJitted := lucent.Jit(lucent.Jit(f))
	out2, err := doubleJitted(0.7)
	require.NoError(t, err)
	require.InDelta(t, toFloat(out), toFloat(out2), 1e-9)
}

// vmap over a plain elementwise function matches applying the
// function to each row independently and restacking the results.
func TestVmapOfSinMatchesPerRowApplication(t *testing.T) {
	activeBackend()

	xs := matrix(2, 2, []float64{0, 1.5707963267948966, 3.141592653589793, 0})
	out, err := lucent.Vmap(sin, 0, 0)(xs)
	require.NoError(t, err)

	row0, err := sin(vector([]float64{0, 1.5707963267948966}))
	require.NoError(t, err)
	row1, err := sin(vector([]float64{3.141592653589793, 0}))
	require.NoError(t, err)

	got := toFloats(out)
	require.InDeltaSlice(t, append(toFloats(row0), toFloats(row1)...), got, 1e-9)
}

// A map-shaped pytree round-trips through flatten/unflatten unchanged.
func TestPytreeRoundTripsThroughFlattenAndUnflatten(t *testing.T) {
	tree := map[string]any{"w": 2.0, "b": 1.0}
	leaves, def := pytree.Flatten(tree)
	got, err := pytree.Unflatten(def, leaves)
	require.NoError(t, err)
	require.Equal(t, tree, got)
}

// Pretty-printing a jaxpr is a deterministic function of its
// structure: staging the same function over the same abstract input
// twice produces byte-identical text.
func TestPrettyIsDeterministicAcrossRepeatedStaging(t *testing.T) {
	example := backend.NewBuffer(aval.Shape{}, aval.Float32)
	f := func(x any) (any, error) {
		c, err := cos(x)
		if err != nil {
			return nil, err
		}
		return sin(c)
	}

	cj1, _, err := lucent.MakeJaxpr(f, example)
	require.NoError(t, err)
	cj2, _, err := lucent.MakeJaxpr(f, example)
	require.NoError(t, err)

	require.Equal(t, ir.Pretty(cj1), ir.Pretty(cj2))
}

// makeJaxpr produces no captured constants when the staged function
// closes over no arrays outside its formal inputs, even across a
// multi-equation body.
func TestMakeJaxprHasNoConstsWhenNothingIsClosedOver(t *testing.T) {
	example := backend.NewBuffer(aval.Shape{}, aval.Float32)
	f := func(x any) (any, error) {
		s, err := sin(x)
		if err != nil {
			return nil, err
		}
		return cos(s)
	}
	cj, _, err := lucent.MakeJaxpr(f, example)
	require.NoError(t, err)
	require.Empty(t, cj.Consts)
}
