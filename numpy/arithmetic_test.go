// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/backend/cpu"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/eager"
	"github.com/lucent-ml/lucent/numpy"
)

func scalar(t *testing.T, v float64) *backend.Buffer {
	b, err := eager.Backend().FromScalar(v, aval.Float32)
	require.NoError(t, err)
	return b
}

func TestAddBroadcastsAndSumsElementwise(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{10, 20, 30}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Add, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, []float64{11, 22, 33}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestAddTransposeUnbroadcastsBothSides(t *testing.T) {
	eager.SetBackend(cpu.New())
	ct, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)

	aAval := aval.ShapedArray(aval.Shape{1, 2}, aval.Float32)
	bAval := aval.ShapedArray(aval.Shape{2, 2}, aval.Float32)
	cts, err := numpy.Add.Transpose(registry.Params{}, []any{ct}, []any{aAval, bAval})
	require.NoError(t, err)
	require.Len(t, cts, 2)
	// a was broadcast over axis 0, so its cotangent sums the two rows.
	require.Equal(t, []float64{4, 6}, cts[0].(*backend.Buffer).Data)
	require.Equal(t, []float64{1, 2, 3, 4}, cts[1].(*backend.Buffer).Data)
}

func TestSubComputesElementwiseDifference(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{5, 6, 7}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Sub, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, []float64{4, 4, 4}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestNegFlipsSign(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{1, -2, 3}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Neg, []any{a}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, []float64{-1, 2, -3}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestDivComputesElementwiseQuotient(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{10, 20, 30}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{2, 4, 5}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Div, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, []float64{5, 5, 6}, outs[0].Payload.(*backend.Buffer).Data)
}

// TestDivJVPMatchesTheQuotientRule exercises d(a/b) = da/b - a*db/b^2 at
// a=6, b=3, da=1, db=1: (1/3) - (6/9) = 1/3 - 2/3 = -1/3.
func TestDivJVPMatchesTheQuotientRule(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, tA := scalar(t, 6), scalar(t, 1)
	b, tB := scalar(t, 3), scalar(t, 1)

	outs, tangents, err := numpy.Div.JVP(registry.Params{}, []any{a, b}, []any{tA, tB})
	require.NoError(t, err)
	require.InDelta(t, 2, outs[0].(*backend.Buffer).Data[0], 1e-9)
	require.InDelta(t, -1.0/3.0, tangents[0].(*backend.Buffer).Data[0], 1e-9)
}

func TestSinAndCosJVPAreEachOthersDerivative(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, tx := scalar(t, 0), scalar(t, 1)

	sinOuts, sinTangents, err := numpy.Sin.JVP(registry.Params{}, []any{x}, []any{tx})
	require.NoError(t, err)
	require.InDelta(t, 0, sinOuts[0].(*backend.Buffer).Data[0], 1e-9)
	require.InDelta(t, 1, sinTangents[0].(*backend.Buffer).Data[0], 1e-9) // cos(0) = 1

	cosOuts, cosTangents, err := numpy.Cos.JVP(registry.Params{}, []any{x}, []any{tx})
	require.NoError(t, err)
	require.InDelta(t, 1, cosOuts[0].(*backend.Buffer).Data[0], 1e-9)
	require.InDelta(t, 0, cosTangents[0].(*backend.Buffer).Data[0], 1e-9) // -sin(0) = 0
}

func TestSumReducesAllAxesByDefault(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Sum, []any{x}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{}, outs[0].Aval().Shape)
	require.Equal(t, []float64{21}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestSumOverOneAxisKeepsTheOtherAxis(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Sum, []any{x}, registry.Params{"axes": []int{1}})
	require.NoError(t, err)
	require.Equal(t, []float64{6, 15}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestSumTransposeBroadcastsTheCotangentBackOut(t *testing.T) {
	eager.SetBackend(cpu.New())
	ct := scalar(t, 5)
	origAval := aval.ShapedArray(aval.Shape{3}, aval.Float32)

	cts, err := numpy.Sum.Transpose(registry.Params{}, []any{ct}, []any{origAval})
	require.NoError(t, err)
	require.Equal(t, []float64{5, 5, 5}, cts[0].(*backend.Buffer).Data)
}

func TestCompareProducesBoolOutputWithZeroTangent(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{1, 5, 3}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{2, 2, 3}, aval.Shape{3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Greater, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, aval.Bool, outs[0].Aval().DType)

	_, tangents, err := numpy.Greater.JVP(registry.Params{}, []any{a, b}, []any{a, b})
	require.NoError(t, err)
	require.True(t, tangents[0] != nil)
}
