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

func TestMatmulComputesProduct(t *testing.T) {
	eager.SetBackend(cpu.New())
	// A = [[1,2],[3,4]], B = [[5,6],[7,8]] -> A@B = [[19,22],[43,50]]
	a, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{5, 6, 7, 8}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Matmul, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{2, 2}, outs[0].Aval().Shape)
	require.Equal(t, []float64{19, 22, 43, 50}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestMatmulRejectsInnerDimensionMismatch(t *testing.T) {
	eager.SetBackend(cpu.New())
	a, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)

	_, err = trace.Bind(numpy.Matmul, []any{a, b}, registry.Params{})
	require.Error(t, err)
}

// TestMatmulTransposeDistributesOverTheConstantSide exercises
// matmulTranspose directly through the registered Transpose rule: when
// A is the linear side and B a constant, d(A@B)/dA's adjoint is
// ct @ B^T.
func TestMatmulTransposeDistributesOverTheConstantSide(t *testing.T) {
	eager.SetBackend(cpu.New())
	b, err := eager.Backend().FromTypedBuffer([]float64{5, 6, 7, 8}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)
	ct, err := eager.Backend().FromTypedBuffer([]float64{1, 0, 0, 1}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)

	aAval := aval.ShapedArray(aval.Shape{2, 2}, aval.Float32)
	rule := numpy.Matmul.Transpose
	require.NotNil(t, rule)
	cts, err := rule(registry.Params{}, []any{ct}, []any{aAval, b})
	require.NoError(t, err)
	require.Len(t, cts, 2)
	require.NotNil(t, cts[0])
	require.Nil(t, cts[1]) // B was constant: no cotangent contribution for it
	require.Equal(t, aval.Shape{2, 2}, cts[0].(*backend.Buffer).Shape)
}
