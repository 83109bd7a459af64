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

func TestTransposeDefaultReversesAxes(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Transpose, []any{x}, registry.Params{})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{3, 2}, outs[0].Aval().Shape)
	require.Equal(t, []float64{1, 4, 2, 5, 3, 6}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestTransposeIsItsOwnAdjointUnderInversePermutation(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Transpose, []any{x}, registry.Params{"axes": []int{1, 0}})
	require.NoError(t, err)
	transposed := outs[0].Payload

	back, err := trace.Bind(numpy.Transpose, []any{transposed}, registry.Params{"axes": []int{1, 0}})
	require.NoError(t, err)
	require.Equal(t, x.Data, back[0].Payload.(*backend.Buffer).Data)
}
