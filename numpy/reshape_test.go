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
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
	"github.com/lucent-ml/lucent/numpy"
)

func TestReshapeMovesNoData(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Reshape, []any{x}, registry.Params{"shape": aval.Shape{3, 2}})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{3, 2}, outs[0].Aval().Shape)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestReshapeRejectsElementCountMismatch(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4}, aval.Shape{2, 2}, aval.Float32)
	require.NoError(t, err)

	_, err = trace.Bind(numpy.Reshape, []any{x}, registry.Params{"shape": aval.Shape{3, 2}})
	require.Error(t, err)
}

func TestReshapeJVPReshapesTangentIdentically(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3, 4, 5, 6}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)
	tx, err := eager.Backend().FromTypedBuffer([]float64{1, 1, 1, 1, 1, 1}, aval.Shape{2, 3}, aval.Float32)
	require.NoError(t, err)

	f := func(in []any) ([]any, error) {
		outs, err := trace.Bind(numpy.Reshape, []any{in[0]}, registry.Params{"shape": aval.Shape{3, 2}})
		if err != nil {
			return nil, err
		}
		return []any{outs[0].Payload}, nil
	}
	_, tangentsOut, err := jvpmode.Run(f, []any{x}, []any{tx})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{3, 2}, jvpmode.AvalOf(tangentsOut[0]).Shape)
}
