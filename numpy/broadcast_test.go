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

func TestBroadcastExpandsLeadingAndSizeOneAxes(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3}, aval.Shape{1, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Broadcast, []any{x}, registry.Params{"shape": aval.Shape{2, 3}})
	require.NoError(t, err)
	require.Equal(t, aval.Shape{2, 3}, outs[0].Aval().Shape)
	require.Equal(t, []float64{1, 2, 3, 1, 2, 3}, outs[0].Payload.(*backend.Buffer).Data)
}

func TestBroadcastTransposeSumsBackDownToOriginalShape(t *testing.T) {
	eager.SetBackend(cpu.New())
	x, err := eager.Backend().FromTypedBuffer([]float64{1, 2, 3}, aval.Shape{1, 3}, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(numpy.Broadcast, []any{x}, registry.Params{"shape": aval.Shape{2, 3}})
	require.NoError(t, err)
	broadcasted := outs[0].Payload

	rule := numpy.Broadcast.Transpose
	require.NotNil(t, rule)
	cts, err := rule(registry.Params{"shape": aval.Shape{2, 3}}, []any{broadcasted}, []any{x.Aval()})
	require.NoError(t, err)
	require.Len(t, cts, 1)
	require.Equal(t, aval.Shape{1, 3}, cts[0].(*backend.Buffer).Shape)
	require.Equal(t, []float64{2, 4, 6}, cts[0].(*backend.Buffer).Data)
}
