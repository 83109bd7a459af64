// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package eager_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/backend/cpu"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/eager"
)

func TestEagerAddDispatchesToBackend(t *testing.T) {
	eager.SetBackend(cpu.New())

	addPrim := &registry.Primitive{Name: "add", NumIn: 2}
	a, err := eager.Backend().FromScalar(2, aval.Float32)
	require.NoError(t, err)
	b, err := eager.Backend().FromScalar(3, aval.Float32)
	require.NoError(t, err)

	outs, err := trace.Bind(addPrim, []any{a, b}, registry.Params{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Equal(t, aval.Concrete, outs[0].Aval().Level)
	require.InDelta(t, 5, outs[0].Payload.(*backend.Buffer).Data[0], 1e-9)
}
