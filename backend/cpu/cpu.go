// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu implements backend.Backend in pure Go. It is the
// reference device every traced computation can run against without
// any native dependency, grounded file-for-file on
// the teacher's internal/backend/cpu package (backend.go, math.go,
// broadcast_helpers.go, reduce.go, matmul.go) but simplified from the
// teacher's generic, refcounted RawTensor down to a single
// backend.Buffer shape, since dtype-accurate in-place tensor algebra
// is out of scope here — this backend only has to execute the core
// primitive set correctly.
package cpu

import (
	"fmt"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Backend is the CPU implementation of backend.Backend.
type Backend struct{}

var _ backend.Backend = (*Backend)(nil)

// New creates a CPU backend. There is no device state to set up: every
// kernel below runs synchronously on the calling goroutine.
func New() *Backend {
	return &Backend{}
}

// Name returns the backend name.
func (b *Backend) Name() string { return "cpu" }

// FromScalar lifts a bare Go scalar into a rank-0 buffer.
func (b *Backend) FromScalar(x float64, dtype aval.DType) (*backend.Buffer, error) {
	return &backend.Buffer{Shape: aval.Shape{}, DType: dtype, Data: []float64{x}}, nil
}

// FromTypedBuffer wraps caller-owned row-major data without copying.
func (b *Backend) FromTypedBuffer(data []float64, shape aval.Shape, dtype aval.DType) (*backend.Buffer, error) {
	if shape.NumElements() != len(data) {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "", fmt.Sprintf("buffer has %d elements, shape %s wants %d", len(data), shape, shape.NumElements()))
	}
	return &backend.Buffer{Shape: shape.Clone(), DType: dtype, Data: data}, nil
}

// BlockUntilReady is a no-op: every kernel below already ran to
// completion by the time Impl returns.
func (b *Backend) BlockUntilReady(buf *backend.Buffer) (backend.Completion, error) {
	return backend.Ready, nil
}

type kernel func(in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error)

var kernels = map[string]kernel{}

func register(name string, k kernel) {
	kernels[name] = k
}

// Impl dispatches prim to its kernel. A primitive with no CPU kernel
// surfaces as lucenterr.MissingRule, the same error a trace would
// raise for an unregistered transformation rule.
func (b *Backend) Impl(prim *registry.Primitive, in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error) {
	k, ok := kernels[prim.Name]
	if !ok {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "backend/cpu has no kernel for this primitive")
	}
	out, err := k(in, params)
	if err != nil {
		if _, isLucent := err.(*lucenterr.Error); isLucent {
			return nil, err
		}
		return nil, lucenterr.Wrap(prim.Name, err)
	}
	return out, nil
}
