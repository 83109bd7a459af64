// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend defines the consumed interface between the eager
// trace (internal/trace/eager) and a concrete execution device
// (backend/cpu, backend/webgpu). It is the typed, jaxpr-flavored
// counterpart of the teacher's tensor.Backend interface: instead of
// one method per numpy algorithm, it exposes the hooks a trace
// needs to bottom out a computation.
package backend

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Buffer is a concrete, backend-owned array value: the thing a
// ConcreteArray's aval.Buffer field points at once eager execution has
// actually run a primitive. Every backend in this module stores
// elements as float64 regardless of the logical DType — these are
// reference implementations meant to exercise the tracing core end to
// end, not to deliver dtype-accurate numerics.
type Buffer struct {
	Shape aval.Shape
	DType aval.DType
	Data  []float64
}

// Aval returns the concrete abstract value this buffer instantiates.
func (b *Buffer) Aval() aval.Aval {
	return aval.ConcreteArray(b.Shape, b.DType, b)
}

// NewBuffer allocates a zero-filled buffer of the given shape and dtype.
func NewBuffer(shape aval.Shape, dtype aval.DType) *Buffer {
	return &Buffer{Shape: shape, DType: dtype, Data: make([]float64, shape.NumElements())}
}

// Completion is returned by BlockUntilReady; backends that execute
// synchronously (backend/cpu) return an already-satisfied completion.
type Completion interface {
	Wait() error
}

type readyCompletion struct{}

func (readyCompletion) Wait() error { return nil }

// Ready is the Completion every synchronous backend can return.
var Ready Completion = readyCompletion{}

// Backend is the interface the eager trace dispatches primitive
// applications through.
type Backend interface {
	// Name identifies the backend.
	Name() string

	// Impl executes prim against concrete buffers, the terminal step of
	// every call chain that bottoms out at the eager trace.
	Impl(prim *registry.Primitive, in []*Buffer, params registry.Params) ([]*Buffer, error)

	// FromScalar lifts a bare Go scalar into a rank-0 buffer.
	FromScalar(x float64, dtype aval.DType) (*Buffer, error)

	// FromTypedBuffer constructs a buffer from caller-owned row-major data.
	FromTypedBuffer(data []float64, shape aval.Shape, dtype aval.DType) (*Buffer, error)

	// BlockUntilReady waits for any asynchronous work that produced buf.
	BlockUntilReady(buf *Buffer) (Completion, error)
}
