// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent_test

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/backend/cpu"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/eager"
	"github.com/lucent-ml/lucent/numpy"
)

// activeBackend lazily installs backend/cpu the first time a test
// needs a concrete buffer — every test in this package is free to run
// in any order, so installation can't live in a single TestMain.
func activeBackend() backend.Backend {
	if eager.Backend() == nil {
		eager.SetBackend(cpu.New())
	}
	return eager.Backend()
}

// bind1 calls a single-output numpy primitive the way package numpy's
// own rules do internally — the tests exercise lucent's
// transformations, not a surface arithmetic API, so every arithmetic
// step in a test function goes through trace.Bind directly.
func bind1(prim *registry.Primitive, args ...any) (any, error) {
	outs, err := trace.Bind(prim, args, registry.Params{})
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}

func bindP(prim *registry.Primitive, params registry.Params, args ...any) (any, error) {
	outs, err := trace.Bind(prim, args, params)
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}

func mul(a, b any) (any, error) { return bind1(numpy.Mul, a, b) }
func add(a, b any) (any, error) { return bind1(numpy.Add, a, b) }
func sin(a any) (any, error)    { return bind1(numpy.Sin, a) }
func cos(a any) (any, error)    { return bind1(numpy.Cos, a) }

func sum(a any) (any, error) {
	return bindP(numpy.Sum, registry.Params{}, a)
}

// toFloat unwraps a leaf produced by a traced computation, whether it
// bottomed out as a *backend.Buffer or was never lifted off a bare Go
// scalar.
func toFloat(x any) float64 {
	switch v := x.(type) {
	case *backend.Buffer:
		return v.Data[0]
	case float64:
		return v
	default:
		panic("lucent_test: unexpected leaf type")
	}
}

func toFloats(x any) []float64 {
	switch v := x.(type) {
	case *backend.Buffer:
		out := make([]float64, len(v.Data))
		copy(out, v.Data)
		return out
	default:
		panic("lucent_test: unexpected leaf type for vector result")
	}
}

func vector(data []float64) *backend.Buffer {
	b, err := activeBackend().FromTypedBuffer(data, aval.Shape{len(data)}, aval.Float32)
	if err != nil {
		panic(err)
	}
	return b
}

func matrix(rows, cols int, data []float64) *backend.Buffer {
	b, err := activeBackend().FromTypedBuffer(data, aval.Shape{rows, cols}, aval.Float32)
	if err != nil {
		panic(err)
	}
	return b
}
