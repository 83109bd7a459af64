// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"math"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

func init() {
	register("add", binaryKernel(func(x, y float64) float64 { return x + y }))
	register("sub", binaryKernel(func(x, y float64) float64 { return x - y }))
	register("mul", binaryKernel(func(x, y float64) float64 { return x * y }))
	register("div", binaryKernel(func(x, y float64) float64 { return x / y }))

	register("neg", unaryKernel(func(x float64) float64 { return -x }))
	register("sin", unaryKernel(math.Sin))
	register("cos", unaryKernel(math.Cos))

	register("greater", compareKernel(func(x, y float64) bool { return x > y }))
	register("less", compareKernel(func(x, y float64) bool { return x < y }))
	register("equal", compareKernel(func(x, y float64) bool { return x == y }))

	// copy has no domain meaning; it only exists so ir.Flatten's inlined
	// jit equations have a real kernel to bottom out on at eager eval time.
	register("copy", unaryKernel(func(x float64) float64 { return x }))
}

// binaryKernel builds a kernel for a broadcasting binary primitive
// (add/sub/mul/div), grounded on CPUBackend.Add's broadcast-then-
// vectorize structure in internal/backend/cpu/backend.go.
func binaryKernel(op func(x, y float64) float64) kernel {
	return func(in []*backend.Buffer, _ registry.Params) ([]*backend.Buffer, error) {
		out, err := broadcastBinary(in[0], in[1], op)
		if err != nil {
			return nil, err
		}
		return []*backend.Buffer{out}, nil
	}
}

// unaryKernel builds a kernel for a shape-preserving unary primitive
// (neg/sin/cos), grounded on CPUBackend.Exp/Log in internal/backend/cpu/math.go.
func unaryKernel(op func(x float64) float64) kernel {
	return func(in []*backend.Buffer, _ registry.Params) ([]*backend.Buffer, error) {
		x := in[0]
		out := make([]float64, len(x.Data))
		for i, v := range x.Data {
			out[i] = op(v)
		}
		return []*backend.Buffer{{Shape: x.Shape.Clone(), DType: x.DType, Data: out}}, nil
	}
}

// compareKernel builds a kernel for an elementwise comparison,
// producing a Bool-dtyped buffer (1.0/0.0), grounded on
// internal/backend/cpu/comparison.go's broadcasting comparisons.
func compareKernel(op func(x, y float64) bool) kernel {
	return func(in []*backend.Buffer, _ registry.Params) ([]*backend.Buffer, error) {
		boolOp := func(x, y float64) float64 {
			if op(x, y) {
				return 1
			}
			return 0
		}
		out, err := broadcastBinary(in[0], in[1], boolOp)
		if err != nil {
			return nil, err
		}
		out.DType = aval.Bool
		return []*backend.Buffer{out}, nil
	}
}
