// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Matmul is 2D matrix multiplication, grounded on
// internal/autodiff/ops/matmul.go's MatMulOp: for C = A@B,
// grad_A = outputGrad @ B^T and grad_B = A^T @ outputGrad. Bilinear
// like Mul, not linear in both operands at once — matmulTranspose
// tells the constant side from the linear one the same way
// mulTranspose does, by in[j]'s dynamic type.
//
// No Batch rule: backend/cpu's matmul kernel is 2D-only (see
// backend/cpu/matmul.go), so there is no batched-matmul kernel for
// vmap to fold a mapped axis into. Unlike reduce_sum's Batch rule
// (numpy/sum.go), which only has to shift a set of reduced axes past
// the inserted batch dimension, batching matmul properly needs a
// genuinely batched (3D, per-example) kernel underneath — reshaping a
// mapped 2D operand into a loop of 2D matmuls would work but isn't
// wired here. Mapping over matmul surfaces as
// lucenterr.MissingRule, the same way backend/webgpu leaves every
// primitive but add/mul unimplemented by design.
var Matmul = registry.Register(&registry.Primitive{
	Name:         "matmul",
	NumIn:        2,
	LinearInputs: []int{0, 1},
	AbstractEval: matmulEval,
})

func init() {
	Matmul.JVP = matmulJVP
	Matmul.Transpose = matmulTranspose
}

func matmulEval(_ registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	a, b := in[0], in[1]
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "matmul", "operands must be 2D")
	}
	m, k := a.Shape[0], a.Shape[1]
	kAlt, n := b.Shape[0], b.Shape[1]
	if k != kAlt {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "matmul", "inner dimensions must match")
	}
	return []aval.Aval{aval.ShapedArray(aval.Shape{m, n}, aval.Promote(a.DType, b.DType))}, nil
}

func matmulJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Matmul, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	outAval := avalOf(out)

	var contribA, contribB any = jvpmode.Zero{Aval: outAval}, jvpmode.Zero{Aval: outAval}
	if !jvpmode.IsZero(tangents[0]) {
		contribA, err = bind(Matmul, tangents[0], primals[1])
		if err != nil {
			return nil, nil, err
		}
	}
	if !jvpmode.IsZero(tangents[1]) {
		contribB, err = bind(Matmul, primals[0], tangents[1])
		if err != nil {
			return nil, nil, err
		}
	}
	tOut, err := addTangents(outAval, contribA, contribB)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func matmulTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	_, aLinear := in[0].(aval.Aval)
	_, bLinear := in[1].(aval.Aval)
	out := make([]any, 2)

	if aLinear {
		bT, err := bind(Transpose, in[1])
		if err != nil {
			return nil, err
		}
		out[0], err = bind(Matmul, outCts[0], bT)
		if err != nil {
			return nil, err
		}
	}
	if bLinear {
		aT, err := bind(Transpose, in[0])
		if err != nil {
			return nil, err
		}
		out[1], err = bind(Matmul, aT, outCts[0])
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
