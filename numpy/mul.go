// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Mul is broadcasting elementwise multiplication, grounded on
// internal/autodiff/ops/mul.go's MulOp: grad_a = outputGrad*b,
// grad_b = outputGrad*a. Mul is bilinear, not linear in both operands
// at once, so both indices are merely "can be linear" — see
// internal/trace/transpose's isLinear: by the time linearize has run,
// exactly one side of any given mul equation is a free tangent var and
// the other a constant captured by C7's constant folding. mulTranspose
// tells them apart by in[j]'s dynamic type: an aval.Aval (the linear
// side, no value) versus a concrete buffer (the constant multiplier).
var Mul = registry.Register(&registry.Primitive{
	Name:         "mul",
	NumIn:        2,
	LinearInputs: []int{0, 1},
	AbstractEval: broadcastBinaryEval,
})

func init() {
	Mul.JVP = mulJVP
	Mul.Transpose = mulTranspose
	Mul.Batch = elementwiseBatch(Mul)
}

func mulJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Mul, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	outAval := avalOf(out)

	contribA, err := scaleTangent(outAval, tangents[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	contribB, err := scaleTangent(outAval, tangents[1], primals[0])
	if err != nil {
		return nil, nil, err
	}
	tOut, err := addTangents(outAval, contribA, contribB)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func mulTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	aAval, aLinear := in[0].(aval.Aval)
	bAval, bLinear := in[1].(aval.Aval)
	out := make([]any, 2)
	if aLinear {
		scaled, err := bind(Mul, outCts[0], in[1])
		if err != nil {
			return nil, err
		}
		out[0], err = unbroadcastCotangent(scaled, aAval)
		if err != nil {
			return nil, err
		}
	}
	if bLinear {
		scaled, err := bind(Mul, outCts[0], in[0])
		if err != nil {
			return nil, err
		}
		out[1], err = unbroadcastCotangent(scaled, bAval)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
