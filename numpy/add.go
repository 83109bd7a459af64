// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Add is the broadcasting elementwise addition primitive, grounded on
// internal/autodiff/ops/add.go's AddOp: d(a+b)/da = d(a+b)/db = 1, so
// both tangents pass straight through (summed if both are live), and
// transposing simply un-broadcasts the output cotangent back to each
// input's original shape.
var Add = registry.Register(&registry.Primitive{
	Name:         "add",
	NumIn:        2,
	LinearInputs: []int{0, 1},
	AbstractEval: broadcastBinaryEval,
})

func init() {
	Add.JVP = addJVP
	Add.Transpose = addTranspose
	Add.Batch = elementwiseBatch(Add)
}

func addJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Add, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	tOut, err := addTangents(avalOf(out), tangents[0], tangents[1])
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func addTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	ct := outCts[0]
	ctA, err := unbroadcastCotangent(ct, in[0].(aval.Aval))
	if err != nil {
		return nil, err
	}
	ctB, err := unbroadcastCotangent(ct, in[1].(aval.Aval))
	if err != nil {
		return nil, err
	}
	return []any{ctA, ctB}, nil
}
