// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import "github.com/lucent-ml/lucent/internal/registry"

// Neg is elementwise negation: d(-x)/dx = -1, so the tangent and the
// cotangent are both just negated again, grounded on
// internal/autodiff/ops/helpers.go's negateGradient.
var Neg = registry.Register(&registry.Primitive{
	Name:         "neg",
	NumIn:        1,
	LinearInputs: []int{0},
	AbstractEval: unaryEval,
})

func init() {
	Neg.JVP = negJVP
	Neg.Transpose = negTranspose
	Neg.Batch = elementwiseBatch(Neg)
}

func negJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Neg, primals[0])
	if err != nil {
		return nil, nil, err
	}
	tOut, err := negateTangent(avalOf(out), tangents[0])
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func negTranspose(_ registry.Params, outCts []any, _ []any) ([]any, error) {
	ct, err := bind(Neg, outCts[0])
	if err != nil {
		return nil, err
	}
	return []any{ct}, nil
}
