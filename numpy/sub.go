// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

// Sub is the broadcasting elementwise subtraction primitive: d(a-b)/da
// = 1, d(a-b)/db = -1, the mirror image of Add with the second
// cotangent negated before un-broadcasting.
var Sub = registry.Register(&registry.Primitive{
	Name:         "sub",
	NumIn:        2,
	LinearInputs: []int{0, 1},
	AbstractEval: broadcastBinaryEval,
})

func init() {
	Sub.JVP = subJVP
	Sub.Transpose = subTranspose
	Sub.Batch = elementwiseBatch(Sub)
}

func subJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Sub, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	outAval := avalOf(out)
	negB, err := negateTangent(outAval, tangents[1])
	if err != nil {
		return nil, nil, err
	}
	tOut, err := addTangents(outAval, tangents[0], negB)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func subTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	ct := outCts[0]
	ctA, err := unbroadcastCotangent(ct, in[0].(aval.Aval))
	if err != nil {
		return nil, err
	}
	negCt, err := bind(Neg, ct)
	if err != nil {
		return nil, err
	}
	ctB, err := unbroadcastCotangent(negCt, in[1].(aval.Aval))
	if err != nil {
		return nil, err
	}
	return []any{ctA, ctB}, nil
}
