// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Div is broadcasting elementwise division: d(a/b)/da = 1/b,
// d(a/b)/db = -a/b^2. Unlike Mul, division is linear only in its
// numerator — the denominator appears in a b^2 term, so only index 0
// is declared linear; a jaxpr built by linearize never needs to
// transpose through the denominator of a division.
var Div = registry.Register(&registry.Primitive{
	Name:         "div",
	NumIn:        2,
	LinearInputs: []int{0},
	AbstractEval: broadcastBinaryEval,
})

func init() {
	Div.JVP = divJVP
	Div.Transpose = divTranspose
	Div.Batch = elementwiseBatch(Div)
}

func divJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Div, primals[0], primals[1])
	if err != nil {
		return nil, nil, err
	}
	outAval := avalOf(out)

	var contribA any = jvpmode.Zero{Aval: outAval}
	if !jvpmode.IsZero(tangents[0]) {
		contribA, err = bind(Div, tangents[0], primals[1])
		if err != nil {
			return nil, nil, err
		}
	}

	bSq, err := bind(Mul, primals[1], primals[1])
	if err != nil {
		return nil, nil, err
	}
	aOverBSq, err := bind(Div, primals[0], bSq)
	if err != nil {
		return nil, nil, err
	}
	negAOverBSq, err := bind(Neg, aOverBSq)
	if err != nil {
		return nil, nil, err
	}
	contribB, err := scaleTangent(outAval, tangents[1], negAOverBSq)
	if err != nil {
		return nil, nil, err
	}

	tOut, err := addTangents(outAval, contribA, contribB)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}

func divTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	aAval := in[0].(aval.Aval)
	ctA, err := bind(Div, outCts[0], in[1])
	if err != nil {
		return nil, err
	}
	ctA, err = unbroadcastCotangent(ctA, aAval)
	if err != nil {
		return nil, err
	}
	return []any{ctA}, nil
}
