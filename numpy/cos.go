// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import "github.com/lucent-ml/lucent/internal/registry"

// Cos is elementwise cosine, sin's mirror: d(cos(x))/dx = -sin(x).
// Not linear, no Transpose rule, by the same reasoning as Sin.
var Cos = registry.Register(&registry.Primitive{
	Name:         "cos",
	NumIn:        1,
	AbstractEval: unaryEval,
})

func init() {
	Cos.JVP = cosJVP
	Cos.Batch = elementwiseBatch(Cos)
}

func cosJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Cos, primals[0])
	if err != nil {
		return nil, nil, err
	}
	sinX, err := bind(Sin, primals[0])
	if err != nil {
		return nil, nil, err
	}
	negSinX, err := bind(Neg, sinX)
	if err != nil {
		return nil, nil, err
	}
	tOut, err := scaleTangent(avalOf(out), tangents[0], negSinX)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}
