// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import "github.com/lucent-ml/lucent/internal/registry"

// Sin is elementwise sine. Not linear, so it carries no Transpose
// rule — it only ever appears on the "known" (primal) side of a
// linearized jaxpr, never in the linear tail transpose walks.
// Grounded on internal/autodiff/ops/sin.go's SinOp: d(sin(x))/dx =
// cos(x), so the tangent is scaled by cos(primal).
var Sin = registry.Register(&registry.Primitive{
	Name:         "sin",
	NumIn:        1,
	AbstractEval: unaryEval,
})

func init() {
	Sin.JVP = sinJVP
	Sin.Batch = elementwiseBatch(Sin)
}

func sinJVP(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
	out, err := bind(Sin, primals[0])
	if err != nil {
		return nil, nil, err
	}
	cosX, err := bind(Cos, primals[0])
	if err != nil {
		return nil, nil, err
	}
	tOut, err := scaleTangent(avalOf(out), tangents[0], cosX)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{tOut}, nil
}
