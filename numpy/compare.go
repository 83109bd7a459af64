// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import "github.com/lucent-ml/lucent/internal/registry"

// Greater, Less, and Equal are the broadcasting elementwise
// comparisons: bool-valued, with no teacher analogue (born's autodiff
// package has no comparison op, since comparisons never flow a
// gradient). Constant zero tangent and no Transpose rule: bool-valued
// outputs carry only zero tangents.
var (
	Greater = registry.Register(newCompare("greater"))
	Less    = registry.Register(newCompare("less"))
	Equal   = registry.Register(newCompare("equal"))
)

func newCompare(name string) *registry.Primitive {
	p := &registry.Primitive{
		Name:         name,
		NumIn:        2,
		AbstractEval: compareBinaryEval,
	}
	p.JVP = func(params registry.Params, primals, _ []any) ([]any, []any, error) {
		out, err := bind(p, primals[0], primals[1])
		if err != nil {
			return nil, nil, err
		}
		return []any{out}, []any{zeroTangentLike(out)}, nil
	}
	p.Batch = elementwiseBatch(p)
	return p
}
