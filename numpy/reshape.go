// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Reshape relabels x's shape to params["shape"] (aval.Shape) without
// moving any element. Linear — it is its own adjoint, reshaping the
// output cotangent back to the input shape — directly grounded on
// internal/autodiff/ops/reshape.go's ReshapeOp, whose Backward does
// exactly that "no actual computation needed" reshape in reverse.
var Reshape = registry.Register(&registry.Primitive{
	Name:         "reshape",
	NumIn:        1,
	LinearInputs: []int{0},
	AbstractEval: reshapeEval,
})

func init() {
	Reshape.JVP = reshapeJVP
	Reshape.Transpose = reshapeTranspose
}

func reshapeEval(params registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	x := in[0]
	shape, _ := params["shape"].(aval.Shape)
	if shape == nil {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "reshape", "missing shape param")
	}
	if shape.NumElements() != x.Shape.NumElements() {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "reshape", "element count mismatch")
	}
	return []aval.Aval{aval.ShapedArray(shape, x.DType)}, nil
}

func reshapeJVP(params registry.Params, primals, tangents []any) ([]any, []any, error) {
	primalOuts, err := trace.Bind(Reshape, []any{primals[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	out := primalOuts[0].Payload
	if jvpmode.IsZero(tangents[0]) {
		return []any{out}, []any{jvpmode.Zero{Aval: avalOf(out)}}, nil
	}
	outs, err := trace.Bind(Reshape, []any{tangents[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{outs[0].Payload}, nil
}

// reshapeTranspose reshapes the output cotangent back to the original
// (pre-reshape) input shape — reshape's adjoint is itself a reshape.
func reshapeTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	origAval := in[0].(aval.Aval)
	ct := outCts[0]
	if jvpmode.IsZero(ct) {
		return []any{jvpmode.Zero{Aval: origAval}}, nil
	}
	outs, err := trace.Bind(Reshape, []any{ct}, registry.Params{"shape": origAval.Shape})
	if err != nil {
		return nil, err
	}
	return []any{outs[0].Payload}, nil
}
