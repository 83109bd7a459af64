// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/batchmode"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Transpose permutes x's axes per params["axes"] ([]int, empty meaning
// "reverse every axis"), mirroring backend/cpu/shapeops.go's kernel of
// the same name. It is a pure relabeling with no arithmetic of its
// own, so it is linear and its own adjoint under the inverse
// permutation — the same relationship internal/trace/batchmode already
// leans on to move a batch axis to the front of any elementwise
// primitive's operands.
var Transpose = registry.Register(&registry.Primitive{
	Name:         "transpose",
	NumIn:        1,
	LinearInputs: []int{0},
	AbstractEval: transposeEval,
})

func init() {
	Transpose.JVP = transposeJVP
	Transpose.Transpose = transposeTranspose
	Transpose.Batch = transposeBatch
}

func normalizeAxes(params registry.Params, ndim int) []int {
	axes, _ := params["axes"].([]int)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	return axes
}

func transposeEval(params registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	x := in[0]
	ndim := len(x.Shape)
	axes := normalizeAxes(params, ndim)
	if len(axes) != ndim {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "transpose", "axes length does not match rank")
	}
	seen := make([]bool, ndim)
	outShape := make(aval.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			return nil, lucenterr.New(lucenterr.ShapeMismatch, "transpose", "invalid or duplicate axis")
		}
		seen[ax] = true
		outShape[i] = x.Shape[ax]
	}
	return []aval.Aval{aval.ShapedArray(outShape, x.DType)}, nil
}

func transposeJVP(params registry.Params, primals, tangents []any) ([]any, []any, error) {
	primalOuts, err := trace.Bind(Transpose, []any{primals[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	out := primalOuts[0].Payload
	if jvpmode.IsZero(tangents[0]) {
		return []any{out}, []any{jvpmode.Zero{Aval: avalOf(out)}}, nil
	}
	outs, err := trace.Bind(Transpose, []any{tangents[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{outs[0].Payload}, nil
}

// transposeTranspose undoes the forward permutation by applying its
// inverse to the output cotangent.
func transposeTranspose(params registry.Params, outCts []any, in []any) ([]any, error) {
	origAval := in[0].(aval.Aval)
	ct := outCts[0]
	if jvpmode.IsZero(ct) {
		return []any{jvpmode.Zero{Aval: origAval}}, nil
	}
	ndim := len(origAval.Shape)
	axes := normalizeAxes(params, ndim)
	inv := make([]int, ndim)
	for i, ax := range axes {
		inv[ax] = i
	}
	outs, err := trace.Bind(Transpose, []any{ct}, registry.Params{"axes": inv})
	if err != nil {
		return nil, err
	}
	return []any{outs[0].Payload}, nil
}

// transposeBatch cannot use the shared elementwiseBatch rule — moving
// a mapped operand's batch axis to the front is itself implemented in
// terms of this primitive (internal/trace/batchmode/default_rule.go),
// so transpose needs its own rule or vmap-of-transpose would recurse
// into itself. Instead it folds the batch axis directly into the
// permutation, following the same construction JAX's own
// transpose_batching_rule uses: the batch axis becomes the new axis 0,
// and every other permutation entry shifts up by one wherever it
// would have collided with the inserted axis.
func transposeBatch(params registry.Params, in []any, inAxes []int) ([]any, []int, error) {
	x := in[0]
	bd := inAxes[0]
	if bd == batchmode.NoAxis {
		outs, err := trace.Bind(Transpose, in, params)
		if err != nil {
			return nil, nil, err
		}
		return []any{outs[0].Payload}, []int{batchmode.NoAxis}, nil
	}

	fullRank := batchmode.AvalOf(x).Rank()
	n := fullRank - 1
	axes := normalizeAxes(params, n)

	newPerm := make([]int, fullRank)
	newPerm[0] = bd
	for j, p := range axes {
		if p < bd {
			newPerm[j+1] = p
		} else {
			newPerm[j+1] = p + 1
		}
	}
	outs, err := trace.Bind(Transpose, []any{x}, registry.Params{"axes": newPerm})
	if err != nil {
		return nil, nil, err
	}
	return []any{outs[0].Payload}, []int{0}, nil
}
