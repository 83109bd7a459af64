// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package numpy

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/batchmode"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// Sum reduces along params["axes"] ([]int; an absent key means every
// axis, a present-but-empty slice means none), keeping reduced axes at
// size 1 when params["keepdims"] is true — the same param keys
// backend/cpu/reduce.go's kernel reads. Linear
// (a sum is its own Jacobian of ones), so its JVP tangent just sums
// the tangent the same way, and its Transpose rule is the broadcast
// that undoes the reduction: grounded on the teacher's reduceBroadcast
// running in reverse.
var Sum = registry.Register(&registry.Primitive{
	Name:         "reduce_sum",
	NumIn:        1,
	LinearInputs: []int{0},
	AbstractEval: sumEval,
})

func init() {
	Sum.JVP = sumJVP
	Sum.Transpose = sumTranspose
	Sum.Batch = sumBatch
}

// axesMask turns params["axes"] into a per-axis reduction mask. An
// absent "axes" key means None: reduce every axis. A present key
// holding an explicit, possibly empty, []int reduces exactly those
// axes — []int{} reduces none, leaving the input unchanged. Only the
// key's presence, never its length, tells the two apart.
func axesMask(params registry.Params, ndim int) []bool {
	reduce := make([]bool, ndim)
	v, ok := params["axes"]
	if !ok {
		for i := range reduce {
			reduce[i] = true
		}
		return reduce
	}
	axes, _ := v.([]int)
	for _, ax := range axes {
		if ax < 0 {
			ax += ndim
		}
		reduce[ax] = true
	}
	return reduce
}

func sumEval(params registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	x := in[0]
	keepdims, _ := params["keepdims"].(bool)
	reduce := axesMask(params, len(x.Shape))
	var outShape aval.Shape
	for i, dim := range x.Shape {
		if !reduce[i] {
			outShape = append(outShape, dim)
		} else if keepdims {
			outShape = append(outShape, 1)
		}
	}
	return []aval.Aval{aval.ShapedArray(outShape, x.DType)}, nil
}

func sumJVP(params registry.Params, primals, tangents []any) ([]any, []any, error) {
	primalOuts, err := trace.Bind(Sum, []any{primals[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	out := primalOuts[0].Payload
	if jvpmode.IsZero(tangents[0]) {
		return []any{out}, []any{jvpmode.Zero{Aval: avalOf(out)}}, nil
	}
	outs, err := trace.Bind(Sum, []any{tangents[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{outs[0].Payload}, nil
}

// sumTranspose broadcasts the output cotangent back to the original
// (pre-reduction) shape, re-expanding any axis that was reduced to 1
// by keepdims or dropped entirely, via the registered "broadcast"
// primitive.
func sumTranspose(params registry.Params, outCts []any, in []any) ([]any, error) {
	origAval := in[0].(aval.Aval)
	ct := outCts[0]
	if jvpmode.IsZero(ct) {
		return []any{jvpmode.Zero{Aval: origAval}}, nil
	}

	keepdims, _ := params["keepdims"].(bool)
	if !keepdims {
		// re-insert reduced axes at size 1: reshape is a pure metadata
		// change (same element count, no data movement), giving
		// broadcast a rank-matched view to expand from.
		ndim := len(origAval.Shape)
		reduce := axesMask(params, ndim)
		withOnes := make(aval.Shape, 0, ndim)
		ctShape := avalOf(ct).Shape
		j := 0
		for i := 0; i < ndim; i++ {
			if reduce[i] {
				withOnes = append(withOnes, 1)
			} else {
				withOnes = append(withOnes, ctShape[j])
				j++
			}
		}
		outs, err := trace.Bind(Reshape, []any{ct}, registry.Params{"shape": withOnes})
		if err != nil {
			return nil, err
		}
		ct = outs[0].Payload
	}

	outs, err := trace.Bind(registry.MustLookup("broadcast"), []any{ct}, registry.Params{"shape": origAval.Shape})
	if err != nil {
		return nil, err
	}
	return []any{outs[0].Payload}, nil
}

// sumBatch cannot use DefaultElementwiseBatchRule: moving the batch
// axis to the front and re-applying the reduction unmodified would
// reduce the batch axis itself along with everything else. Instead it
// shifts every entry of the requested reduction axes past the mapped
// operand's batch axis, the same axis-shifting construction
// transposeBatch uses for permutations: an axis at or beyond the batch
// position moves up by one to make room for the axis vmap inserted. An
// absent axes key ("reduce everything") becomes "every axis except the
// batch axis" directly; an explicitly empty axes list stays empty, so
// the identity case survives vmap unchanged. Once the batch axis is
// known never to be among the reduced axes, the output's batch axis is
// just the input's batch axis position minus however many reduced axes
// preceded it.
func sumBatch(params registry.Params, in []any, inAxes []int) ([]any, []int, error) {
	x := in[0]
	bd := inAxes[0]
	if bd == batchmode.NoAxis {
		outs, err := trace.Bind(Sum, in, params)
		if err != nil {
			return nil, nil, err
		}
		return []any{outs[0].Payload}, []int{batchmode.NoAxis}, nil
	}

	ndim := batchmode.AvalOf(x).Rank()
	axesVal, hasAxes := params["axes"]
	axes, _ := axesVal.([]int)
	keepdims, _ := params["keepdims"].(bool)

	var shifted []int
	if !hasAxes {
		shifted = make([]int, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != bd {
				shifted = append(shifted, i)
			}
		}
	} else {
		unbatchedRank := ndim - 1
		shifted = make([]int, len(axes))
		for i, ax := range axes {
			if ax < 0 {
				ax += unbatchedRank
			}
			if ax >= bd {
				ax++
			}
			shifted[i] = ax
		}
	}

	outs, err := trace.Bind(Sum, []any{x}, registry.Params{"axes": shifted, "keepdims": keepdims})
	if err != nil {
		return nil, nil, err
	}

	outBd := bd
	if !keepdims {
		removedBefore := 0
		for _, ax := range shifted {
			if ax < bd {
				removedBefore++
			}
		}
		outBd = bd - removedBefore
	}
	return []any{outs[0].Payload}, []int{outBd}, nil
}
