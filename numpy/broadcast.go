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

// Broadcast expands x up to params["shape"] (aval.Shape), the explicit
// counterpart of the implicit broadcasting every elementwise binary
// kernel already performs — used directly by sum's transpose rule to
// undo a reduction, and available as its own primitive for anything
// else that needs to materialize a broadcast. Linear, and its own
// adjoint is unbroadcastCotangent: summing the output cotangent back
// down to the shape it started from.
var Broadcast = registry.Register(&registry.Primitive{
	Name:         "broadcast",
	NumIn:        1,
	LinearInputs: []int{0},
	AbstractEval: broadcastEval,
})

func init() {
	Broadcast.JVP = broadcastJVP
	Broadcast.Transpose = broadcastTranspose
	Broadcast.Batch = broadcastBatch
}

func broadcastEval(params registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	x := in[0]
	shape, _ := params["shape"].(aval.Shape)
	if shape == nil {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "broadcast", "missing shape param")
	}
	if _, _, err := aval.BroadcastShapes(x.Shape, shape); err != nil {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "broadcast", err.Error())
	}
	return []aval.Aval{aval.ShapedArray(shape, x.DType)}, nil
}

func broadcastJVP(params registry.Params, primals, tangents []any) ([]any, []any, error) {
	primalOuts, err := trace.Bind(Broadcast, []any{primals[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	out := primalOuts[0].Payload
	if jvpmode.IsZero(tangents[0]) {
		return []any{out}, []any{jvpmode.Zero{Aval: avalOf(out)}}, nil
	}
	outs, err := trace.Bind(Broadcast, []any{tangents[0]}, params)
	if err != nil {
		return nil, nil, err
	}
	return []any{out}, []any{outs[0].Payload}, nil
}

func broadcastTranspose(_ registry.Params, outCts []any, in []any) ([]any, error) {
	origAval := in[0].(aval.Aval)
	ct, err := unbroadcastCotangent(outCts[0], origAval)
	if err != nil {
		return nil, err
	}
	return []any{ct}, nil
}

// broadcastBatch moves the mapped operand's batch axis to the front
// and prepends the batch size to the target shape, so a mapped
// broadcast of a batch of N examples up to shape becomes a single
// broadcast up to [N, shape...].
func broadcastBatch(params registry.Params, in []any, inAxes []int) ([]any, []int, error) {
	x := in[0]
	bd := inAxes[0]
	shape, _ := params["shape"].(aval.Shape)
	if bd == batchmode.NoAxis {
		outs, err := trace.Bind(Broadcast, in, params)
		if err != nil {
			return nil, nil, err
		}
		return []any{outs[0].Payload}, []int{batchmode.NoAxis}, nil
	}

	n := batchmode.AvalOf(x).Rank()
	perm := make([]int, n)
	perm[0] = bd
	j := 1
	for i := 0; i < n; i++ {
		if i != bd {
			perm[j] = i
			j++
		}
	}
	moved, err := trace.Bind(Transpose, []any{x}, registry.Params{"axes": perm})
	if err != nil {
		return nil, nil, err
	}
	batchSize := batchmode.AvalOf(x).Shape[bd]
	newShape := append(aval.Shape{batchSize}, shape...)
	outs, err := trace.Bind(Broadcast, []any{moved[0].Payload}, registry.Params{"shape": newShape})
	if err != nil {
		return nil, nil, err
	}
	return []any{outs[0].Payload}, []int{0}, nil
}
