// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package batchmode

import (
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

// DefaultElementwiseBatchRule is the default batching rule for
// elementwise primitives: every mapped operand's
// batch axis is moved to the front, unmapped operands are left alone
// (a leading batch dimension broadcasts against them naturally under
// ordinary promotion/broadcast rules), and the primitive is then
// re-applied once over the whole batch with ordinary broadcasting
// doing the per-example work. numpy's elementwise wrappers (add, mul,
// neg, sin, cos, …) set this as their Batch field rather than writing
// a bespoke rule each.
func DefaultElementwiseBatchRule(prim *registry.Primitive) registry.BatchFn {
	return func(params registry.Params, in []any, inAxes []int) ([]any, []int, error) {
		moved := make([]any, len(in))
		for i, v := range in {
			if inAxes[i] == NoAxis || inAxes[i] == 0 {
				moved[i] = v
				continue
			}
			m, err := moveAxisToFront(v, inAxes[i])
			if err != nil {
				return nil, nil, err
			}
			moved[i] = m
		}
		outs, err := trace.Bind(prim, moved, params)
		if err != nil {
			return nil, nil, err
		}
		out := make([]any, len(outs))
		outAxes := make([]int, len(outs))
		for i, o := range outs {
			out[i] = o.Payload
			outAxes[i] = 0
		}
		return out, outAxes, nil
	}
}

// moveAxisToFront permutes v's batch axis to position 0 via the
// globally registered "transpose" primitive — numpy/transpose.go must
// have registered it by the time any vmap call reaches here.
func moveAxisToFront(v any, axis int) (any, error) {
	n := AvalOf(v).Rank()
	perm := make([]int, n)
	perm[0] = axis
	j := 1
	for i := 0; i < n; i++ {
		if i != axis {
			perm[j] = i
			j++
		}
	}
	transposePrim := registry.MustLookup("transpose")
	outs, err := trace.Bind(transposePrim, []any{v}, registry.Params{"axes": perm})
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}
