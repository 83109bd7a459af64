// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package batchmode

import (
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
)

// Run implements vmap(f, inAxes, outAxes): push a fresh
// batching trace, attach each input to its mapped axis (NoAxis for an
// input not being mapped over), run f, then move each output's
// resulting batch axis to its requested outAxes position. f receives
// and returns flat leaf lists; pytree flattening is the caller's job
// (lucent.Vmap).
func Run(f func(in []any) ([]any, error), ins []any, inAxes []int, outAxes []int) ([]any, error) {
	mt, pop := trace.Push(trace.Batch, nil)
	defer pop()

	wrapped := make([]any, len(ins))
	for i, v := range ins {
		wrapped[i] = trace.NewTracer(mt, AvalOf(v), Payload{Value: v, Axis: inAxes[i]})
	}

	outs, err := f(wrapped)
	if err != nil {
		return nil, err
	}

	result := make([]any, len(outs))
	for i, o := range outs {
		t, ok := o.(*trace.Tracer)
		if !ok || t.Owner != mt {
			result[i] = o // never touched a mapped input: nothing to move
			continue
		}
		p := t.Payload.(Payload)
		if p.Axis == NoAxis || p.Axis == outAxes[i] {
			result[i] = p.Value
			continue
		}
		moved, err := moveAxis(p.Value, p.Axis, outAxes[i])
		if err != nil {
			return nil, err
		}
		result[i] = moved
	}
	return result, nil
}

// moveAxis permutes v's axis `from` to position `to`, numpy
// moveaxis-style, via the registered "transpose" primitive.
func moveAxis(v any, from, to int) (any, error) {
	n := AvalOf(v).Rank()
	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != from {
			rest = append(rest, i)
		}
	}
	perm := make([]int, n)
	copy(perm, rest[:to])
	perm[to] = from
	copy(perm[to+1:], rest[to:])

	transposePrim := registry.MustLookup("transpose")
	outs, err := trace.Bind(transposePrim, []any{v}, registry.Params{"axes": perm})
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}
