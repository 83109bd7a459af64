// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import (
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/batchmode"
	"github.com/lucent-ml/lucent/pytree"
)

// Vmap implements vmap(f, inAxis=0, outAxis=0): every leaf of x is
// mapped along inAxis, f runs once over the whole batch,
// and every leaf of the result is moved to outAxis. Unlike
// batchmode.Run (which works on a fixed, pre-known number of flat
// leaves), this wrapper cannot pass the caller's outAxes straight
// through: the number of *output* leaves is only known after f itself
// has run, so the axis move is performed here directly rather than by
// pre-sizing an outAxes slice for Run.
func Vmap(f Fn, inAxis, outAxis int) Fn {
	return func(x any) (any, error) {
		leaves, treedefIn := pytree.Flatten(x)
		inAxes := make([]int, len(leaves))
		for i := range inAxes {
			inAxes[i] = inAxis
		}

		mt, pop := trace.Push(trace.Batch, nil)
		defer pop()

		wrapped := make([]any, len(leaves))
		for i, v := range leaves {
			wrapped[i] = trace.NewTracer(mt, batchmode.AvalOf(v), batchmode.Payload{Value: v, Axis: inAxes[i]})
		}

		tree, err := pytree.Unflatten(treedefIn, wrapped)
		if err != nil {
			return nil, err
		}
		out, err := f(tree)
		if err != nil {
			return nil, err
		}
		outLeaves, outTreedef := pytree.Flatten(out)

		result := make([]any, len(outLeaves))
		for i, o := range outLeaves {
			t, ok := o.(*trace.Tracer)
			if !ok || t.Owner != mt {
				result[i] = o // never touched a mapped input
				continue
			}
			p := t.Payload.(batchmode.Payload)
			if p.Axis == batchmode.NoAxis || p.Axis == outAxis {
				result[i] = p.Value
				continue
			}
			moved, merr := moveAxis(p.Value, p.Axis, outAxis)
			if merr != nil {
				return nil, merr
			}
			result[i] = moved
		}
		return pytree.Unflatten(outTreedef, result)
	}
}

// moveAxis permutes v's axis `from` to position `to`, mirroring
// batchmode.Run's own private helper of the same name — duplicated
// here rather than exported from batchmode because Vmap needs to
// interleave the move with its own per-leaf ownership check, not just
// call Run with a pre-sized outAxes.
func moveAxis(v any, from, to int) (any, error) {
	n := batchmode.AvalOf(v).Rank()
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
