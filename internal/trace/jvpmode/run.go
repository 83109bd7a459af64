// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package jvpmode

import "github.com/lucent-ml/lucent/internal/trace"

// Run implements jvp(f, primals, tangents): push a
// fresh JVP trace, attach each tangent to its primal, run f over the
// wrapped flat leaves, and split the results back into (primalsOut,
// tangentsOut). f receives and returns flat leaf lists; pytree
// flattening is the caller's job (lucent.Jvp).
func Run(f func(in []any) ([]any, error), primals, tangents []any) (primalsOut, tangentsOut []any, err error) {
	mt, pop := trace.Push(trace.JVP, nil)
	defer pop()

	in := make([]any, len(primals))
	for i, p := range primals {
		t := tangents[i]
		if t == nil {
			t = Zero{Aval: AvalOf(p)}
		}
		in[i] = trace.NewTracer(mt, AvalOf(p), Payload{Primal: p, Tangent: t})
	}

	outs, ferr := f(in)
	if ferr != nil {
		return nil, nil, ferr
	}

	primalsOut = make([]any, len(outs))
	tangentsOut = make([]any, len(outs))
	for i, o := range outs {
		t, ok := o.(*trace.Tracer)
		if !ok || t.Owner != mt {
			// The output never passed through this trace: it is a
			// constant with respect to the differentiated inputs.
			primalsOut[i] = o
			tangentsOut[i] = Zero{Aval: AvalOf(o)}
			continue
		}
		p := t.Payload.(Payload)
		primalsOut[i] = p.Primal
		tangentsOut[i] = p.Tangent
	}
	return primalsOut, tangentsOut, nil
}
