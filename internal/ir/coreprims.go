// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ir

import (
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

// copy is a core identity primitive with no domain meaning of its own:
// Flatten (jit-inlining, see jaxpr.go) uses it to give an outer
// equation's out-vars a defining equation once their real computation
// has been substituted in from the inlined sub-jaxpr. It is linear in
// its single input so transpose and batching both treat it as a no-op
// pass-through.
func init() {
	registry.Register(&registry.Primitive{
		Name:         "copy",
		NumIn:        1,
		LinearInputs: []int{0},
		AbstractEval: func(_ registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
			return []aval.Aval{in[0]}, nil
		},
		JVP: func(_ registry.Params, primals, tangents []any) ([]any, []any, error) {
			return []any{primals[0]}, []any{tangents[0]}, nil
		},
		Transpose: func(_ registry.Params, outCotangents, _ []any) ([]any, error) {
			return []any{outCotangents[0]}, nil
		},
		Batch: func(_ registry.Params, in []any, inAxes []int) ([]any, []int, error) {
			return []any{in[0]}, []int{inAxes[0]}, nil
		},
	})
}
