// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package registry holds the two process-wide, append-only-at-init
// tables: the primitive registry (this file) and the
// pytree node registry (pytree.go). Both are read-only once tracing
// begins, mirroring how the teacher's internal/autodiff/ops package is
// a fixed set of Operation implementations compiled into the binary
// rather than a runtime-mutable plugin system.
package registry

import (
	"fmt"
	"sync"

	"github.com/lucent-ml/lucent/internal/aval"
)

// Params is a primitive's parameter dictionary:
// a mapping from parameter name to literal value. For higher-order
// primitives like jit, one entry holds a nested closed jaxpr — the
// registry package stays agnostic of that concrete type so internal/ir
// never needs to import internal/registry back.
type Params map[string]any

// AbstractEvalFn checks that a primitive's input avals and params are
// mutually consistent and returns the output avals, or an error built
// with internal/lucenterr.
type AbstractEvalFn func(params Params, in ...aval.Aval) ([]aval.Aval, error)

// JVPFn maps primal and tangent inputs to primal and tangent outputs.
// Tangents are opaque `any` here: at this layer a tangent is just
// "whatever the calling trace represents a tangent value as" (a
// tracer, in practice) — the registry has no notion of a trace.
type JVPFn func(params Params, primals []any, tangents []any) (primalsOut, tangentsOut []any, err error)

// TransposeFn computes cotangent contributions for a primitive's
// linear inputs given the cotangents of its outputs. Only defined for
// primitives with a non-empty LinearInputs set.
type TransposeFn func(params Params, outCotangents []any, in []any) (inCotangents []any, err error)

// BatchFn maps batched tracers (value + batch axis, batch axis -1
// meaning "not batched") to a batched output and its output axis.
type BatchFn func(params Params, in []any, inAxes []int) (out []any, outAxes []int, err error)

// Primitive is a named operation carrying its rule tables: a fixed
// input arity (or -1 for variadic, e.g. cat/jit),
// the subset of inputs it is linear in (used by transpose), and the
// abstractEval/jvp/transpose/batch rules themselves.
type Primitive struct {
	Name         string
	NumIn        int // -1 means variadic
	LinearInputs []int

	AbstractEval AbstractEvalFn
	JVP          JVPFn
	Transpose    TransposeFn
	Batch        BatchFn
}

// IsLinearIn reports whether input index i is declared linear.
func (p *Primitive) IsLinearIn(i int) bool {
	for _, idx := range p.LinearInputs {
		if idx == i {
			return true
		}
	}
	return false
}

var (
	mu    sync.RWMutex
	table = map[string]*Primitive{}
)

// Register adds p to the process-wide registry. The
// registry is append-only during initialisation; registering the same
// name twice is a programmer error and panics immediately rather than
// silently shadowing the earlier primitive.
func Register(p *Primitive) *Primitive {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := table[p.Name]; exists {
		panic(fmt.Sprintf("registry: primitive %q already registered", p.Name))
	}
	table[p.Name] = p
	return p
}

// Lookup finds a registered primitive by name.
func Lookup(name string) (*Primitive, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := table[name]
	return p, ok
}

// MustLookup is Lookup but panics on a missing primitive; used where
// the caller already knows (by construction) that the name is registered.
func MustLookup(name string) *Primitive {
	p, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("registry: no such primitive %q", name))
	}
	return p
}
