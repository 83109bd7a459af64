// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import (
	"fmt"
	"sync"

	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/stage"
	"github.com/lucent-ml/lucent/pytree"
)

// defaultJitCacheCapacity bounds the in-memory cache every Jit closure
// shares, grounded on the teacher's backend/webgpu Backend's
// shaders/pipelines map[string]*T guarded by a single mutex.
const defaultJitCacheCapacity = 256

type jitEntry struct {
	cj         *ir.ClosedJaxpr
	outTreedef *pytree.TreeDef
}

// jitCache is a bounded, least-recently-used cache keyed by a jitted
// call's structural signature.
type jitCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*jitEntry
	order    []string
}

func newJitCache(capacity int) *jitCache {
	return &jitCache{capacity: capacity, entries: map[string]*jitEntry{}}
}

func (c *jitCache) get(key string) (*jitEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.touch(key)
	}
	return e, ok
}

func (c *jitCache) put(key string, e *jitEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	} else {
		c.touch(key)
	}
	c.entries[key] = e
}

// touch moves key to the most-recently-used end of the eviction order.
// Linear in the cache size, which is fine at the hundreds-of-entries
// scale defaultJitCacheCapacity targets.
func (c *jitCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

func jitSignature(treedefIn *pytree.TreeDef, avals []aval.Aval, statics []any) string {
	key := treedefKey(treedefIn)
	for _, a := range avals {
		key += "|" + avalKey(a)
	}
	for _, s := range statics {
		key += fmt.Sprintf("|static:%v", s)
	}
	return key
}

// Jit implements jit(f, staticArgnums): trace f once
// per distinct (input pytree shape, per-leaf aval, static argument)
// signature, cache the resulting closed jaxpr, and dispatch every
// subsequent call against the cached jaxpr rather than retracing.
//
// x is either a single pytree (staticArgnums empty) or a []any of
// positional arguments (staticArgnums indexes into that slice). At
// true top level — no ambient trace, per trace.Active() — the cached
// jaxpr is interpreted directly against concrete leaves, bypassing the
// backend's primitive table entirely, since no backend implements a
// "jit" kernel: jit is a staging-and-caching concern of this package,
// not a numeric operation a device executes. Nested inside another
// trace, the call instead emits a "jit" equation (jitPrimitive) and
// lets that trace's own rule for it run — its AbstractEval already
// gives stage.MakeJaxpr's ordinary constant-folding/staging logic
// everything it needs with no special-casing.
func Jit(f Fn, staticArgnums ...int) Fn {
	isStatic := make(map[int]bool, len(staticArgnums))
	for _, i := range staticArgnums {
		isStatic[i] = true
	}
	cache := newJitCache(defaultJitCacheCapacity)

	return func(x any) (any, error) {
		args, wasSlice := asArgs(x)
		var dynArgs, staticVals []any
		for i, a := range args {
			if isStatic[i] {
				staticVals = append(staticVals, a)
			} else {
				dynArgs = append(dynArgs, a)
			}
		}
		var dynTree any = dynArgs
		if !wasSlice {
			if len(dynArgs) == 0 {
				// The sole argument was marked static: nothing to trace
				// over, f is really being called with a fixed constant.
				dynTree = []any{}
			} else {
				dynTree = dynArgs[0]
			}
		}

		leaves, treedefIn := pytree.Flatten(dynTree)
		avals := make([]aval.Aval, len(leaves))
		for i, l := range leaves {
			avals[i] = avalOf(l)
		}
		key := jitSignature(treedefIn, avals, staticVals)

		entry, hit := cache.get(key)
		if !hit {
			var outTreedef *pytree.TreeDef
			g := func(in []any) ([]any, error) {
				dyn, err := pytree.Unflatten(treedefIn, in)
				if err != nil {
					return nil, err
				}
				full := mergeDynamic(args, isStatic, dyn, wasSlice)
				out, err := f(full)
				if err != nil {
					return nil, err
				}
				outLeaves, td := pytree.Flatten(out)
				outTreedef = td
				return outLeaves, nil
			}
			shapedAvals := make([]aval.Aval, len(avals))
			for i, a := range avals {
				shapedAvals[i] = a.ToShaped()
			}
			cj, err := stage.MakeJaxpr(g, shapedAvals)
			if err != nil {
				return nil, err
			}
			entry = &jitEntry{cj: cj, outTreedef: outTreedef}
			cache.put(key, entry)
		}

		var outLeaves []any
		if trace.Active() {
			outs, err := trace.Bind(jitPrimitive, leaves, registry.Params{"jaxpr": entry.cj})
			if err != nil {
				return nil, err
			}
			outLeaves = make([]any, len(outs))
			for i, o := range outs {
				outLeaves[i] = o.Payload
			}
		} else {
			// True top level: no ambient trace to emit a "jit" equation
			// into. Flatten first (eval(J, x) == eval(flatten(J), x)) so
			// a jit-of-jit's cached jaxpr — whose
			// nested "jit" equation was recorded while staging was
			// Active() — never reaches evalClosedJaxprAny still holding
			// that equation; nothing implements a bare "jit" kernel for
			// it to dispatch through once tracers are gone.
			var err error
			outLeaves, err = evalClosedJaxprAny(ir.Flatten(entry.cj), leaves)
			if err != nil {
				return nil, err
			}
		}
		return pytree.Unflatten(entry.outTreedef, outLeaves)
	}
}

// mergeDynamic reassembles the positional argument list f expects,
// substituting dyn (unflattened back to the shape of the original
// dynamic arguments) at every non-static index and passing each
// static argument through untouched.
func mergeDynamic(args []any, isStatic map[int]bool, dyn any, wasSlice bool) any {
	if !wasSlice {
		if isStatic[0] {
			return args[0] // the sole argument is entirely static; dyn is the empty tree
		}
		return dyn
	}
	dynVals, dynWasSlice := asArgs(dyn)
	if !dynWasSlice {
		dynVals = []any{dyn}
	}
	full := make([]any, len(args))
	di := 0
	for i := range args {
		if isStatic[i] {
			full[i] = args[i]
		} else {
			full[i] = dynVals[di]
			di++
		}
	}
	return full
}
