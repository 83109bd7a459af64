// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package trace implements the interpreter stack: a dynamically
// scoped stack of MainTrace records through which bind() routes every
// primitive application. It generalizes the teacher's
// internal/autodiff.GradientTape — which records onto one flat tape
// guarded by a StartRecording/StopRecording boolean — into a LIFO
// stack of heterogeneous trace kinds, each pushed and popped as a
// scoped acquisition guaranteed to be released on every exit path.
package trace

import "github.com/lucent-ml/lucent/internal/registry"

// Kind identifies which transformation a MainTrace implements.
type Kind int

const (
	// Eager is the reserved bottom trace (level 0): every bind() call
	// with no higher trace in scope falls through to it and executes
	// immediately against the backend.
	Eager Kind = iota
	JVP
	Jaxpr
	Batch
)

func (k Kind) String() string {
	switch k {
	case Eager:
		return "eager"
	case JVP:
		return "jvp"
	case Jaxpr:
		return "jaxpr"
	case Batch:
		return "batch"
	default:
		return "unknown"
	}
}

// MainTrace is one entry of the interpreter stack: a level, a trace
// kind, and whatever global data that trace kind needs for its
// dynamic extent (e.g. the jaxpr builder's equation list).
type MainTrace struct {
	Level  int64
	Kind   Kind
	Global any
	live   bool
}

// Live reports whether mt is still the owner of any tracer that may
// legally be used — false once mt has been popped. bind() refuses to
// dispatch on a tracer whose owner is no longer live: using a tracer
// after its trace was popped errors out before any backend dispatch.
func (mt *MainTrace) Live() bool { return mt.live }

var (
	bottom = &MainTrace{Level: 0, Kind: Eager, live: true}

	stack         []*MainTrace
	nextLevel     int64 = 1
	poisoned      bool
	dynamicTraceP *MainTrace
)

// Reset clears all pushed traces and the dynamic trace override. It
// exists for tests: production code should never need to reset the
// process-wide stack mid-run.
func Reset() {
	stack = nil
	dynamicTraceP = nil
	poisoned = false
	nextLevel = 1
}

// Push starts a new trace of the given kind for the dynamic extent of
// the caller's transformation. The returned pop function must be
// called exactly once, typically via defer, on every exit path —
// violating LIFO order poisons the stack.
func Push(kind Kind, global any) (mt *MainTrace, pop func()) {
	if poisoned {
		panic("trace: interpreter stack is poisoned by a prior LIFO violation; refusing further use")
	}
	mt = &MainTrace{Level: nextLevel, Kind: kind, Global: global, live: true}
	nextLevel++
	stack = append(stack, mt)

	done := false
	pop = func() {
		if done {
			return
		}
		done = true
		if len(stack) == 0 || stack[len(stack)-1] != mt {
			poisoned = true
			panic("trace: interpreter stack LIFO discipline violated on pop")
		}
		stack = stack[:len(stack)-1]
		mt.live = false
	}
	return mt, pop
}

// Bottom returns the reserved level-0 eager trace.
func Bottom() *MainTrace { return bottom }

// Active reports whether any trace beyond the reserved bottom eager
// trace is currently pushed. lucent.Jit uses this to decide whether it
// is being called at true top level (dispatch by concretely evaluating
// its cached jaxpr) or nested inside another transformation (dispatch
// by emitting a "jit" equation and letting that transformation's own
// rule for it run).
func Active() bool { return len(stack) > 0 }

// WithDynamicTrace overrides the effective top-of-stack level for the
// duration the caller holds the returned restore function (used by
// jit to force every nested bind() to stage). Only one dynamic trace
// may be active at a time.
func WithDynamicTrace(mt *MainTrace) (restore func()) {
	prev := dynamicTraceP
	dynamicTraceP = mt
	return func() { dynamicTraceP = prev }
}

// DynamicTrace returns the current dynamic trace override, or nil.
func DynamicTrace() *MainTrace { return dynamicTraceP }

// RegisterInterpreter installs the behavior table for a trace kind.
// Concrete trace packages (eager, jvpmode, stage, batchmode) call this
// from an init() so internal/trace never imports them back — the same
// registration-by-side-effect idiom internal/registry uses for primitives.
func RegisterInterpreter(kind Kind, interp Interpreter) {
	interpreters[kind] = interp
}

var interpreters = map[Kind]Interpreter{}

// Interpreter is what a trace kind must supply to participate in
// bind(): lifting a bare value or a lower-level tracer up to this
// trace, processing a primitive application, and unboxing an output
// once this trace no longer needs it.
type Interpreter interface {
	Pure(mt *MainTrace, x any) *Tracer
	Lift(mt *MainTrace, t *Tracer) *Tracer
	ProcessPrimitive(mt *MainTrace, prim *registry.Primitive, args []*Tracer, params registry.Params) ([]*Tracer, error)
	FullLower(t *Tracer) *Tracer
}
