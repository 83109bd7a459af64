// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package trace

import "github.com/lucent-ml/lucent/internal/aval"

// Tracer is the single tagged-variant tracer type used by every trace
// kind, dispatching on a function table indexed by trace kind. Go has
// no sum types, so each trace kind stores its own payload shape
// behind Payload and type-asserts it back in its Interpreter methods;
// the fields every trace needs regardless of kind — which MainTrace
// owns this tracer, and its abstract value — live directly on Tracer.
type Tracer struct {
	Owner   *MainTrace
	AvalVal aval.Aval
	Payload any
}

// NewTracer constructs a tracer owned by mt with the given abstract
// value and kind-specific payload.
func NewTracer(mt *MainTrace, av aval.Aval, payload any) *Tracer {
	return &Tracer{Owner: mt, AvalVal: av, Payload: payload}
}

// Aval returns the tracer's abstract value, independent of payload kind.
func (t *Tracer) Aval() aval.Aval { return t.AvalVal }
