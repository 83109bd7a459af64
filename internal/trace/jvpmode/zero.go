// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package jvpmode

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
)

// Zero is the symbolic zero tangent: rather than materializing an
// actual zero-filled buffer for every untouched tangent, a tangent we
// know statically is zero stays
// a bare (aval) marker until something forces it into a real value.
// JVP rules (numpy/*.go) check IsZero before doing any work — e.g.
// add's rule skips the add entirely when one side is already Zero.
type Zero struct {
	Aval aval.Aval
}

// IsZero reports whether x is the symbolic zero tangent.
func IsZero(x any) bool {
	_, ok := x.(Zero)
	return ok
}

// AvalOf returns the aval the zero tangent carries.
func (z Zero) AvalOf() aval.Aval { return z.Aval }

// Materialize turns a symbolic zero into a real zero-filled buffer,
// needed wherever a downstream consumer (transpose's final cotangent
// output, a user reading grad's result) cannot accept the marker.
func Materialize(z Zero) *backend.Buffer {
	return backend.NewBuffer(z.Aval.Shape, z.Aval.DType)
}

// OrZero returns tangent if it isn't nil, otherwise the zero tangent
// for primal's aval — used when lifting a plain value that carries no
// tangent information of its own.
func OrZero(tangent any, primalAval aval.Aval) any {
	if tangent == nil {
		return Zero{Aval: primalAval}
	}
	return tangent
}
