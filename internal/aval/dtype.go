// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package aval implements the abstract-value data model shared by every
// trace kind: dtypes, shapes, broadcasting, and the ShapedArray /
// ConcreteArray abstract value itself.
package aval

import "fmt"

// DType is the runtime dtype of a tensor value. Unlike the teacher's
// tensor.DType (a compile-time generic constraint), this is a closed
// runtime enum: the IR carries dtypes as data, not as Go type parameters.
type DType int

// Supported dtypes, ordered by the promotion lattice:
// bool < int32 < int64 < float16 < float32 < float64 < complex64.
const (
	Bool DType = iota
	Int32
	Int64
	Float16
	Float32
	Float64
	Complex64
)

// Size returns the in-memory byte size of one element of this dtype.
func (d DType) Size() int {
	switch d {
	case Bool:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	case Float16:
		return 2
	case Complex64:
		return 8
	default:
		panic(fmt.Sprintf("aval: unknown dtype %d", int(d)))
	}
}

// String returns the canonical jaxpr spelling of the dtype (f32, i32, …).
func (d DType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Float16:
		return "f16"
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Complex64:
		return "c64"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// IsFloat reports whether d is one of the floating dtypes differentiation
// is defined over. Integer and bool dtypes only ever carry zero tangents.
func (d DType) IsFloat() bool {
	switch d {
	case Float16, Float32, Float64, Complex64:
		return true
	default:
		return false
	}
}

// Promote returns the dtype at the higher position of a and b in the
// promotion lattice.
func Promote(a, b DType) DType {
	if a > b {
		return a
	}
	return b
}
