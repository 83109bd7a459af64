// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package aval

// Level distinguishes the two abstract-value kinds:
// ShapedArray (shape+dtype only) and ConcreteArray (adds a captured
// concrete buffer, used by constant folding in the jaxpr trace).
type Level int

const (
	// Shaped is the level of a value known only by its shape and dtype.
	Shaped Level = iota
	// Concrete is the level of a value that additionally carries a
	// concrete backend buffer captured at trace time.
	Concrete
)

// Aval is the static type of a value flowing through the IR: a shape,
// a dtype, and — for ConcreteArray — an opaque backend buffer handle.
// Equality on Aval is structural on (Shape, DType);
// the Buffer field never participates in equality.
type Aval struct {
	Shape  Shape
	DType  DType
	Level  Level
	Buffer any // opaque backend.Buffer handle, valid only when Level == Concrete
}

// ShapedArray builds a Shaped-level abstract value.
func ShapedArray(shape Shape, dtype DType) Aval {
	return Aval{Shape: shape.Clone(), DType: dtype, Level: Shaped}
}

// ConcreteArray builds a Concrete-level abstract value carrying buf,
// the backend handle captured at trace time.
func ConcreteArray(shape Shape, dtype DType, buf any) Aval {
	return Aval{Shape: shape.Clone(), DType: dtype, Level: Concrete, Buffer: buf}
}

// Equal is structural equality: shape and dtype only.
func (a Aval) Equal(b Aval) bool {
	return a.Shape.Equal(b.Shape) && a.DType == b.DType
}

// ToShaped drops any captured buffer, returning the Shaped-level
// projection of a. Used whenever a transformation needs only the type
// of a value, never its concrete contents (e.g. building a jaxpr binder).
func (a Aval) ToShaped() Aval {
	return Aval{Shape: a.Shape, DType: a.DType, Level: Shaped}
}

// String renders "f32[2,3]" style, matching the jaxpr binder annotation
// syntax.
func (a Aval) String() string {
	return a.DType.String() + a.Shape.String()
}

// Rank is the number of dimensions (len(Shape)).
func (a Aval) Rank() int { return len(a.Shape) }
