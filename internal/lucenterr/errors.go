// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lucenterr implements the tagged error kinds tracing can
// raise. It follows the teacher's internal/serialization pairing of sentinel
// errors.New values (for errors.Is comparisons) with a richer struct
// that carries the offending primitive and a human-readable detail.
package lucenterr

import (
	"errors"
	"fmt"
)

// Kind tags the error families tracing can raise.
type Kind int

const (
	// ShapeMismatch — incompatible broadcast or rank mismatch at abstractEval.
	ShapeMismatch Kind = iota
	// DTypeMismatch — promotion refused or integer op given floats, etc.
	DTypeMismatch
	// MissingRule — no rule of the required kind registered for a primitive.
	MissingRule
	// LevelViolation — a tracer escaped its trace, or levels were misordered.
	LevelViolation
	// StaticArgChange — jit called with non-hashable or changing static args.
	StaticArgChange
	// PytreeStructureMismatch — mismatched treedefs across calls of the same
	// transformed function, or a map() over differently-shaped trees.
	PytreeStructureMismatch
	// BackendError wraps an error returned verbatim by the backend.
	BackendError
	// OutputNotScalar — grad applied to a function with non-scalar output.
	OutputNotScalar
)

func (k Kind) String() string {
	switch k {
	case ShapeMismatch:
		return "ShapeMismatch"
	case DTypeMismatch:
		return "DTypeMismatch"
	case MissingRule:
		return "MissingRule"
	case LevelViolation:
		return "LevelViolation"
	case StaticArgChange:
		return "StaticArgChange"
	case PytreeStructureMismatch:
		return "PytreeStructureMismatch"
	case BackendError:
		return "BackendError"
	case OutputNotScalar:
		return "OutputNotScalar"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels, one per Kind, so callers can use errors.Is(err, lucenterr.Missing)
// without matching the struct fields.
var (
	Shape     = errors.New("lucent: shape mismatch")
	DType     = errors.New("lucent: dtype mismatch")
	Missing   = errors.New("lucent: missing rule")
	Level     = errors.New("lucent: level violation")
	StaticArg = errors.New("lucent: static argument changed")
	Pytree    = errors.New("lucent: pytree structure mismatch")
	Backend   = errors.New("lucent: backend error")
	NotScalar = errors.New("lucent: grad output is not scalar")
)

func sentinelFor(k Kind) error {
	switch k {
	case ShapeMismatch:
		return Shape
	case DTypeMismatch:
		return DType
	case MissingRule:
		return Missing
	case LevelViolation:
		return Level
	case StaticArgChange:
		return StaticArg
	case PytreeStructureMismatch:
		return Pytree
	case BackendError:
		return Backend
	case OutputNotScalar:
		return NotScalar
	default:
		return nil
	}
}

// Error is the tagged error value surfaced by tracing: a tracing-time
// error aborts the in-progress transformation and is never swallowed
// or retried.
type Error struct {
	Kind      Kind
	Primitive string // name of the offending primitive, "" if not applicable
	Detail    string
	Wrapped   error // underlying error, set for BackendError
}

// New builds an *Error of the given kind.
func New(kind Kind, primitive, detail string) *Error {
	return &Error{Kind: kind, Primitive: primitive, Detail: detail}
}

// Wrap builds a BackendError wrapping err verbatim.
func Wrap(primitive string, err error) *Error {
	return &Error{Kind: BackendError, Primitive: primitive, Detail: err.Error(), Wrapped: err}
}

func (e *Error) Error() string {
	if e.Primitive != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Primitive, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the wrapped backend error, if any, to errors.Unwrap/errors.As.
func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, lucenterr.Missing) (etc.) match by Kind, not identity.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}
