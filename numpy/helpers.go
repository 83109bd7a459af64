// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package numpy is the numpy-like primitive set: one exported
// *registry.Primitive per operation (Add, Mul, Neg, Sin, Cos, Sum,
// Greater, Less, Transpose, Broadcast, Matmul, …), each registered
// with its abstractEval/jvp/transpose/batch rule table at init time.
// The package defines no wrapper functions; a primitive is applied by
// passing it to trace.Bind. Grounded on internal/autodiff/ops/*.go, one
// primitive per file with the same doc-comment density — what varies
// there is the derivative math in each op's Backward, which becomes
// each primitive's JVP/Transpose rule here.
package numpy

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/batchmode"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
)

// avalOf computes the abstract value of a raw leaf value flowing
// through bind — a tracer of whatever trace is currently active, a
// concrete buffer, a bare Go scalar, or a symbolic zero tangent.
// Every primitive's JVP/Transpose rule needs this to inspect shapes
// without caring which trace produced the value.
func avalOf(x any) aval.Aval {
	switch v := x.(type) {
	case *trace.Tracer:
		return v.Aval()
	case *backend.Buffer:
		return v.Aval()
	case jvpmode.Zero:
		return v.Aval
	case float64:
		return aval.ShapedArray(aval.Shape{}, aval.Float64)
	case float32:
		return aval.ShapedArray(aval.Shape{}, aval.Float32)
	default:
		panic("numpy: value of unrecognized type flowing through bind")
	}
}

// broadcastBinaryEval is the abstractEval rule shared by every
// elementwise binary primitive (add, sub, mul, div): output shape is
// the broadcast of both input shapes, output dtype their promotion.
func broadcastBinaryEval(_ registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	shape, _, err := aval.BroadcastShapes(in[0].Shape, in[1].Shape)
	if err != nil {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "", err.Error())
	}
	return []aval.Aval{aval.ShapedArray(shape, aval.Promote(in[0].DType, in[1].DType))}, nil
}

// compareBinaryEval is broadcastBinaryEval's comparison-primitive
// counterpart: same shape rule, but the result is always bool.
func compareBinaryEval(_ registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	shape, _, err := aval.BroadcastShapes(in[0].Shape, in[1].Shape)
	if err != nil {
		return nil, lucenterr.New(lucenterr.ShapeMismatch, "", err.Error())
	}
	return []aval.Aval{aval.ShapedArray(shape, aval.Bool)}, nil
}

// unaryEval is the abstractEval rule shared by shape-preserving unary
// primitives (neg, sin, cos): the output has exactly the input's aval.
func unaryEval(_ registry.Params, in ...aval.Aval) ([]aval.Aval, error) {
	return []aval.Aval{in[0]}, nil
}

// unbroadcastCotangent sums ct back down to targetShape, the adjoint
// of the implicit broadcast every binaryKernel performs — directly
// grounded on internal/autodiff/ops/helpers.go's reduceBroadcast: sum
// off any extra leading dimensions first, then sum (with keepdims) any
// dimension where targetShape is 1 but ct's isn't.
func unbroadcastCotangent(ct any, targetShape aval.Aval) (any, error) {
	if jvpmode.IsZero(ct) {
		return jvpmode.Zero{Aval: targetShape}, nil
	}
	curShape := avalOf(ct).Shape
	want := targetShape.Shape
	if curShape.Equal(want) {
		return ct, nil
	}

	reduceSum := registry.MustLookup("reduce_sum")
	cur := ct
	if len(want) == 0 {
		axes := make([]int, len(curShape))
		for i := range axes {
			axes[i] = i
		}
		outs, err := trace.Bind(reduceSum, []any{cur}, registry.Params{"axes": axes, "keepdims": false})
		if err != nil {
			return nil, err
		}
		return outs[0].Payload, nil
	}

	if len(want) < len(curShape) {
		n := len(curShape) - len(want)
		axes := make([]int, n)
		for i := range axes {
			axes[i] = i
		}
		outs, err := trace.Bind(reduceSum, []any{cur}, registry.Params{"axes": axes, "keepdims": false})
		if err != nil {
			return nil, err
		}
		cur = outs[0].Payload
		curShape = curShape[n:]
	}

	var sumAxes []int
	for i := range want {
		if want[i] == 1 && curShape[i] > 1 {
			sumAxes = append(sumAxes, i)
		}
	}
	if len(sumAxes) == 0 {
		return cur, nil
	}
	outs, err := trace.Bind(reduceSum, []any{cur}, registry.Params{"axes": sumAxes, "keepdims": true})
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}

// bind is a short alias every primitive's JVP rule uses to recompute
// its own primal or tangent generically, regardless of whether the
// operands bottom out at a concrete buffer or a further-nested tracer
// (the pattern internal/trace/jvpmode's own tests establish).
func bind(prim *registry.Primitive, args ...any) (any, error) {
	outs, err := trace.Bind(prim, args, registry.Params{})
	if err != nil {
		return nil, err
	}
	return outs[0].Payload, nil
}

// elementwiseBatch installs DefaultElementwiseBatchRule for prim —
// every elementwise primitive in this package shares it.
func elementwiseBatch(prim *registry.Primitive) registry.BatchFn {
	return batchmode.DefaultElementwiseBatchRule(prim)
}

// addTangents is the zero-aware "+" every binary JVP rule needs to
// combine two tangent contributions: a symbolic Zero is the additive
// identity, so it is never worth materializing a buffer just to add
// it to something.
func addTangents(outAval aval.Aval, a, b any) (any, error) {
	aZero, bZero := jvpmode.IsZero(a), jvpmode.IsZero(b)
	switch {
	case aZero && bZero:
		return jvpmode.Zero{Aval: outAval}, nil
	case aZero:
		return b, nil
	case bZero:
		return a, nil
	default:
		return bind(registry.MustLookup("add"), a, b)
	}
}

// scaleTangent multiplies tangent t by the constant factor, the shared
// shape of a mul/div JVP rule's per-side contribution: zero in, zero
// out, otherwise bind the registered "mul".
func scaleTangent(outAval aval.Aval, t any, factor any) (any, error) {
	if jvpmode.IsZero(t) {
		return jvpmode.Zero{Aval: outAval}, nil
	}
	return bind(registry.MustLookup("mul"), t, factor)
}

// negateTangent is sub's "- " counterpart to addTangents: zero in,
// zero out, otherwise bind the registered "neg".
func negateTangent(outAval aval.Aval, t any) (any, error) {
	if jvpmode.IsZero(t) {
		return jvpmode.Zero{Aval: outAval}, nil
	}
	return bind(registry.MustLookup("neg"), t)
}

// zeroTangentLike builds the symbolic zero tangent for a primitive
// output with no derivative of its own (a comparison, say) — x's aval.
func zeroTangentLike(x any) any {
	return jvpmode.Zero{Aval: avalOf(x)}
}
