// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package transpose_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/backend/cpu"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/ir"
	"github.com/lucent-ml/lucent/internal/registry"
	"github.com/lucent-ml/lucent/internal/trace"
	"github.com/lucent-ml/lucent/internal/trace/eager"
	"github.com/lucent-ml/lucent/internal/trace/jvpmode"
	"github.com/lucent-ml/lucent/internal/trace/transpose"
)

func init() {
	registry.Register(&registry.Primitive{
		Name:         "add",
		NumIn:        2,
		LinearInputs: []int{0, 1},
		Transpose: func(_ registry.Params, outCotangents, _ []any) ([]any, error) {
			return []any{outCotangents[0], outCotangents[0]}, nil
		},
	})
	registry.Register(&registry.Primitive{
		Name:         "scale",
		NumIn:        2,
		LinearInputs: []int{0}, // in[1] (the scale factor) is a captured constant, not a tangent
		Transpose: func(_ registry.Params, outCotangents, in []any) ([]any, error) {
			scale := in[1].(float32)
			ct := outCotangents[0].(*backend.Buffer)
			scaled := backend.NewBuffer(ct.Aval().Shape, ct.Aval().DType)
			for i, v := range ct.Data {
				scaled.Data[i] = v * float64(scale)
			}
			return []any{scaled}, nil
		},
	})
}

func scalarCt(v float64) *backend.Buffer {
	buf := backend.NewBuffer(aval.Shape{}, aval.Float32)
	buf.Data[0] = v
	return buf
}

// TestTransposeSumsRepeatedUseOfTheSameBinder checks that the jaxpr
// { a . let b = add a a in (b) } transposed with cotangentOutputs=[5]
// yields cotangentInputs=[10], since a flows into add twice.
func TestTransposeSumsRepeatedUseOfTheSameBinder(t *testing.T) {
	trace.Reset()
	eager.SetBackend(cpu.New())

	f32 := aval.ShapedArray(aval.Shape{}, aval.Float32)
	a := ir.NewVar(f32)
	b := ir.NewVar(f32)
	cj := &ir.ClosedJaxpr{Jaxpr: &ir.Jaxpr{
		InVars: []*ir.Var{a},
		Eqns: []*ir.JaxprEqn{
			{OutVars: []*ir.Var{b}, Primitive: registry.MustLookup("add"), InVars: []ir.Atom{ir.VarAtom(a), ir.VarAtom(a)}},
		},
		OutAtoms: []ir.Atom{ir.VarAtom(b)},
	}}

	cotangentIns, err := transpose.Transpose(cj, []any{scalarCt(5)})
	require.NoError(t, err)
	require.Len(t, cotangentIns, 1)
	require.InDelta(t, 10, cotangentIns[0].(*backend.Buffer).Data[0], 1e-9)
}

// TestTransposeReadsNonLinearConstantOperand covers a primitive
// linear in only one of its inputs, whose transpose rule needs the
// other (non-linear, constant) operand's concrete value.
func TestTransposeReadsNonLinearConstantOperand(t *testing.T) {
	trace.Reset()

	f32 := aval.ShapedArray(aval.Shape{}, aval.Float32)
	a := ir.NewVar(f32)
	b := ir.NewVar(f32)
	scaleConst := ir.NewVar(f32)
	cj := &ir.ClosedJaxpr{Jaxpr: &ir.Jaxpr{
		ConstVars: []*ir.Var{scaleConst},
		InVars:    []*ir.Var{a},
		Eqns: []*ir.JaxprEqn{
			{OutVars: []*ir.Var{b}, Primitive: registry.MustLookup("scale"), InVars: []ir.Atom{ir.VarAtom(a), ir.VarAtom(scaleConst)}},
		},
		OutAtoms: []ir.Atom{ir.VarAtom(b)},
	}, Consts: []any{float32(3)}}

	cotangentIns, err := transpose.Transpose(cj, []any{scalarCt(2)})
	require.NoError(t, err)
	require.InDelta(t, 6, cotangentIns[0].(*backend.Buffer).Data[0], 1e-9)
}

func TestTransposeIsZeroForAnUnconnectedInput(t *testing.T) {
	trace.Reset()

	f32 := aval.ShapedArray(aval.Shape{}, aval.Float32)
	a := ir.NewVar(f32)
	unused := ir.NewVar(f32)
	cj := &ir.ClosedJaxpr{Jaxpr: &ir.Jaxpr{
		InVars:   []*ir.Var{a, unused},
		OutAtoms: []ir.Atom{ir.VarAtom(a)},
	}}

	cotangentIns, err := transpose.Transpose(cj, []any{scalarCt(1)})
	require.NoError(t, err)
	require.True(t, jvpmode.IsZero(cotangentIns[1]))
}
