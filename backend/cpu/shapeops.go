// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

func init() {
	register("transpose", transposeKernel)
	register("broadcast", broadcastToKernel)
	register("reshape", reshapeKernel)
}

// transposeKernel permutes axes per params["axes"] ([]int), grounded
// on CPUBackend.Transpose's axis-validation-then-copy structure in
// internal/backend/cpu/backend.go.
func transposeKernel(in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error) {
	x := in[0]
	ndim := len(x.Shape)

	axes, _ := params["axes"].([]int)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		return nil, fmt.Errorf("transpose: axes length %d != rank %d", len(axes), ndim)
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			return nil, fmt.Errorf("transpose: invalid or duplicate axis %d", ax)
		}
		seen[ax] = true
	}

	outShape := make(aval.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = x.Shape[ax]
	}

	inStrides := x.Shape.Strides()
	outStrides := outShape.Strides()
	out := make([]float64, len(x.Data))
	for outIdx := range out {
		rem := outIdx
		inFlat := 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			inFlat += coord * inStrides[axes[d]]
		}
		out[outIdx] = x.Data[inFlat]
	}
	return []*backend.Buffer{{Shape: outShape, DType: x.DType, Data: out}}, nil
}

// broadcastToKernel expands x to params["shape"] (aval.Shape), the
// explicit counterpart of the implicit broadcasting every binaryKernel
// already performs — used when a transformation (e.g. transpose of a
// broadcast) needs to materialize the broadcast itself.
func broadcastToKernel(in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error) {
	x := in[0]
	outShape, _ := params["shape"].(aval.Shape)
	if outShape == nil {
		return nil, fmt.Errorf("broadcast: missing shape param")
	}
	outStrides := outShape.Strides()
	inStrides := broadcastStrides(x.Shape, outShape)
	n := outShape.NumElements()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = x.Data[flatIndex(i, outStrides, inStrides)]
	}
	return []*backend.Buffer{{Shape: outShape, DType: x.DType, Data: out}}, nil
}

// reshapeKernel reinterprets x's flat, row-major Data under
// params["shape"] (aval.Shape) without touching a single element —
// reshape never moves data, only relabels it, the same invariant the
// teacher's RawTensor.Reshape documents before it hands back a view
// sharing the original storage.
func reshapeKernel(in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error) {
	x := in[0]
	outShape, _ := params["shape"].(aval.Shape)
	if outShape == nil {
		return nil, fmt.Errorf("reshape: missing shape param")
	}
	if outShape.NumElements() != len(x.Data) {
		return nil, fmt.Errorf("reshape: %d elements cannot reshape to %s", len(x.Data), outShape)
	}
	return []*backend.Buffer{{Shape: outShape, DType: x.DType, Data: x.Data}}, nil
}
