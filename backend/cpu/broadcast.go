// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
)

// broadcastStrides computes strides for walking inShape as if it had
// already been broadcast to outShape: padded and size-1 axes get a
// stride of 0 so the same source element is reused for every step
// along that axis. Ported from the teacher's
// computeBroadcastStridesForShape in internal/backend/cpu/broadcast_helpers.go.
func broadcastStrides(inShape, outShape aval.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)
	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.Strides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}
	return strides
}

// flatIndex maps a flat index into outShape to the corresponding flat
// index into a buffer walked with inStrides, the broadcast-adjusted
// strides from broadcastStrides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	n := len(outStrides)
	flat := 0
	for i := 0; i < n; i++ {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flat += coord * inStrides[i]
	}
	return flat
}

// broadcastBinary applies op element-wise over a and b, broadcasting
// both to their common shape.
func broadcastBinary(a, b *backend.Buffer, op func(x, y float64) float64) (*backend.Buffer, error) {
	outShape, _, err := aval.BroadcastShapes(a.Shape, b.Shape)
	if err != nil {
		return nil, err
	}
	outStrides := outShape.Strides()
	aStrides := broadcastStrides(a.Shape, outShape)
	bStrides := broadcastStrides(b.Shape, outShape)

	n := outShape.NumElements()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = op(a.Data[flatIndex(i, outStrides, aStrides)], b.Data[flatIndex(i, outStrides, bStrides)])
	}
	return &backend.Buffer{Shape: outShape, DType: aval.Promote(a.DType, b.DType), Data: out}, nil
}
