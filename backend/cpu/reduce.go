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
	register("reduce_sum", reduceSumKernel)
}

// reduceSumKernel sums x along params["axes"] ([]int, negative indices
// normalized the way the teacher's SumDim normalizes a single dim in
// internal/backend/cpu/reduce.go), keeping the reduced axes at size 1
// when params["keepdims"] is true. An absent "axes" key reduces every
// axis; a present-but-empty []int reduces none, since key presence
// (not length) is what distinguishes "all axes" from "no axes" here.
func reduceSumKernel(in []*backend.Buffer, params registry.Params) ([]*backend.Buffer, error) {
	x := in[0]
	ndim := len(x.Shape)

	reduce := make([]bool, ndim)
	if axesRaw, ok := params["axes"]; !ok {
		for i := range reduce {
			reduce[i] = true
		}
	} else {
		axes, _ := axesRaw.([]int)
		for _, ax := range axes {
			if ax < 0 {
				ax += ndim
			}
			if ax < 0 || ax >= ndim {
				return nil, fmt.Errorf("reduce_sum: axis %d out of range for %dD input", ax, ndim)
			}
			reduce[ax] = true
		}
	}
	keepdims, _ := params["keepdims"].(bool)

	outShapeFull := x.Shape.Clone()
	for i, r := range reduce {
		if r {
			outShapeFull[i] = 1
		}
	}

	full := make([]float64, outShapeFull.NumElements())
	inStrides := x.Shape.Strides()
	outStrides := outShapeFull.Strides()
	for i, v := range x.Data {
		rem := i
		outIdx := 0
		for d := 0; d < ndim; d++ {
			coord := rem / inStrides[d]
			rem %= inStrides[d]
			if reduce[d] {
				coord = 0
			}
			outIdx += coord * outStrides[d]
		}
		full[outIdx] += v
	}

	outShape := outShapeFull
	if !keepdims {
		squeezed := make(aval.Shape, 0, ndim)
		for i, r := range reduce {
			if !r {
				squeezed = append(squeezed, outShapeFull[i])
			}
		}
		outShape = squeezed
	}

	return []*backend.Buffer{{Shape: outShape, DType: x.DType, Data: full}}, nil
}
