// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/registry"
)

func init() {
	register("matmul", matmulKernel)
}

// matmulKernel performs 2D matrix multiplication. The teacher's own
// internal/backend/cpu/matmul.go runs a naive O(n^3) triple loop with
// a "TODO: Replace with gonum/blas SGEMM for better performance"; this
// backend fulfills that TODO directly with gonum/mat, the BLAS-backed
// dense matrix package the gomlx-gomlx example pulls in as an indirect
// dependency for its own linear algebra.
func matmulKernel(in []*backend.Buffer, _ registry.Params) ([]*backend.Buffer, error) {
	a, b := in[0], in[1]
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul: only 2D operands supported, got ranks %d and %d", len(a.Shape), len(b.Shape))
	}
	m, k := a.Shape[0], a.Shape[1]
	kAlt, n := b.Shape[0], b.Shape[1]
	if k != kAlt {
		return nil, fmt.Errorf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	am := mat.NewDense(m, k, a.Data)
	bm := mat.NewDense(k, n, b.Data)
	var cm mat.Dense
	cm.Mul(am, bm)

	out := make([]float64, m*n)
	copy(out, cm.RawMatrix().Data)

	return []*backend.Buffer{{Shape: aval.Shape{m, n}, DType: aval.Promote(a.DType, b.DType), Data: out}}, nil
}
