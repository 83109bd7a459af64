// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure-Go reference backend.Backend.
//
// # Overview
//
// backend/cpu implements every primitive in the core set: add, sub,
// mul, div, neg, sin, cos, matmul, reduce_sum, broadcast,
// transpose and the elementwise comparisons. Matrix multiplication is
// delegated to gonum/mat rather than the naive triple loop the
// teacher's own internal/backend/cpu/matmul.go left as a TODO.
//
// # Basic Usage
//
//	import (
//	    "github.com/lucent-ml/lucent/backend/cpu"
//	    "github.com/lucent-ml/lucent/lucent"
//	)
//
//	func main() {
//	    dev := cpu.New()
//	    lucent.SetDefaultBackend(dev)
//	}
//
// # Thread Safety
//
// Backend holds no mutable state; every kernel is a pure function of
// its input buffers, so a single *Backend is safe for concurrent use.
package cpu
