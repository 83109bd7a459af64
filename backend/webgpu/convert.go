//go:build lucent_webgpu

// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package webgpu

import (
	"encoding/binary"
	"math"
)

// float64sToF32Bytes packs each float64 into 4 little-endian bytes as
// a float32, the wire format every WGSL storage buffer above expects.
// Grounded on the teacher's math.Float32bits/binary.LittleEndian
// pairing in internal/backend/webgpu/flash_attention.go.
func float64sToF32Bytes(data []float64) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(float32(v)))
	}
	return out
}

// f32BytesToFloat64s is the inverse of float64sToF32Bytes, used when
// reading a result buffer back from the GPU.
func f32BytesToFloat64s(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4])))
	}
	return out
}
