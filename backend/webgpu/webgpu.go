//go:build lucent_webgpu

// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu implements backend.Backend for a subset of primitives
// ("add", "mul") by dispatching the teacher's WGSL compute shaders on a
// real GPU device via github.com/go-webgpu/webgpu/wgpu — the same
// dependency the teacher's internal/backend/webgpu package wires.
// Everything outside that subset returns lucenterr.MissingRule: this
// backend exists to exercise the device-setup, shader-cache and
// dispatch path end to end, not to compete with backend/cpu on
// coverage. Kept behind the lucent_webgpu build tag so the module
// still builds without the native wgpu_native library present,
// mirroring the teacher's New() recovering from a missing native
// library and returning an error instead of crashing the process.
package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	lucentbackend "github.com/lucent-ml/lucent/backend"
	"github.com/lucent-ml/lucent/internal/aval"
	"github.com/lucent-ml/lucent/internal/lucenterr"
	"github.com/lucent-ml/lucent/internal/registry"
)

const workgroupSize = 256

var binaryShaders = map[string]string{
	"add": `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
struct Params { size: u32, }
@group(0) @binding(3) var<uniform> params: Params;
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] + b[idx];
    }
}
`,
	"mul": `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;
struct Params { size: u32, }
@group(0) @binding(3) var<uniform> params: Params;
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] * b[idx];
    }
}
`,
}

// Backend is the WebGPU device-backed implementation of backend.Backend.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
}

var _ lucentbackend.Backend = (*Backend)(nil)

// New requests a GPU adapter and device, recovering (like the
// teacher's internal/backend/webgpu.New) from a panic raised deep in
// the native bindings when wgpu_native isn't installed, turning it
// into a plain error instead of crashing the process.
func New() (backend *Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, aerr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceHighPerformance})
	if aerr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", aerr)
	}
	device, derr := adapter.RequestDevice(nil)
	if derr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", derr)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Backend{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   map[string]*wgpu.ShaderModule{},
		pipelines: map[string]*wgpu.ComputePipeline{},
	}, nil
}

// IsAvailable reports whether a WebGPU device can be acquired on this
// system, for callers that want to fall back to backend/cpu.
func IsAvailable() bool {
	b, err := New()
	if err != nil {
		return false
	}
	b.Release()
	return true
}

// Release frees the GPU device and instance.
func (b *Backend) Release() {
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}

func (b *Backend) Name() string { return "webgpu" }

func (b *Backend) FromScalar(x float64, dtype aval.DType) (*lucentbackend.Buffer, error) {
	return &lucentbackend.Buffer{Shape: aval.Shape{}, DType: dtype, Data: []float64{x}}, nil
}

func (b *Backend) FromTypedBuffer(data []float64, shape aval.Shape, dtype aval.DType) (*lucentbackend.Buffer, error) {
	return &lucentbackend.Buffer{Shape: shape.Clone(), DType: dtype, Data: data}, nil
}

func (b *Backend) BlockUntilReady(buf *lucentbackend.Buffer) (lucentbackend.Completion, error) {
	return lucentbackend.Ready, nil
}

// Impl dispatches "add"/"mul" to the GPU; every other primitive
// returns MissingRule, since this backend's job is to
// demonstrate the dispatch path, not to implement a GPU kernel library.
// "copy" is the one exception: it has no domain meaning of its own (see
// internal/ir/coreprims.go) and ir.Flatten needs it to bottom out on
// whichever device is active, so it passes the buffer through unchanged
// instead of round-tripping to the GPU for a no-op.
func (b *Backend) Impl(prim *registry.Primitive, in []*lucentbackend.Buffer, params registry.Params) ([]*lucentbackend.Buffer, error) {
	if prim.Name == "copy" {
		return in, nil
	}
	code, ok := binaryShaders[prim.Name]
	if !ok {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "backend/webgpu only implements add and mul")
	}
	if len(in) != 2 {
		return nil, lucenterr.New(lucenterr.MissingRule, prim.Name, "expected 2 operands")
	}
	out, err := b.runBinaryF32(prim.Name, code, in[0], in[1])
	if err != nil {
		return nil, lucenterr.Wrap(prim.Name, err)
	}
	return []*lucentbackend.Buffer{out}, nil
}

func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if s, ok := b.shaders[name]; ok {
		b.mu.RUnlock()
		return s
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)
	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()
	return shader
}

func (b *Backend) pipelineFor(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if p, ok := b.pipelines[name]; ok {
		b.mu.RUnlock()
		return p
	}
	b.mu.RUnlock()

	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")
	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()
	return pipeline
}

// runBinaryF32 mirrors the teacher's runBinaryOp in
// internal/backend/webgpu/compute.go: upload two f32 storage buffers
// and a uniform size param, dispatch ceil(n/256) workgroups, and read
// the result back through a mapped staging buffer.
func (b *Backend) runBinaryF32(name, code string, a, other *lucentbackend.Buffer) (*lucentbackend.Buffer, error) {
	if !a.Shape.Equal(other.Shape) {
		return nil, fmt.Errorf("webgpu: shape mismatch: %v vs %v", a.Shape, other.Shape)
	}
	n := a.Shape.NumElements()

	shader := b.compileShader(name, code)
	pipeline := b.pipelineFor(name, shader)

	aBytes := float64sToF32Bytes(a.Data)
	bBytes := float64sToF32Bytes(other.Data)
	resultSize := uint64(n * 4)

	bufferA := b.uploadBuffer(aBytes, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferA.Release()
	bufferB := b.uploadBuffer(bBytes, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferB.Release()

	bufferResult := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  resultSize,
	})
	defer bufferResult.Release()

	paramBytes := make([]byte, 16)
	binary.LittleEndian.PutUint32(paramBytes[0:4], uint32(n))
	bufferParams := b.uploadBuffer(paramBytes, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	defer bufferParams.Release()

	layout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(layout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, resultSize),
		wgpu.BufferBindingEntry(1, bufferB, 0, resultSize),
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	workgroups := uint32((n + workgroupSize - 1) / workgroupSize)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
	cmd := encoder.Finish(nil)
	b.queue.Submit(cmd)

	resultBytes, err := b.readBuffer(bufferResult, resultSize)
	if err != nil {
		return nil, err
	}
	return &lucentbackend.Buffer{Shape: a.Shape.Clone(), DType: aval.Float32, Data: f32BytesToFloat64s(resultBytes)}, nil
}

func (b *Backend) uploadBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	buf := b.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: usage, Size: uint64(len(data)), MappedAtCreation: wgpu.True})
	ptr := buf.GetMappedRange(0, uint64(len(data)))
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	dst := unsafe.Slice((*byte)(ptr), len(data))
	copy(dst, data)
	buf.Unmap()
	return buf
}

func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst, Size: size})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmd := encoder.Finish(nil)
	b.queue.Submit(cmd)

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	ptr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	src2 := unsafe.Slice((*byte)(ptr), size)
	out := make([]byte, size)
	copy(out, src2)
	staging.Unmap()
	return out, nil
}
