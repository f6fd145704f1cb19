// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: Pure Go kernels with chunked parallelism
//
// Decorator backends for additional functionality:
//   - autodiff: Automatic differentiation (wraps any backend)
//
// The operation surface is shaped around volumetric (video) networks:
// 3D convolutions, 3D pooling and their gradient kernels are first-class
// backend operations because autodiff delegates backward passes to them.
//
// Example:
//
//	import (
//	    "github.com/drift-ml/drift/backend/cpu"
//	    "github.com/drift-ml/drift/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math functions.
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Volumetric convolution over [N, C, D, H, W] input with
	// [COut, CIn, KD, KH, KW] kernel. Stride and padding apply to all
	// three spatial axes.
	Conv3D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv3DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor
	Conv3DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor

	// Transposed volumetric convolution over [N, CIn, D, H, W] input with
	// [CIn, COut, KD, KH, KW] kernel. Output spatial size is
	// (in-1)*stride + kernel per axis.
	ConvTranspose3D(input, kernel *RawTensor, stride int) *RawTensor
	ConvTranspose3DKernelBackward(input, kernel, outputGrad *RawTensor, stride int) *RawTensor

	// Volumetric max pooling with cubic kernel and stride.
	MaxPool3D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool3DBackward(input, outputGrad *RawTensor, maxIndices []int, kernelSize, stride int) *RawTensor

	// Volumetric average pooling with per-axis kernel and stride.
	AvgPool3D(input *RawTensor, kernel, stride [3]int) *RawTensor

	// Pad3D zero-pads the three spatial axes of a [N, C, D, H, W] tensor.
	// pads holds (before, after) pairs in axis order D, H, W.
	Pad3D(x *RawTensor, pads [6]int) *RawTensor
	// Pad3DBackward slices the padding off an output gradient, inverting Pad3D.
	Pad3DBackward(outputGrad *RawTensor, pads [6]int) *RawTensor

	// UpsampleNearest3D repeats elements along the spatial axes by the
	// given integer factors (D, H, W order). Works on float32 and uint8.
	UpsampleNearest3D(x *RawTensor, scales [3]int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Unsqueeze(t *RawTensor, dim int) *RawTensor
	Squeeze(t *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Softmax along the last dimension.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Embedding gathers rows of weight [V, E] at indices (int64) -> [N, E].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Cast converts the tensor to a different data type.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Name returns the backend name for logging.
	Name() string

	// Device returns the device this backend computes on.
	Device() Device
}
