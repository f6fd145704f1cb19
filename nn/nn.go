// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(256, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv3D represents a volumetric convolutional layer over [N, C, F, H, W] input.
type Conv3D[B tensor.Backend] = nn.Conv3D[B]

// NewConv3D creates a new 3D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	conv := nn.NewConv3D(3, 64, 3, 1, 1, true, backend)  // in=3, out=64, kernel=3, stride=1, padding=1, bias
func NewConv3D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *Conv3D[B] {
	return nn.NewConv3D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// ConvTranspose3D represents a transposed volumetric convolution (upsampling).
type ConvTranspose3D[B tensor.Backend] = nn.ConvTranspose3D[B]

// NewConvTranspose3D creates a new transposed 3D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	up := nn.NewConvTranspose3D(128, 64, 2, 2, true, backend)  // doubles F, H, W
func NewConvTranspose3D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride int,
	useBias bool,
	backend B,
) *ConvTranspose3D[B] {
	return nn.NewConvTranspose3D(inChannels, outChannels, kernelSize, stride, useBias, backend)
}

// MaxPool3D represents a volumetric max pooling layer.
type MaxPool3D[B tensor.Backend] = nn.MaxPool3D[B]

// NewMaxPool3D creates a new 3D max pooling layer.
//
// Example:
//
//	backend := cpu.New()
//	pool := nn.NewMaxPool3D(2, 2, backend)  // kernel=2, stride=2
func NewMaxPool3D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool3D[B] {
	return nn.NewMaxPool3D(kernelSize, stride, backend)
}

// BatchNorm3D represents batch normalization over [N, C, F, H, W] input.
type BatchNorm3D[B tensor.Backend] = nn.BatchNorm3D[B]

// NewBatchNorm3D creates a new 3D batch normalization layer.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewBatchNorm3D(64, backend)
func NewBatchNorm3D[B tensor.Backend](numFeatures int, backend B) *BatchNorm3D[B] {
	return nn.NewBatchNorm3D(numFeatures, backend)
}

// Dropout randomly zeroes elements during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a new dropout layer with drop probability p.
//
// Example:
//
//	drop := nn.NewDropout[*cpu.CPUBackend](0.1)
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// LayerNorm represents Layer Normalization.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a new LayerNorm layer.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewLayerNorm[B](256, 1e-5, backend)
//	output := norm.Forward(input)  // [..., 256] -> [..., 256]
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
//
// Example:
//
//	relu := nn.NewReLU[*cpu.CPUBackend]()
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Time embedding

// PositionalTimeEmbedding maps integer diffusion timesteps to sinusoidal
// embedding vectors.
type PositionalTimeEmbedding[B tensor.Backend] = nn.PositionalTimeEmbedding[B]

// NewPositionalTimeEmbedding creates a timestep embedding covering
// timesteps [0, capacity) with vectors of the given dimension.
//
// Example:
//
//	backend := cpu.New()
//	embed := nn.NewPositionalTimeEmbedding(1000, 256, backend)
//	vectors := embed.Forward([]int{0, 499, 999})  // [3, 256]
func NewPositionalTimeEmbedding[B tensor.Backend](capacity, dim int, backend B) *PositionalTimeEmbedding[B] {
	return nn.NewPositionalTimeEmbedding(capacity, dim, backend)
}

// Loss Functions

// MSELoss represents the mean squared error loss for regression.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a new MSE loss function.
//
// Example:
//
//	backend := cpu.New()
//	criterion := nn.NewMSELoss(backend)
//	loss := criterion.Forward(predictions, targets)
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// SmoothL1Loss represents the Huber-style smooth L1 loss used for
// noise-prediction training.
type SmoothL1Loss[B tensor.Backend] = nn.SmoothL1Loss[B]

// NewSmoothL1Loss creates a new smooth L1 loss function.
//
// Example:
//
//	backend := cpu.New()
//	criterion := nn.NewSmoothL1Loss(backend)
//	loss := criterion.Forward(predictions, targets)
func NewSmoothL1Loss[B tensor.Backend](backend B) *SmoothL1Loss[B] {
	return nn.NewSmoothL1Loss(backend)
}

// NCCLoss scores normalized cross-correlation between predictions and
// targets.
type NCCLoss[B tensor.Backend] = nn.NCCLoss[B]

// Reduction modes accepted by NewNCCLoss.
const (
	ReductionMean = nn.ReductionMean
	ReductionSum  = nn.ReductionSum
)

// NewNCCLoss creates a new normalized cross-correlation loss with the
// given reduction (ReductionMean or ReductionSum).
//
// Example:
//
//	backend := cpu.New()
//	criterion, err := nn.NewNCCLoss(nn.ReductionMean, backend)
func NewNCCLoss[B tensor.Backend](reduction string, backend B) (*NCCLoss[B], error) {
	return nn.NewNCCLoss(reduction, backend)
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential model.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential(
//	    nn.NewLinear(256, 128, backend),
//	    nn.NewReLU[*cpu.CPUBackend](),
//	    nn.NewLinear(128, 10, backend),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	converted := make([]nn.Module[B], len(modules))
	for i, m := range modules {
		converted[i] = m
	}
	return nn.NewSequential(converted...)
}

// Initialization functions

// Xavier initializes a tensor using Xavier/Glorot initialization.
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Xavier(256, 128, tensor.Shape{128, 256}, backend)
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// Zeros initializes a tensor with zeros (for biases).
//
// Example:
//
//	backend := cpu.New()
//	bias := nn.Zeros(tensor.Shape{128}, backend)
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones initializes a tensor with ones.
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Ones(tensor.Shape{128, 256}, backend)
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}

// Randn initializes a tensor with random values from N(0, 1).
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Randn(tensor.Shape{128, 256}, backend)
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Randn(shape, backend)
}

// Attention Functions

// ScaledDotProductAttention computes attention scores using the scaled dot-product mechanism.
//
// Parameters:
//   - query: Query tensor [batch, heads, seq_q, head_dim]
//   - key: Key tensor [batch, heads, seq_k, head_dim]
//   - value: Value tensor [batch, heads, seq_k, head_dim]
//   - mask: Optional attention mask [batch, 1, seq_q, seq_k] or nil (additive mask, -inf for masked)
//   - scale: Scaling factor (0 for auto-compute as 1/sqrt(head_dim))
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
//
// Example:
//
//	Q := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	K := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	V := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	output, weights := nn.ScaledDotProductAttention(Q, K, V, nil, 0)
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, scale)
}

// MultiHeadAttention represents the multi-head attention mechanism.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates a new multi-head attention module.
//
// Parameters:
//   - embedDim: Total embedding dimension (must be divisible by numHeads)
//   - numHeads: Number of attention heads
//   - backend: Computation backend
//
// Example:
//
//	backend := cpu.New()
//	mha := nn.NewMultiHeadAttention[B](256, 4, backend)
//	output := mha.Forward(x, x, x, nil)  // Self-attention
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention[B](embedDim, numHeads, backend)
}

// TransformerEncoderSA is the self-attention block applied to flattened
// spatial positions inside the video U-Net.
type TransformerEncoderSA[B tensor.Backend] = nn.TransformerEncoderSA[B]

// NewTransformerEncoderSA creates a self-attention block for feature
// maps with the given channel count and spatial size.
//
// Example:
//
//	backend := cpu.New()
//	sa := nn.NewTransformerEncoderSA(128, 16, 4, backend)
func NewTransformerEncoderSA[B tensor.Backend](numChannels, size, numHeads int, backend B) *TransformerEncoderSA[B] {
	return nn.NewTransformerEncoderSA(numChannels, size, numHeads, backend)
}
