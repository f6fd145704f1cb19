package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MaxPool3D is a 3D max pooling layer.
//
// Max pooling reduces the frame, height and width dimensions by taking
// the maximum value in each non-overlapping window. Unlike Conv3D,
// MaxPool3D has no learnable parameters.
//
// Input shape:  [batch, channels, frames, height, width]
// Output shape: [batch, channels, out_f, out_h, out_w]
//
// Where each spatial output dimension is:
//
//	out = (in - kernelSize) / stride + 1
//
// The encoder path of the denoising network uses 2x2x2 pooling with
// stride 2, halving every spatial axis.
//
// Example:
//
//	pool := nn.NewMaxPool3D(2, 2, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{2, 64, 8, 32, 32}, backend)
//	output := pool.Forward(input) // [2, 64, 4, 16, 16]
type MaxPool3D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool3D creates a new 3D max pooling layer.
//
// Parameters:
//   - kernelSize: Size of pooling window (cubic)
//   - stride: Stride for pooling (typically same as kernelSize for non-overlapping)
//   - backend: Backend for computation
func NewMaxPool3D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool3D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid stride %d", stride))
	}

	return &MaxPool3D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, channels, frames, height, width]
// Output: [batch, channels, out_f, out_h, out_w].
func (m *MaxPool3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	// Validate input shape
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("maxpool3d: expected 5D input [N,C,F,H,W], got %dD", len(inputShape)))
	}

	// Perform max pooling
	outputRaw := m.backend.MaxPool3D(input.Raw(), m.kernelSize, m.stride)

	// Wrap in Tensor for high-level API
	return tensor.New[float32, B](outputRaw, m.backend)
}

// Parameters returns all trainable parameters (empty for MaxPool3D).
//
// MaxPool3D has no learnable parameters, so this always returns an empty slice.
func (m *MaxPool3D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// String returns a string representation of the layer.
func (m *MaxPool3D[B]) String() string {
	return fmt.Sprintf("MaxPool3D(kernel_size=%d, stride=%d)",
		m.kernelSize, m.stride)
}

// KernelSize returns the pooling kernel size.
func (m *MaxPool3D[B]) KernelSize() int {
	return m.kernelSize
}

// Stride returns the stride.
func (m *MaxPool3D[B]) Stride() int {
	return m.stride
}

// ComputeOutputSize computes output spatial dimensions for a given input size.
//
// Returns: [out_frames, out_height, out_width].
func (m *MaxPool3D[B]) ComputeOutputSize(inputF, inputH, inputW int) [3]int {
	outF := (inputF-m.kernelSize)/m.stride + 1
	outH := (inputH-m.kernelSize)/m.stride + 1
	outW := (inputW-m.kernelSize)/m.stride + 1
	return [3]int{outF, outH, outW}
}

// StateDict returns nil (MaxPool3D has no persistent state).
func (m *MaxPool3D[B]) StateDict() map[string]*tensor.RawTensor {
	return nil
}

// LoadStateDict is a no-op for MaxPool3D.
func (m *MaxPool3D[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
