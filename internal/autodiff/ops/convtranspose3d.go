package ops

import "github.com/drift-ml/drift/internal/tensor"

// ConvTranspose3DOp records a transposed volumetric convolution.
//
// Forward: output = ConvTranspose3D(input, kernel, stride) with kernel
// layout [C_in, C_out, K_d, K_h, K_w].
//
// Backward:
//   - d_input: the forward pass scatters, so its adjoint gathers. That
//     gather is exactly Conv3D of the output gradient with the kernel's
//     channel axes swapped to [C_out, C_in, ...], same stride, no padding.
//   - d_kernel: delegated to the backend's gradient kernel.
type ConvTranspose3DOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	stride int
}

// NewConvTranspose3DOp creates a new ConvTranspose3DOp.
func NewConvTranspose3DOp(input, kernel, output *tensor.RawTensor, stride int) *ConvTranspose3DOp {
	return &ConvTranspose3DOp{
		input:  input,
		kernel: kernel,
		output: output,
		stride: stride,
	}
}

// Inputs returns the input tensors [input, kernel].
func (op *ConvTranspose3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *ConvTranspose3DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes both gradients.
func (op *ConvTranspose3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	swapped := backend.Transpose(op.kernel, 1, 0, 2, 3, 4)
	inputGrad := backend.Conv3D(outputGrad, swapped, op.stride, 0)

	kernelGrad := backend.ConvTranspose3DKernelBackward(op.input, op.kernel, outputGrad, op.stride)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
