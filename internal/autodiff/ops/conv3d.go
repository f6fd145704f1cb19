package ops

import "github.com/drift-ml/drift/internal/tensor"

// Conv3DOp records a volumetric convolution for autodiff.
//
// Forward: output = Conv3D(input, kernel, stride, padding)
//
// Backward:
//   - d_input: transposed convolution of the output gradient with the kernel
//   - d_kernel: correlation of the input with the output gradient
//
// Both are delegated to the backend's gradient kernels, which share the
// forward pass's geometry computation.
type Conv3DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv3DOp creates a new Conv3DOp.
func NewConv3DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv3DOp {
	return &Conv3DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns the input tensors [input, kernel].
func (op *Conv3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv3DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward delegates both gradients to the backend.
func (op *Conv3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv3DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv3DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
