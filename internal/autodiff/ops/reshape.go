package ops

import "github.com/drift-ml/drift/internal/tensor"

// ReshapeOp records a reshape (including squeeze and unsqueeze) for
// autodiff.
//
// Forward: output = Reshape(input, newShape)
// Backward: grad_input = Reshape(outputGrad, input.Shape())
//
// Recording matters even though reshape moves no data: without it,
// gradients computed for a reshaped view (a bias broadcast to
// [1, C, 1, 1, 1], say) would never reach the original parameter.
type ReshapeOp struct {
	input     *tensor.RawTensor
	output    *tensor.RawTensor
	origShape tensor.Shape
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{
		input:     input,
		output:    output,
		origShape: input.Shape(),
	}
}

// Backward reshapes the output gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Reshape(outputGrad, op.origShape)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *ReshapeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor {
	return op.output
}
