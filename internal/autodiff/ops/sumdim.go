package ops

import "github.com/drift-ml/drift/internal/tensor"

// SumDimOp represents a sum reduction along one dimension.
//
// Forward: y = sum(x, dim, keepDim)
// Backward: grad_x = broadcast(grad_y, x.Shape())
//
// Every input element contributes with weight one, so the gradient is
// the output gradient broadcast back over the reduced dimension.
type SumDimOp struct {
	inputs  []*tensor.RawTensor // [x]
	output  *tensor.RawTensor   // sum(x, dim)
	dim     int                 // normalized reduction dimension
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim may be negative.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	if dim < 0 {
		dim += len(x.Shape())
	}
	return &SumDimOp{
		inputs:  []*tensor.RawTensor{x},
		output:  output,
		dim:     dim,
		keepDim: keepDim,
	}
}

// Backward broadcasts the output gradient back to the input shape.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]

	grad := outputGrad
	if !op.keepDim {
		// Reinstate the reduced dimension so broadcasting lines up.
		keepShape := x.Shape().Clone()
		keepShape[op.dim] = 1
		grad = backend.Reshape(grad, keepShape)
	}

	gradX := broadcastTo(grad, x.Shape(), backend)
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor sum(x, dim).
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}
