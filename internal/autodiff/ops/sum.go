package ops

import "github.com/drift-ml/drift/internal/tensor"

// SumOp represents a full reduction to a scalar: output = sum(x).
//
// Backward: every element contributed with weight one, so the input
// gradient is the scalar output gradient replicated to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: x, output: output}
}

// Backward fills the input shape with the scalar gradient value.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := scalarOf(outputGrad)
	gradX := createScalar(op.input.Shape(), op.input.DType(), g, op.input.Device())
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar output tensor.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}
