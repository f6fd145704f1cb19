package ops

import "github.com/drift-ml/drift/internal/tensor"

// MeanDimOp represents a mean reduction along one dimension.
//
// Forward: y = mean(x, dim, keepDim)
// Backward: grad_x = broadcast(grad_y, x.Shape()) / size[dim]
//
// Normalization layers reduce over channels with this op, so its
// backward pass runs on every training step.
type MeanDimOp struct {
	inputs  []*tensor.RawTensor // [x]
	output  *tensor.RawTensor   // mean(x, dim)
	dim     int                 // normalized reduction dimension
	keepDim bool
	dimSize int // size of the reduced dimension
}

// NewMeanDimOp creates a new MeanDimOp. dim may be negative.
func NewMeanDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	if dim < 0 {
		dim += len(x.Shape())
	}
	return &MeanDimOp{
		inputs:  []*tensor.RawTensor{x},
		output:  output,
		dim:     dim,
		keepDim: keepDim,
		dimSize: x.Shape()[dim],
	}
}

// Backward broadcasts the output gradient and divides by the reduced
// dimension's size.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]

	grad := outputGrad
	if !op.keepDim {
		keepShape := x.Shape().Clone()
		keepShape[op.dim] = 1
		grad = backend.Reshape(grad, keepShape)
	}

	gradX := broadcastTo(grad, x.Shape(), backend)
	gradX = backend.DivScalar(gradX, float64(op.dimSize))
	return []*tensor.RawTensor{gradX}
}

// Inputs returns the input tensors [x].
func (op *MeanDimOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor mean(x, dim).
func (op *MeanDimOp) Output() *tensor.RawTensor {
	return op.output
}
