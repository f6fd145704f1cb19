package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// SoftmaxOp represents softmax along the last dimension.
//
// Forward (per row):
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
//
// Backward:
//
//	The Jacobian is softmax_i * (δ_ij - softmax_j); the chain rule
//	collapses it to
//
//	∂L/∂x_j = s_j * (∂L/∂s_j - Σ_i ∂L/∂s_i * s_i)
//
// Attention scores are [batch, seq, seq], so rows are taken over the
// flattened leading dimensions rather than assuming 2D input.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor // cached softmax output for backward
}

// NewSoftmaxOp creates a new SoftmaxOp. dim must refer to the last
// dimension of the input.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	ndim := len(input.Shape())
	if dim < 0 {
		dim += ndim
	}
	if dim != ndim-1 {
		panic(fmt.Sprintf("softmax backward supports only the last dimension, got dim %d of %dD", dim, ndim))
	}
	return &SoftmaxOp{
		input:  input,
		output: output,
	}
}

// Inputs returns the input tensors.
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the input gradient row by row.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	rowLen := shape[len(shape)-1]
	rows := op.input.NumElements() / rowLen

	inputGrad, err := tensor.NewRaw(shape, op.input.DType(), op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("softmax backward: %v", err))
	}

	switch op.input.DType() {
	case tensor.Float32:
		softmaxBackwardRows(inputGrad.AsFloat32(), outputGrad.AsFloat32(), op.output.AsFloat32(), rows, rowLen)
	case tensor.Float64:
		softmaxBackwardRows(inputGrad.AsFloat64(), outputGrad.AsFloat64(), op.output.AsFloat64(), rows, rowLen)
	default:
		panic(fmt.Sprintf("softmax backward: unsupported dtype %s", op.input.DType()))
	}

	return []*tensor.RawTensor{inputGrad}
}

func softmaxBackwardRows[T float32 | float64](inGrad, outGrad, softmax []T, rows, rowLen int) {
	for r := 0; r < rows; r++ {
		base := r * rowLen

		var dot T
		for j := 0; j < rowLen; j++ {
			dot += outGrad[base+j] * softmax[base+j]
		}
		for j := 0; j < rowLen; j++ {
			inGrad[base+j] = softmax[base+j] * (outGrad[base+j] - dot)
		}
	}
}
