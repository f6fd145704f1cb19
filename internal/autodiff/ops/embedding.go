package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// EmbeddingOp represents an embedding table lookup.
//
// Forward: output[i] = weight[indices[i]]
//
// Backward: scatter-add of the output gradient into the looked-up rows.
// Rows selected by several indices accumulate all their gradients, which
// matters when a batch repeats timesteps.
type EmbeddingOp struct {
	weight  *tensor.RawTensor // [numEmbeddings, embeddingDim]
	indices *tensor.RawTensor // int64 indices, any shape
	output  *tensor.RawTensor
}

// NewEmbeddingOp creates a new EmbeddingOp.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{
		weight:  weight,
		indices: indices,
		output:  output,
	}
}

// Inputs returns the differentiable inputs. Indices are integers and
// receive no gradient.
func (op *EmbeddingOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.weight}
}

// Output returns the output tensor.
func (op *EmbeddingOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward scatter-adds output gradients into a zero weight gradient.
func (op *EmbeddingOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	weightShape := op.weight.Shape()
	numEmbeddings := weightShape[0]
	embeddingDim := weightShape[1]

	gradWeight, err := tensor.NewRaw(weightShape, op.weight.DType(), op.weight.Device())
	if err != nil {
		panic(fmt.Sprintf("embedding backward: %v", err))
	}

	indices := op.indices.AsInt64()
	switch op.weight.DType() {
	case tensor.Float32:
		scatterRows(gradWeight.AsFloat32(), outputGrad.AsFloat32(), indices, numEmbeddings, embeddingDim)
	case tensor.Float64:
		scatterRows(gradWeight.AsFloat64(), outputGrad.AsFloat64(), indices, numEmbeddings, embeddingDim)
	default:
		panic(fmt.Sprintf("embedding backward: unsupported dtype %s", op.weight.DType()))
	}

	return []*tensor.RawTensor{gradWeight}
}

func scatterRows[T float32 | float64](gradWeight, outGrad []T, indices []int64, numEmbeddings, embeddingDim int) {
	for i, idx := range indices {
		if idx < 0 || int(idx) >= numEmbeddings {
			panic(fmt.Sprintf("embedding backward: index %d out of range [0, %d)", idx, numEmbeddings))
		}
		src := outGrad[i*embeddingDim : (i+1)*embeddingDim]
		dst := gradWeight[int(idx)*embeddingDim : (int(idx)+1)*embeddingDim]
		for j := range src {
			dst[j] += src[j]
		}
	}
}
