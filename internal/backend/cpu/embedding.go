package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Embedding gathers rows of a weight table at integer indices.
//
// weight is [V, E] and indices is an int64 tensor of any shape S;
// the result has shape S + [E]. Timestep embedding lookups use this
// with a 1D index batch.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	weightShape := weight.Shape()
	if len(weightShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [V,E], got %dD", len(weightShape)))
	}
	if indices.DType() != tensor.Int64 {
		panic(fmt.Sprintf("embedding: indices must be int64, got %s", indices.DType()))
	}

	vocab, embDim := weightShape[0], weightShape[1]
	idxData := indices.AsInt64()

	outShape := append(indices.Shape().Clone(), embDim)
	result := newResult("embedding", outShape, weight.DType(), cpu.device)

	switch weight.DType() {
	case tensor.Float32:
		gatherRows(result.AsFloat32(), weight.AsFloat32(), idxData, vocab, embDim)
	case tensor.Float64:
		gatherRows(result.AsFloat64(), weight.AsFloat64(), idxData, vocab, embDim)
	default:
		panic(fmt.Sprintf("embedding: unsupported weight dtype %s", weight.DType()))
	}

	return result
}

func gatherRows[T ~float32 | ~float64](dst, table []T, indices []int64, vocab, embDim int) {
	for i, idx := range indices {
		if idx < 0 || idx >= int64(vocab) {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(dst[i*embDim:(i+1)*embDim], table[int(idx)*embDim:(int(idx)+1)*embDim])
	}
}
