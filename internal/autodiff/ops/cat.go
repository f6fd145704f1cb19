package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// CatOp represents concatenation along a dimension.
//
// Forward: output = Cat([x1, x2, ...], dim)
//
// Backward: the output gradient splits at the input boundaries along
// dim, and each input receives its own slice. Decoder stages concatenate
// skip connections with upsampled features on the channel dimension, so
// this op is what routes gradients back into both branches.
type CatOp struct {
	inputs []*tensor.RawTensor
	dim    int   // normalized concat dimension
	sizes  []int // size of each input along dim
	output *tensor.RawTensor
}

// NewCatOp creates a new CatOp. dim must already be normalized.
func NewCatOp(inputs []*tensor.RawTensor, dim int, sizes []int, output *tensor.RawTensor) *CatOp {
	return &CatOp{
		inputs: inputs,
		dim:    dim,
		sizes:  sizes,
		output: output,
	}
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the concatenated output.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward splits the output gradient back into per-input slices.
//
// Along the concat dimension each input owns a contiguous run of
// size*innerStride elements per outer index, so the split is a series
// of block copies.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradShape := outputGrad.Shape()

	inner := 1
	for i := op.dim + 1; i < len(gradShape); i++ {
		inner *= gradShape[i]
	}
	outer := 1
	for i := 0; i < op.dim; i++ {
		outer *= gradShape[i]
	}
	totalRun := gradShape[op.dim] * inner

	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, size := range op.sizes {
		sliceShape := gradShape.Clone()
		sliceShape[op.dim] = size

		gradInput, err := tensor.NewRaw(sliceShape, outputGrad.DType(), backend.Device())
		if err != nil {
			panic(fmt.Sprintf("cat backward: %v", err))
		}

		switch outputGrad.DType() {
		case tensor.Float32:
			splitBlocks(gradInput.AsFloat32(), outputGrad.AsFloat32(), outer, size*inner, totalRun, offset*inner)
		case tensor.Float64:
			splitBlocks(gradInput.AsFloat64(), outputGrad.AsFloat64(), outer, size*inner, totalRun, offset*inner)
		default:
			panic(fmt.Sprintf("cat backward: unsupported dtype %s", outputGrad.DType()))
		}

		grads[i] = gradInput
		offset += size
	}

	return grads
}

// splitBlocks copies one input's run out of every outer block of the
// concatenated gradient.
func splitBlocks[T float32 | float64](dst, src []T, outer, run, totalRun, runOffset int) {
	for o := 0; o < outer; o++ {
		start := o*totalRun + runOffset
		copy(dst[o*run:(o+1)*run], src[start:start+run])
	}
}
