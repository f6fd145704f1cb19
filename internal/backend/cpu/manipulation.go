package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Reshape returns a view of the tensor under a new shape. The data is
// shared, not copied.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes the tensor's dimensions. With no axes given all
// dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := newResult("transpose", newShape, t.DType(), cpu.device)

	switch t.DType() {
	case tensor.Float32:
		transposeData(result.AsFloat32(), t.AsFloat32(), shape, newShape, axes)
	case tensor.Float64:
		transposeData(result.AsFloat64(), t.AsFloat64(), shape, newShape, axes)
	case tensor.Int64:
		transposeData(result.AsInt64(), t.AsInt64(), shape, newShape, axes)
	case tensor.Uint8:
		transposeData(result.AsUint8(), t.AsUint8(), shape, newShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// transposeData copies src into dst with permuted axes. Every output
// element reads the source position whose coordinates are the output
// coordinates routed through the permutation.
func transposeData[T element](dst, src []T, srcShape, dstShape tensor.Shape, axes []int) {
	srcStrides := srcShape.ComputeStrides()
	dstStrides := dstShape.ComputeStrides()

	for i := range dst {
		srcIdx := 0
		temp := i
		for d := range dstShape {
			coord := temp / dstStrides[d]
			temp %= dstStrides[d]
			srcIdx += coord * srcStrides[axes[d]]
		}
		dst[i] = src[srcIdx]
	}
}

// Cat concatenates tensors along the specified dimension.
//
// All tensors must share dtype and shape except along the
// concatenation dimension, which supports negative indexing. Decoder
// stages use this to join skip connections with upsampled features
// along the channel axis.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim
	result := newResult("cat", outShape, dtype, cpu.device)

	switch dtype {
	case tensor.Float32:
		catBlocks(result.AsFloat32(), asSlices(tensors, (*tensor.RawTensor).AsFloat32), tensors, shape, dim, totalDim)
	case tensor.Float64:
		catBlocks(result.AsFloat64(), asSlices(tensors, (*tensor.RawTensor).AsFloat64), tensors, shape, dim, totalDim)
	case tensor.Int64:
		catBlocks(result.AsInt64(), asSlices(tensors, (*tensor.RawTensor).AsInt64), tensors, shape, dim, totalDim)
	case tensor.Uint8:
		catBlocks(result.AsUint8(), asSlices(tensors, (*tensor.RawTensor).AsUint8), tensors, shape, dim, totalDim)
	default:
		panic(fmt.Sprintf("cat: unsupported dtype %s", dtype))
	}

	return result
}

func asSlices[T element](tensors []*tensor.RawTensor, as func(*tensor.RawTensor) []T) [][]T {
	out := make([][]T, len(tensors))
	for i, t := range tensors {
		out[i] = as(t)
	}
	return out
}

// catBlocks copies whole contiguous blocks. In row-major layout, the
// elements of one concat slot form a run of size shape[dim] times the
// inner stride, repeated once per outer index.
func catBlocks[T element](outData []T, datas [][]T, tensors []*tensor.RawTensor, shape tensor.Shape, dim, totalDim int) {
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}

	outBlock := totalDim * inner
	for o := 0; o < outer; o++ {
		offset := 0
		for ti, t := range tensors {
			block := t.Shape()[dim] * inner
			src := datas[ti][o*block : (o+1)*block]
			copy(outData[o*outBlock+offset:o*outBlock+offset+block], src)
			offset += block
		}
	}
}

// Unsqueeze adds a dimension of size 1 at the specified position.
// This is a view operation.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	// Valid insert positions are [0, ndim].
	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor (valid: [0, %d])", dim, ndim, ndim))
	}

	newShape := make(tensor.Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return cpu.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the specified position.
// Panics if the dimension size is not 1. This is a view operation.
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("squeeze: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, must be 1", dim, shape[dim]))
	}

	newShape := make(tensor.Shape, 0, ndim-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)

	return cpu.Reshape(x, newShape)
}
