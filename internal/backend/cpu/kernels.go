package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// element covers every dtype the copy-only kernels move, including
// uint8 image tensors.
type element interface {
	~float32 | ~float64 | ~int64 | ~uint8
}

// opKind selects the arithmetic applied by the element-wise kernels.
type opKind int

const (
	addKind opKind = iota
	subKind
	mulKind
	divKind
)

// binaryDispatchInplace accumulates b into a, element by element.
func binaryDispatchInplace(name string, a, b *tensor.RawTensor, kind opKind) {
	switch a.DType() {
	case tensor.Float32:
		applyInplace(kind, a.AsFloat32(), b.AsFloat32())
	case tensor.Float64:
		applyInplace(kind, a.AsFloat64(), b.AsFloat64())
	case tensor.Int64:
		applyInplace(kind, a.AsInt64(), b.AsInt64())
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

// binaryDispatch fills result from same-shape operands a and b.
func binaryDispatch(name string, result, a, b *tensor.RawTensor, kind opKind) {
	switch a.DType() {
	case tensor.Float32:
		applyVectorized(kind, result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case tensor.Float64:
		applyVectorized(kind, result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case tensor.Int64:
		applyVectorized(kind, result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

// binaryDispatchBroadcast fills result by walking broadcast strides.
func binaryDispatchBroadcast(name string, result, a, b *tensor.RawTensor, outShape tensor.Shape, kind opKind) {
	switch a.DType() {
	case tensor.Float32:
		applyBroadcast(kind, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case tensor.Float64:
		applyBroadcast(kind, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case tensor.Int64:
		applyBroadcast(kind, result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

func applyInplace[T number](kind opKind, a, b []T) {
	switch kind {
	case addKind:
		for i := range a {
			a[i] += b[i]
		}
	case subKind:
		for i := range a {
			a[i] -= b[i]
		}
	case mulKind:
		for i := range a {
			a[i] *= b[i]
		}
	case divKind:
		for i := range a {
			a[i] /= b[i]
		}
	}
}

func applyVectorized[T number](kind opKind, dst, a, b []T) {
	switch kind {
	case addKind:
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
	case subKind:
		for i := range dst {
			dst[i] = a[i] - b[i]
		}
	case mulKind:
		for i := range dst {
			dst[i] = a[i] * b[i]
		}
	case divKind:
		for i := range dst {
			dst[i] = a[i] / b[i]
		}
	}
}

func applyBroadcast[T number](kind opKind, dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	switch kind {
	case addKind:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] + b[flatIndex(i, outStrides, bStrides)]
		}
	case subKind:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] - b[flatIndex(i, outStrides, bStrides)]
		}
	case mulKind:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] * b[flatIndex(i, outStrides, bStrides)]
		}
	case divKind:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] / b[flatIndex(i, outStrides, bStrides)]
		}
	}
}
