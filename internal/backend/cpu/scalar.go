package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("mul_scalar", x, scalar, mulKind)
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("add_scalar", x, scalar, addKind)
}

// SubScalar subtracts scalar from every element.
func (cpu *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("sub_scalar", x, scalar, subKind)
}

// DivScalar divides every element by scalar.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("div_scalar", x, scalar, divKind)
}

func (cpu *CPUBackend) scalarOp(name string, x *tensor.RawTensor, scalar any, kind opKind) *tensor.RawTensor {
	if x.IsUnique() {
		scalarDispatchInplace(name, x, scalar, kind)
		return x
	}
	result := newResult(name, x.Shape(), x.DType(), cpu.device)
	scalarDispatch(name, result, x, scalar, kind)
	return result
}

func scalarDispatchInplace(name string, x *tensor.RawTensor, scalar any, kind opKind) {
	switch x.DType() {
	case tensor.Float32:
		applyScalarInplace(kind, x.AsFloat32(), scalarAs[float32](name, scalar))
	case tensor.Float64:
		applyScalarInplace(kind, x.AsFloat64(), scalarAs[float64](name, scalar))
	case tensor.Int64:
		applyScalarInplace(kind, x.AsInt64(), scalarAs[int64](name, scalar))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
}

func scalarDispatch(name string, result, x *tensor.RawTensor, scalar any, kind opKind) {
	switch x.DType() {
	case tensor.Float32:
		applyScalarVectorized(kind, result.AsFloat32(), x.AsFloat32(), scalarAs[float32](name, scalar))
	case tensor.Float64:
		applyScalarVectorized(kind, result.AsFloat64(), x.AsFloat64(), scalarAs[float64](name, scalar))
	case tensor.Int64:
		applyScalarVectorized(kind, result.AsInt64(), x.AsInt64(), scalarAs[int64](name, scalar))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
}

// scalarAs converts a scalar passed as any to the kernel's dtype.
func scalarAs[T number](name string, v any) T {
	switch s := v.(type) {
	case float32:
		return T(s)
	case float64:
		return T(s)
	case int:
		return T(s)
	case int64:
		return T(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", name, v))
	}
}

func applyScalarInplace[T number](kind opKind, data []T, s T) {
	switch kind {
	case addKind:
		for i := range data {
			data[i] += s
		}
	case subKind:
		for i := range data {
			data[i] -= s
		}
	case mulKind:
		for i := range data {
			data[i] *= s
		}
	case divKind:
		for i := range data {
			data[i] /= s
		}
	}
}

func applyScalarVectorized[T number](kind opKind, dst, src []T, s T) {
	switch kind {
	case addKind:
		for i := range dst {
			dst[i] = src[i] + s
		}
	case subKind:
		for i := range dst {
			dst[i] = src[i] - s
		}
	case mulKind:
		for i := range dst {
			dst[i] = src[i] * s
		}
	case divKind:
		for i := range dst {
			dst[i] = src[i] / s
		}
	}
}
