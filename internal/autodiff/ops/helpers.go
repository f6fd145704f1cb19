package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// reduceBroadcast folds a gradient back to the shape of a forward input
// that was broadcast.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
//
// When shapes already match the gradient is cloned, so later inplace
// operations cannot corrupt a gradient shared between operations.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if targetShape.NumElements() == 1 {
		return backend.Reshape(backend.Sum(grad), targetShape)
	}

	// A single-element gradient expands to the full input shape, the
	// backward counterpart of an input broadcast to every element.
	if grad.NumElements() == 1 {
		return broadcastTo(grad, targetShape, backend)
	}

	// Broadcasting aligns shapes from the right: fold away leading
	// dimensions first, then sum dimensions the input held at size 1.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	resultShape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && resultShape[i] > 1 {
			result = backend.SumDim(result, i, true)
			resultShape = result.Shape()
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// broadcastTo expands a reduced gradient to the full input shape.
// Multiplying a tensor of ones by the gradient lets the backend's
// broadcasting do the expansion.
func broadcastTo(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad.Clone()
	}
	ones := createScalar(targetShape, grad.DType(), 1.0, grad.Device())
	return backend.Mul(ones, grad)
}

// createScalar returns a tensor of the given shape filled with value.
func createScalar(shape tensor.Shape, dtype tensor.DataType, value float64, device tensor.Device) *tensor.RawTensor {
	t, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("ops: failed to allocate constant: %v", err))
	}
	switch dtype {
	case tensor.Float32:
		data := t.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case tensor.Float64:
		data := t.AsFloat64()
		for i := range data {
			data[i] = value
		}
	default:
		panic(fmt.Sprintf("ops: unsupported dtype %s for constant", dtype))
	}
	return t
}

// scalarValue converts the scalar argument of a scalar operation to
// float64 for storage on the tape.
func scalarValue(v any) float64 {
	switch s := v.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int64:
		return float64(s)
	default:
		panic(fmt.Sprintf("ops: unsupported scalar type %T", v))
	}
}

// scalarOf reads the single element of a scalar gradient as float64.
func scalarOf(t *tensor.RawTensor) float64 {
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("ops: unsupported dtype %s for scalar read", t.DType()))
	}
}
