// Package cpu implements the CPU backend for the Drift ML framework.
//
// Element-wise operations take an inplace fast path when the left
// operand uniquely owns its buffer. The volumetric kernels (Conv3D and
// friends) chunk their outer loops across goroutines via the parallel
// package.
package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// number constrains kernels to dtypes with arithmetic.
type number interface {
	~float32 | ~float64 | ~int64
}

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	pool   parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		pool:   parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, addKind)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, subKind)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, mulKind)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, divKind)
}

// binaryOp dispatches an element-wise binary operation.
//
// Same-shape operands where a uniquely owns its buffer are updated
// inplace; otherwise a fresh result tensor is filled, walking broadcast
// strides when the shapes differ.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, kind opKind) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			binaryDispatchInplace(name, a, b, kind)
			return a
		}
		result := newResult(name, outShape, a.DType(), cpu.device)
		binaryDispatch(name, result, a, b, kind)
		return result
	}

	result := newResult(name, outShape, a.DType(), cpu.device)
	binaryDispatchBroadcast(name, result, a, b, outShape, kind)
	return result
}

// newResult allocates an output tensor, panicking on invalid shapes.
func newResult(op string, shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}
