// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient
// tracking through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op (Add, Conv3D, MaxPool3D) implements backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Usage:
//
//	// Wrap any backend with autodiff
//	cpuBackend := cpu.New()
//	autodiffBackend := autodiff.New(cpuBackend)
//
//	// Use with tensors
//	x := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, autodiffBackend)
//	y := x.Mul(x) // y = x²
//
//	// Compute gradients
//	y.Backward()
//	fmt.Println(x.Grad()) // dy/dx = 2x = 4.0
package autodiff

import (
	"github.com/drift-ml/drift/internal/autodiff/ops"
	"github.com/drift-ml/drift/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend (CPU, etc.)
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// NoGrad runs fn with recording suspended and restores the previous
// recording state afterwards. Sampling loops and shadow-weight updates
// run inside NoGrad so their operations stay off the tape.
func (b *AutodiffBackend[B]) NoGrad(fn func()) {
	wasRecording := b.tape.IsRecording()
	b.tape.StopRecording()
	defer func() {
		if wasRecording {
			b.tape.StartRecording()
		}
	}()
	fn()
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	// Temporarily bump the refcount so IsUnique() returns false and the
	// inner backend allocates a fresh result instead of writing into an
	// operand that a recorded operation still references.
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	// Forward pass using wrapped backend
	result := b.inner.Add(a, c)

	// Record operation if tape is recording
	if b.tape.IsRecording() {
		op := ops.NewAddOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.Sub(a, c)

	if b.tape.IsRecording() {
		op := ops.NewSubOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.Mul(a, c)

	if b.tape.IsRecording() {
		op := ops.NewMulOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.Div(a, c)

	if b.tape.IsRecording() {
		op := ops.NewDivOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// MulScalar multiplies by a scalar and records the operation.
//
// Noise schedules scale tensors by per-timestep coefficients through
// these scalar methods, so they must stay on the tape for the loss to
// reach the parameters behind them.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.MulScalar(x, scalar)

	if b.tape.IsRecording() {
		op := ops.NewMulScalarOp(x, result, scalar)
		b.tape.Record(op)
	}

	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.AddScalar(x, scalar)

	if b.tape.IsRecording() {
		op := ops.NewAddScalarOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// SubScalar subtracts a scalar and records the operation.
func (b *AutodiffBackend[B]) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.SubScalar(x, scalar)

	if b.tape.IsRecording() {
		op := ops.NewSubScalarOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// DivScalar divides by a scalar and records the operation.
func (b *AutodiffBackend[B]) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.DivScalar(x, scalar)

	if b.tape.IsRecording() {
		op := ops.NewDivScalarOp(x, result, scalar)
		b.tape.Record(op)
	}

	return result
}

// Sqrt computes the element-wise square root and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Sqrt(x)

	if b.tape.IsRecording() {
		op := ops.NewSqrtOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// Rsqrt computes the element-wise reciprocal square root and records the operation.
func (b *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Rsqrt(x)

	if b.tape.IsRecording() {
		op := ops.NewRsqrtOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.MatMul(a, c)

	if b.tape.IsRecording() {
		op := ops.NewMatMulOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// BatchMatMul performs batched matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) BatchMatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()

	result := b.inner.BatchMatMul(a, c)

	if b.tape.IsRecording() {
		op := ops.NewBatchMatMulOp(a, c, result)
		b.tape.Record(op)
	}

	return result
}

// Conv3D performs volumetric convolution and records the operation.
//
// Conv3D creates new tensors, so without recording, gradients would
// never flow back to the kernel or the input feature map.
func (b *AutodiffBackend[B]) Conv3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()

	result := b.inner.Conv3D(input, kernel, stride, padding)

	if b.tape.IsRecording() {
		op := ops.NewConv3DOp(input, kernel, result, stride, padding)
		b.tape.Record(op)
	}

	return result
}

// Conv3DInputBackward computes the input gradient of Conv3D.
// Gradient kernels are never recorded; they run inside Backward itself.
func (b *AutodiffBackend[B]) Conv3DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv3DInputBackward(input, kernel, outputGrad, stride, padding)
}

// Conv3DKernelBackward computes the kernel gradient of Conv3D.
func (b *AutodiffBackend[B]) Conv3DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv3DKernelBackward(input, kernel, outputGrad, stride, padding)
}

// ConvTranspose3D performs transposed volumetric convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose3D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()

	result := b.inner.ConvTranspose3D(input, kernel, stride)

	if b.tape.IsRecording() {
		op := ops.NewConvTranspose3DOp(input, kernel, result, stride)
		b.tape.Record(op)
	}

	return result
}

// ConvTranspose3DKernelBackward computes the kernel gradient of ConvTranspose3D.
func (b *AutodiffBackend[B]) ConvTranspose3DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride int) *tensor.RawTensor {
	return b.inner.ConvTranspose3DKernelBackward(input, kernel, outputGrad, stride)
}

// MaxPool3D performs volumetric max pooling and records the operation.
//
// During backward, gradients flow only to the positions that won each
// pooling window. MaxPool3DOp captures the argmax indices at forward
// time for that routing.
func (b *AutodiffBackend[B]) MaxPool3D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	defer input.ForceNonUnique()()

	result := b.inner.MaxPool3D(input, kernelSize, stride)

	if b.tape.IsRecording() {
		op := ops.NewMaxPool3DOp(input, result, kernelSize, stride)
		b.tape.Record(op)
	}

	return result
}

// MaxPool3DBackward scatters an output gradient to the recorded argmax positions.
func (b *AutodiffBackend[B]) MaxPool3DBackward(input, outputGrad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	return b.inner.MaxPool3DBackward(input, outputGrad, maxIndices, kernelSize, stride)
}

// AvgPool3D performs volumetric average pooling.
//
// Not recorded: average pooling serves clip preprocessing, not the
// training graph.
func (b *AutodiffBackend[B]) AvgPool3D(input *tensor.RawTensor, kernel, stride [3]int) *tensor.RawTensor {
	return b.inner.AvgPool3D(input, kernel, stride)
}

// Pad3D zero-pads the spatial axes and records the operation.
//
// Decoder stages pad upsampled features to match skip connections with
// odd spatial sizes, so padding sits inside the differentiated path.
func (b *AutodiffBackend[B]) Pad3D(x *tensor.RawTensor, pads [6]int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Pad3D(x, pads)

	if b.tape.IsRecording() {
		op := ops.NewPad3DOp(x, result, pads)
		b.tape.Record(op)
	}

	return result
}

// Pad3DBackward slices padding off an output gradient.
func (b *AutodiffBackend[B]) Pad3DBackward(outputGrad *tensor.RawTensor, pads [6]int) *tensor.RawTensor {
	return b.inner.Pad3DBackward(outputGrad, pads)
}

// UpsampleNearest3D repeats elements along the spatial axes.
//
// Not recorded: nearest-neighbor upsampling serves sample
// postprocessing, not the training graph.
func (b *AutodiffBackend[B]) UpsampleNearest3D(x *tensor.RawTensor, scales [3]int) *tensor.RawTensor {
	return b.inner.UpsampleNearest3D(x, scales)
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded even though it is only a view change.
// A conv bias lives as [C] but broadcasts as [1, C, 1, 1, 1]; without
// a ReshapeOp the gradient stops at the broadcast view and the bias
// parameter never updates.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	result := b.inner.Reshape(t, newShape)

	if b.tape.IsRecording() {
		op := ops.NewReshapeOp(t, result)
		b.tape.Record(op)
	}

	return result
}

// Transpose transposes a tensor and records the operation.
//
// The backend may materialize a new tensor for the permuted layout.
// In a Linear layer the weight is transposed before MatMul; without a
// TransposeOp the gradient lands on the transposed copy and the
// optimizer finds nothing for the original parameter.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	// Handle default axes (reverse all dimensions)
	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(t, axes...)

	if b.tape.IsRecording() {
		op := ops.NewTransposeOp(t, result, axes)
		b.tape.Record(op)
	}

	return result
}

// Cat concatenates tensors along a dimension and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	for _, t := range tensors {
		defer t.ForceNonUnique()()
	}

	result := b.inner.Cat(tensors, dim)

	if b.tape.IsRecording() {
		normalized := dim
		if normalized < 0 {
			normalized += len(result.Shape())
		}
		sizes := make([]int, len(tensors))
		for i, t := range tensors {
			sizes[i] = t.Shape()[normalized]
		}
		op := ops.NewCatOp(tensors, normalized, sizes, result)
		b.tape.Record(op)
	}

	return result
}

// Unsqueeze inserts a size-1 dimension and records the operation.
// The backward pass only needs to restore the original shape, so a
// ReshapeOp covers it.
func (b *AutodiffBackend[B]) Unsqueeze(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	result := b.inner.Unsqueeze(t, dim)

	if b.tape.IsRecording() {
		op := ops.NewReshapeOp(t, result)
		b.tape.Record(op)
	}

	return result
}

// Squeeze removes a size-1 dimension and records the operation.
func (b *AutodiffBackend[B]) Squeeze(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	result := b.inner.Squeeze(t, dim)

	if b.tape.IsRecording() {
		op := ops.NewReshapeOp(t, result)
		b.tape.Record(op)
	}

	return result
}

// Sum reduces a tensor to its scalar sum and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Sum(x)

	if b.tape.IsRecording() {
		op := ops.NewSumOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// SumDim sums along a dimension and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.SumDim(x, dim, keepDim)

	if b.tape.IsRecording() {
		op := ops.NewSumDimOp(x, result, dim, keepDim)
		b.tape.Record(op)
	}

	return result
}

// MeanDim averages along a dimension and records the operation.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.MeanDim(x, dim, keepDim)

	if b.tape.IsRecording() {
		op := ops.NewMeanDimOp(x, result, dim, keepDim)
		b.tape.Record(op)
	}

	return result
}

// Softmax applies softmax along dim and records the operation.
//
// The backward pass supports only the last dimension, which is where
// attention scores normalize.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.inner.Softmax(x, dim)

	if b.tape.IsRecording() {
		op := ops.NewSoftmaxOp(x, result, dim)
		b.tape.Record(op)
	}

	return result
}

// Embedding gathers rows of the weight table and records the operation.
func (b *AutodiffBackend[B]) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	defer weight.ForceNonUnique()()
	// Note: indices doesn't need ForceNonUnique() as it's not differentiated

	result := b.inner.Embedding(weight, indices)

	if b.tape.IsRecording() {
		op := ops.NewEmbeddingOp(weight, indices, result)
		b.tape.Record(op)
	}

	return result
}

// Cast converts the tensor to a different data type. Casts are not
// differentiated; they belong to data loading and export paths.
func (b *AutodiffBackend[B]) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return b.inner.Cast(x, dtype)
}

// ReLU applies the rectified linear unit and records the operation.
//
// ReLU is not part of the tensor.Backend interface; the wrapped backend
// must provide its own kernel.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	relu, ok := any(b.inner).(interface {
		ReLU(x *tensor.RawTensor) *tensor.RawTensor
	})
	if !ok {
		panic("autodiff: inner backend " + b.inner.Name() + " does not implement ReLU")
	}

	result := relu.ReLU(x)

	if b.tape.IsRecording() {
		op := ops.NewReLUOp(x, result)
		b.tape.Record(op)
	}

	return result
}

// SmoothL1 computes the mean Smooth L1 (Huber) loss between a
// prediction and a target.
//
// Forward (per element, d = pred - target):
//
//	loss = 0.5 * d² / beta   if |d| < beta
//	loss = |d| - 0.5 * beta  otherwise
//
// Backward:
//
//	∂L/∂pred = clamp(d / beta, -1, 1) / numElements
//
// Parameters:
//   - pred: Predicted noise [N, C, F, H, W]
//   - target: True noise, same shape
//   - beta: Transition point between quadratic and linear regions
//
// Returns:
//   - Scalar loss value (mean over all elements)
func (b *AutodiffBackend[B]) SmoothL1(pred, target *tensor.RawTensor, beta float64) *tensor.RawTensor {
	defer pred.ForceNonUnique()()
	// Note: target doesn't need ForceNonUnique() as it's not differentiated

	result := ops.SmoothL1Forward(pred, target, beta, b.Device())

	if b.tape.IsRecording() {
		op := ops.NewSmoothL1Op(pred, target, result, beta)
		b.tape.Record(op)
	}

	return result
}
