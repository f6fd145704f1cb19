package tensor

import (
	"fmt"
	"math"
)

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements the core operations naively for correctness verification.
// The volumetric kernels (Conv3D, pooling, padding, resampling) are not
// implemented and panic when called; tests that exercise them run against
// the cpu backend instead.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (m *MockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

// elementWise performs element-wise operations with broadcasting.
func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	// Broadcast shapes
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	// Create output tensor
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Perform operation (naive implementation)
	numElements := outShape.NumElements()

	// Convert to float64 for generic processing
	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	for i := 0; i < numElements; i++ {
		aIdx := m.broadcastIndex(i, outShape, a.Shape())
		bIdx := m.broadcastIndex(i, outShape, b.Shape())

		resultData[i] = op(aData[aIdx], bData[bIdx])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MulScalar multiplies every element by scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	return m.scalarWise(x, scalar, func(v, s float64) float64 { return v * s })
}

// AddScalar adds scalar to every element.
func (m *MockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor {
	return m.scalarWise(x, scalar, func(v, s float64) float64 { return v + s })
}

// SubScalar subtracts scalar from every element.
func (m *MockBackend) SubScalar(x *RawTensor, scalar any) *RawTensor {
	return m.scalarWise(x, scalar, func(v, s float64) float64 { return v - s })
}

// DivScalar divides every element by scalar.
func (m *MockBackend) DivScalar(x *RawTensor, scalar any) *RawTensor {
	return m.scalarWise(x, scalar, func(v, s float64) float64 { return v / s })
}

func (m *MockBackend) scalarWise(x *RawTensor, scalar any, op func(float64, float64) float64) *RawTensor {
	s := mockScalarValue(scalar)

	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	for i := range data {
		data[i] = op(data[i], s)
	}

	m.fromFloat64Slice(data, result)
	return result
}

func mockScalarValue(v any) float64 {
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
		panic(fmt.Sprintf("unsupported scalar type: %T", v))
	}
}

// Sqrt computes the element-wise square root.
func (m *MockBackend) Sqrt(x *RawTensor) *RawTensor {
	return m.unary(x, math.Sqrt)
}

// Rsqrt computes the element-wise reciprocal square root.
func (m *MockBackend) Rsqrt(x *RawTensor) *RawTensor {
	return m.unary(x, func(v float64) float64 { return 1.0 / math.Sqrt(v) })
}

func (m *MockBackend) unary(x *RawTensor, f func(float64) float64) *RawTensor {
	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	for i := range data {
		data[i] = f(data[i])
	}

	m.fromFloat64Slice(data, result)
	return result
}

// MatMul performs matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	// Only support 2D for now
	if len(aShape) != 2 || len(bShape) != 2 {
		panic("MatMul only supports 2D tensors in mock backend")
	}

	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("incompatible shapes for MatMul: %v @ %v", aShape, bShape))
	}

	M, K := aShape[0], aShape[1]
	N := bShape[1]

	outShape := Shape{M, N}
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	// Naive matrix multiplication
	for i := 0; i < M; i++ {
		for j := 0; j < N; j++ {
			sum := 0.0
			for k := 0; k < K; k++ {
				sum += aData[i*K+k] * bData[k*N+j]
			}
			resultData[i*N+j] = sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
func (m *MockBackend) BatchMatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	ndim := len(aShape)
	if ndim != len(bShape) || (ndim != 3 && ndim != 4) {
		panic(fmt.Sprintf("BatchMatMul requires matching 3D or 4D tensors: %v @ %v", aShape, bShape))
	}

	batch := 1
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("BatchMatMul batch dims mismatch: %v @ %v", aShape, bShape))
		}
		batch *= aShape[i]
	}

	M, K := aShape[ndim-2], aShape[ndim-1]
	if bShape[ndim-2] != K {
		panic(fmt.Sprintf("incompatible shapes for BatchMatMul: %v @ %v", aShape, bShape))
	}
	N := bShape[ndim-1]

	outShape := aShape.Clone()
	outShape[ndim-1] = N
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	for bi := 0; bi < batch; bi++ {
		aOff := bi * M * K
		bOff := bi * K * N
		outOff := bi * M * N
		for i := 0; i < M; i++ {
			for j := 0; j < N; j++ {
				sum := 0.0
				for k := 0; k < K; k++ {
					sum += aData[aOff+i*K+k] * bData[bOff+k*N+j]
				}
				resultData[outOff+i*N+j] = sum
			}
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Reshape changes tensor shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(err)
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("cannot reshape tensor with %d elements to shape %v (%d elements)",
			t.NumElements(), newShape, newShape.NumElements()))
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Copy data
	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes tensor dimensions.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, len(shape))
		for i := range axes {
			axes[i] = len(shape) - 1 - i
		}
	}

	// Validate axes
	if len(axes) != len(shape) {
		panic(fmt.Sprintf("axes length %d doesn't match tensor dimensions %d", len(axes), len(shape)))
	}

	// Compute new shape
	newShape := make(Shape, len(shape))
	for i, axis := range axes {
		if axis < 0 || axis >= len(shape) {
			panic(fmt.Sprintf("axis %d out of bounds for tensor with %d dimensions", axis, len(shape)))
		}
		newShape[i] = shape[axis]
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Transpose data (naive implementation)
	tData := m.toFloat64Slice(t)
	resultData := m.toFloat64Slice(result)

	oldStrides := shape.ComputeStrides()
	newStrides := newShape.ComputeStrides()

	for i := 0; i < t.NumElements(); i++ {
		// Convert flat index to multi-dimensional indices
		indices := make([]int, len(shape))
		temp := i
		for j := 0; j < len(shape); j++ {
			indices[j] = temp / oldStrides[j]
			temp %= oldStrides[j]
		}

		// Permute indices
		permuted := make([]int, len(indices))
		for j, axis := range axes {
			permuted[j] = indices[axis]
		}

		// Convert permuted indices to flat index
		newIdx := 0
		for j, idx := range permuted {
			newIdx += idx * newStrides[j]
		}

		resultData[newIdx] = tData[i]
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Cat concatenates tensors along the given dimension.
func (m *MockBackend) Cat(tensors []*RawTensor, dim int) *RawTensor {
	if len(tensors) == 0 {
		panic("Cat requires at least one tensor")
	}

	first := tensors[0].Shape()
	ndim := len(first)
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("Cat dimension %d out of range for %dD tensors", dim, ndim))
	}

	total := 0
	for _, t := range tensors {
		shape := t.Shape()
		if len(shape) != ndim {
			panic(fmt.Sprintf("Cat requires matching ranks: %v vs %v", first, shape))
		}
		if t.DType() != tensors[0].DType() {
			panic("Cat requires matching dtypes")
		}
		for d := 0; d < ndim; d++ {
			if d != dim && shape[d] != first[d] {
				panic(fmt.Sprintf("Cat shapes differ outside dimension %d: %v vs %v", dim, first, shape))
			}
		}
		total += shape[dim]
	}

	outShape := first.Clone()
	outShape[dim] = total
	result, err := NewRaw(outShape, tensors[0].DType(), m.Device())
	if err != nil {
		panic(err)
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= first[d]
	}
	inner := tensors[0].DType().Size()
	for d := dim + 1; d < ndim; d++ {
		inner *= first[d]
	}

	// Copy row chunks tensor by tensor for each outer slice
	dst := result.Data()
	dstOff := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			row := t.Shape()[dim] * inner
			copy(dst[dstOff:dstOff+row], t.Data()[o*row:(o+1)*row])
			dstOff += row
		}
	}

	return result
}

// Unsqueeze inserts a size-1 dimension at dim.
func (m *MockBackend) Unsqueeze(t *RawTensor, dim int) *RawTensor {
	shape := t.Shape()
	if dim < 0 {
		dim = len(shape) + 1 + dim
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("Unsqueeze dimension %d out of range for %dD tensor", dim, len(shape)))
	}

	newShape := make(Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return m.Reshape(t, newShape)
}

// Squeeze removes the size-1 dimension at dim.
func (m *MockBackend) Squeeze(t *RawTensor, dim int) *RawTensor {
	shape := t.Shape()
	if dim < 0 {
		dim = len(shape) + dim
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("Squeeze dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("cannot squeeze dimension %d with size %d", dim, shape[dim]))
	}

	newShape := make(Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return m.Reshape(t, newShape)
}

// Sum computes the total sum of all elements (scalar result).
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	result, err := NewRaw(Shape{}, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	total := 0.0
	for _, v := range m.toFloat64Slice(x) {
		total += v
	}

	m.fromFloat64Slice([]float64{total}, result)
	return result
}

// SumDim sums tensor elements along the specified dimension.
func (m *MockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, false)
}

// MeanDim computes the mean of tensor elements along the specified dimension.
func (m *MockBackend) MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, true)
}

func (m *MockBackend) reduceDim(x *RawTensor, dim int, keepDim, mean bool) *RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("reduce dimension %d out of range for %dD tensor", dim, ndim))
	}

	reducedShape := shape.Clone()
	reducedShape[dim] = 1

	var outShape Shape
	if keepDim {
		outShape = reducedShape
	} else {
		outShape = make(Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	strides := shape.ComputeStrides()
	outStrides := reducedShape.ComputeStrides()

	in := m.toFloat64Slice(x)
	out := make([]float64, reducedShape.NumElements())

	for i := 0; i < len(in); i++ {
		outIdx := 0
		temp := i
		for d := 0; d < ndim; d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		out[outIdx] += in[i]
	}

	if mean {
		divisor := float64(shape[dim])
		for i := range out {
			out[i] /= divisor
		}
	}

	result, err := NewRaw(outShape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}
	m.fromFloat64Slice(out, result)
	return result
}

// Softmax computes softmax along the last dimension.
func (m *MockBackend) Softmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	if dim != ndim-1 {
		panic("Softmax only supports the last dimension in mock backend")
	}

	lastDim := shape[ndim-1]
	rows := x.NumElements() / lastDim

	result, err := NewRaw(shape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	in := m.toFloat64Slice(x)
	out := make([]float64, len(in))

	for r := 0; r < rows; r++ {
		off := r * lastDim

		maxVal := in[off]
		for i := 1; i < lastDim; i++ {
			if in[off+i] > maxVal {
				maxVal = in[off+i]
			}
		}

		sum := 0.0
		for i := 0; i < lastDim; i++ {
			out[off+i] = math.Exp(in[off+i] - maxVal)
			sum += out[off+i]
		}
		for i := 0; i < lastDim; i++ {
			out[off+i] /= sum
		}
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Embedding gathers rows of weight at the given int64 indices.
func (m *MockBackend) Embedding(weight, indices *RawTensor) *RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("Embedding requires 2D weight [V, E], got %v", wShape))
	}
	if indices.DType() != Int64 {
		panic(fmt.Sprintf("Embedding requires int64 indices, got %s", indices.DType()))
	}

	vocab, embed := wShape[0], wShape[1]
	idx := indices.AsInt64()

	outShape := append(indices.Shape().Clone(), embed)
	result, err := NewRaw(outShape, weight.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	w := m.toFloat64Slice(weight)
	out := make([]float64, outShape.NumElements())
	for i, id := range idx {
		if id < 0 || id >= int64(vocab) {
			panic(fmt.Sprintf("Embedding index %d out of range [0, %d)", id, vocab))
		}
		copy(out[i*embed:(i+1)*embed], w[int(id)*embed:(int(id)+1)*embed])
	}

	m.fromFloat64Slice(out, result)
	return result
}

// Cast converts the tensor to a different data type.
func (m *MockBackend) Cast(x *RawTensor, dtype DataType) *RawTensor {
	result, err := NewRaw(x.Shape(), dtype, m.Device())
	if err != nil {
		panic(err)
	}
	m.fromFloat64Slice(m.toFloat64Slice(x), result)
	return result
}

// Volumetric kernels are not implemented in the mock backend.

// Conv3D panics; use the cpu backend.
func (m *MockBackend) Conv3D(input, kernel *RawTensor, stride, padding int) *RawTensor {
	panic("Conv3D not implemented in mock backend")
}

// Conv3DInputBackward panics; use the cpu backend.
func (m *MockBackend) Conv3DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor {
	panic("Conv3DInputBackward not implemented in mock backend")
}

// Conv3DKernelBackward panics; use the cpu backend.
func (m *MockBackend) Conv3DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor {
	panic("Conv3DKernelBackward not implemented in mock backend")
}

// ConvTranspose3D panics; use the cpu backend.
func (m *MockBackend) ConvTranspose3D(input, kernel *RawTensor, stride int) *RawTensor {
	panic("ConvTranspose3D not implemented in mock backend")
}

// ConvTranspose3DKernelBackward panics; use the cpu backend.
func (m *MockBackend) ConvTranspose3DKernelBackward(input, kernel, outputGrad *RawTensor, stride int) *RawTensor {
	panic("ConvTranspose3DKernelBackward not implemented in mock backend")
}

// MaxPool3D panics; use the cpu backend.
func (m *MockBackend) MaxPool3D(input *RawTensor, kernelSize, stride int) *RawTensor {
	panic("MaxPool3D not implemented in mock backend")
}

// MaxPool3DBackward panics; use the cpu backend.
func (m *MockBackend) MaxPool3DBackward(input, outputGrad *RawTensor, maxIndices []int, kernelSize, stride int) *RawTensor {
	panic("MaxPool3DBackward not implemented in mock backend")
}

// AvgPool3D panics; use the cpu backend.
func (m *MockBackend) AvgPool3D(input *RawTensor, kernel, stride [3]int) *RawTensor {
	panic("AvgPool3D not implemented in mock backend")
}

// Pad3D panics; use the cpu backend.
func (m *MockBackend) Pad3D(x *RawTensor, pads [6]int) *RawTensor {
	panic("Pad3D not implemented in mock backend")
}

// Pad3DBackward panics; use the cpu backend.
func (m *MockBackend) Pad3DBackward(outputGrad *RawTensor, pads [6]int) *RawTensor {
	panic("Pad3DBackward not implemented in mock backend")
}

// UpsampleNearest3D panics; use the cpu backend.
func (m *MockBackend) UpsampleNearest3D(x *RawTensor, scales [3]int) *RawTensor {
	panic("UpsampleNearest3D not implemented in mock backend")
}

// Helper functions

func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	switch t.DType() {
	case Float32:
		src := t.AsFloat32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Float64:
		return t.AsFloat64()
	case Int64:
		src := t.AsInt64()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Uint8:
		src := t.AsUint8()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	default:
		panic(fmt.Sprintf("unsupported dtype: %s", t.DType()))
	}
}

func (m *MockBackend) fromFloat64Slice(src []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), src)
	case Int64:
		dst := t.AsInt64()
		for i, v := range src {
			dst[i] = int64(v)
		}
	case Uint8:
		dst := t.AsUint8()
		for i, v := range src {
			dst[i] = uint8(v)
		}
	}
}

func (m *MockBackend) broadcastIndex(flatIdx int, outShape, inShape Shape) int {
	// Convert flat index to multi-dimensional indices in output shape
	outStrides := outShape.ComputeStrides()
	indices := make([]int, len(outShape))

	temp := flatIdx
	for i := 0; i < len(outShape); i++ {
		indices[i] = temp / outStrides[i]
		temp %= outStrides[i]
	}

	// Map to input shape (accounting for broadcasting)
	inStrides := inShape.ComputeStrides()
	inIdx := 0

	offset := len(outShape) - len(inShape)
	for i := 0; i < len(inShape); i++ {
		outDimIdx := indices[offset+i]
		inDim := inShape[i]

		// If input dimension is 1, always use index 0 (broadcasting)
		if inDim == 1 {
			outDimIdx = 0
		}

		inIdx += outDimIdx * inStrides[i]
	}

	return inIdx
}
