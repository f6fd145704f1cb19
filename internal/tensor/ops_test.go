package tensor

import (
	"fmt"
	"math"
	"testing"
)

// Division Tests

func TestTensorDiv(t *testing.T) {
	backend := NewMockBackend()
	a, _ := FromSlice([]float32{10, 20, 30, 40}, Shape{2, 2}, backend)
	b, _ := FromSlice([]float32{2, 4, 5, 8}, Shape{2, 2}, backend)

	c := a.Div(b)

	expected := []float32{5, 5, 6, 5}
	got := c.Data()

	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("Div[%d]", i))
	}
}

// BatchMatMul Tests

func TestTensorBatchMatMul(t *testing.T) {
	backend := NewMockBackend()
	// Batch of 2 matrices: (2, 2, 2) @ (2, 2, 2) → (2, 2, 2)
	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, Shape{2, 2, 2}, backend)
	b, _ := FromSlice([]float32{1, 0, 0, 1, 2, 0, 0, 2}, Shape{2, 2, 2}, backend)

	c := a.BatchMatMul(b)

	assertEqualShape(t, Shape{2, 2, 2}, c.Shape(), "BatchMatMul shape")

	// First batch: [[1,2],[3,4]] @ [[1,0],[0,1]] = [[1,2],[3,4]]
	assertEqualFloat32(t, 1, c.At(0, 0, 0), "BatchMatMul[0,0,0]")
	assertEqualFloat32(t, 2, c.At(0, 0, 1), "BatchMatMul[0,0,1]")
	assertEqualFloat32(t, 3, c.At(0, 1, 0), "BatchMatMul[0,1,0]")
	assertEqualFloat32(t, 4, c.At(0, 1, 1), "BatchMatMul[0,1,1]")

	// Second batch: [[5,6],[7,8]] @ [[2,0],[0,2]] = [[10,12],[14,16]]
	assertEqualFloat32(t, 10, c.At(1, 0, 0), "BatchMatMul[1,0,0]")
	assertEqualFloat32(t, 16, c.At(1, 1, 1), "BatchMatMul[1,1,1]")
}

// Reduction Tests

func TestTensorSumDim(t *testing.T) {
	backend := NewMockBackend()
	// [[1, 2, 3],
	//  [4, 5, 6]]
	tensor, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)

	// Sum along dim 0 (reduce rows)
	sum0 := tensor.SumDim(0, false)
	assertEqualShape(t, Shape{3}, sum0.Shape(), "SumDim(0) shape")
	expected0 := []float32{5, 7, 9} // [1+4, 2+5, 3+6]
	for i, exp := range expected0 {
		assertEqualFloat32(t, exp, sum0.At(i), fmt.Sprintf("SumDim(0)[%d]", i))
	}

	// Sum along dim 1 (reduce columns)
	sum1 := tensor.SumDim(1, false)
	assertEqualShape(t, Shape{2}, sum1.Shape(), "SumDim(1) shape")
	expected1 := []float32{6, 15} // [1+2+3, 4+5+6]
	for i, exp := range expected1 {
		assertEqualFloat32(t, exp, sum1.At(i), fmt.Sprintf("SumDim(1)[%d]", i))
	}

	// Sum with keepdim
	sum0Keep := tensor.SumDim(0, true)
	assertEqualShape(t, Shape{1, 3}, sum0Keep.Shape(), "SumDim(0, keepdim) shape")
}

func TestTensorMeanDim(t *testing.T) {
	backend := NewMockBackend()
	// [[2, 4, 6],
	//  [8, 10, 12]]
	tensor, _ := FromSlice([]float32{2, 4, 6, 8, 10, 12}, Shape{2, 3}, backend)

	// Mean along dim 0
	mean0 := tensor.MeanDim(0, false)
	assertEqualShape(t, Shape{3}, mean0.Shape(), "MeanDim(0) shape")
	expected0 := []float32{5, 7, 9} // [(2+8)/2, (4+10)/2, (6+12)/2]
	for i, exp := range expected0 {
		assertEqualFloat32(t, exp, mean0.At(i), fmt.Sprintf("MeanDim(0)[%d]", i))
	}

	// Mean along dim 1
	mean1 := tensor.MeanDim(1, false)
	assertEqualShape(t, Shape{2}, mean1.Shape(), "MeanDim(1) shape")
	expected1 := []float32{4, 10} // [(2+4+6)/3, (8+10+12)/3]
	for i, exp := range expected1 {
		assertEqualFloat32(t, exp, mean1.At(i), fmt.Sprintf("MeanDim(1)[%d]", i))
	}

	// Negative dim indexes from the end
	meanNeg := tensor.MeanDim(-1, false)
	assertEqualShape(t, Shape{2}, meanNeg.Shape(), "MeanDim(-1) shape")
	for i, exp := range expected1 {
		assertEqualFloat32(t, exp, meanNeg.At(i), fmt.Sprintf("MeanDim(-1)[%d]", i))
	}
}

// Scalar Operations Tests

func TestTensorMulScalar(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)

	result := tensor.MulScalar(2.5)

	expected := []float32{2.5, 5, 7.5, 10}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("MulScalar[%d]", i))
	}
}

func TestTensorAddScalar(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)

	result := tensor.AddScalar(10)

	expected := []float32{11, 12, 13, 14}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("AddScalar[%d]", i))
	}
}

func TestTensorSubScalar(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{10, 20, 30, 40}, Shape{2, 2}, backend)

	result := tensor.SubScalar(5)

	expected := []float32{5, 15, 25, 35}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("SubScalar[%d]", i))
	}
}

func TestTensorDivScalar(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{10, 20, 30, 40}, Shape{2, 2}, backend)

	result := tensor.DivScalar(10)

	expected := []float32{1, 2, 3, 4}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("DivScalar[%d]", i))
	}
}

// Mathematical Functions Tests

func TestTensorSqrt(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 4, 9, 16}, Shape{4}, backend)

	result := tensor.Sqrt()

	expected := []float32{1, 2, 3, 4}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("Sqrt[%d]", i))
	}
}

func TestTensorRsqrt(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 4, 9, 16}, Shape{4}, backend)

	result := tensor.Rsqrt()

	expected := []float32{1, 0.5, 0.333333, 0.25}
	got := result.Data()
	for i := range expected {
		if math.Abs(float64(got[i]-expected[i])) > 1e-5 {
			t.Errorf("Rsqrt[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}

// Softmax Tests

func TestTensorSoftmax(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 1, 1, 1}, Shape{2, 3}, backend)

	result := tensor.Softmax(-1)

	assertEqualShape(t, Shape{2, 3}, result.Shape(), "Softmax shape")

	// Each row sums to 1
	data := result.Data()
	for r := 0; r < 2; r++ {
		rowSum := float32(0)
		for c := 0; c < 3; c++ {
			rowSum += data[r*3+c]
		}
		assertEqualFloat32(t, 1.0, rowSum, fmt.Sprintf("Softmax row %d sum", r))
	}

	// Larger logits get larger probabilities
	if !(result.At(0, 2) > result.At(0, 1) && result.At(0, 1) > result.At(0, 0)) {
		t.Error("Softmax should preserve ordering of logits")
	}

	// Uniform logits give uniform probabilities
	assertEqualFloat32(t, 1.0/3.0, result.At(1, 0), "Softmax uniform row")
}

// Other Operations Tests

func TestTensorSum(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)

	result := tensor.Sum()

	// Sum of all elements: 1+2+3+4+5+6 = 21
	if result.Item() != 21 {
		t.Errorf("Sum() = %v, want 21", result.Item())
	}
}

func TestBackendEmbedding(t *testing.T) {
	backend := NewMockBackend()
	// Embedding table: 4 rows, 3 dimensions
	// [[1, 2, 3],
	//  [4, 5, 6],
	//  [7, 8, 9],
	//  [10, 11, 12]]
	table, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, Shape{4, 3}, backend)
	indices, _ := FromSlice([]int64{0, 2, 1}, Shape{3}, backend)

	result := New[float32](backend.Embedding(table.Raw(), indices.Raw()), backend)

	assertEqualShape(t, Shape{3, 3}, result.Shape(), "Embedding shape")
	// Should get:
	// [[1, 2, 3],    <- row 0
	//  [7, 8, 9],    <- row 2
	//  [4, 5, 6]]    <- row 1
	assertEqualFloat32(t, 1, result.At(0, 0), "Embedding[0,0]")
	assertEqualFloat32(t, 7, result.At(1, 0), "Embedding[1,0]")
	assertEqualFloat32(t, 4, result.At(2, 0), "Embedding[2,0]")
}

// Type Conversion Tests

func TestTensorFloat32(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]int64{1, 2, 3}, Shape{3}, backend)

	result := tensor.Float32()

	expected := []float32{1, 2, 3}
	got := result.Data()
	for i := range expected {
		assertEqualFloat32(t, expected[i], got[i], fmt.Sprintf("Float32[%d]", i))
	}
}

func TestTensorFloat64(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1.5, 2.5, 3.5}, Shape{3}, backend)

	result := tensor.Float64()

	expected := []float64{1.5, 2.5, 3.5}
	got := result.Data()
	for i := range expected {
		if math.Abs(got[i]-expected[i]) > 1e-6 {
			t.Errorf("Float64[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}

func TestTensorInt64(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1.7, 2.3, 3.9}, Shape{3}, backend)

	result := tensor.Int64()

	expected := []int64{1, 2, 3}
	got := result.Data()
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Int64[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}

func TestTensorUint8(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{0, 127.6, 255}, Shape{3}, backend)

	result := tensor.Uint8()

	expected := []uint8{0, 127, 255}
	got := result.Data()
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Uint8[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}
