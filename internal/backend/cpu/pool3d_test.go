package cpu

import (
	"testing"

	"github.com/drift-ml/drift/internal/tensor"
)

func TestMaxPool3D_Forward(t *testing.T) {
	backend := New()

	t.Run("SingleWindow", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 2, 2, 2}, []float32{1, 5, 2, 8, 3, 7, 4, 6})

		result := backend.MaxPool3D(input, 2, 2)

		if !result.Shape().Equal(tensor.Shape{1, 1, 1, 1, 1}) {
			t.Fatalf("expected shape [1, 1, 1, 1, 1], got %v", result.Shape())
		}
		if result.AsFloat32()[0] != 8 {
			t.Errorf("expected 8, got %v", result.AsFloat32()[0])
		}
	})

	t.Run("MultipleWindows", func(t *testing.T) {
		inputData := make([]float32, 32)
		for i := range inputData {
			inputData[i] = float32(i)
		}
		input := rawFloat32(t, tensor.Shape{1, 1, 2, 4, 4}, inputData)

		result := backend.MaxPool3D(input, 2, 2)

		if !result.Shape().Equal(tensor.Shape{1, 1, 1, 2, 2}) {
			t.Fatalf("expected shape [1, 1, 1, 2, 2], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{21, 23, 29, 31}) {
			t.Errorf("got %v, expected [21, 23, 29, 31]", result.AsFloat32())
		}
	})

	t.Run("NegativeValues", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 2, 2, 2}, []float32{-8, -5, -7, -2, -6, -3, -4, -1})

		result := backend.MaxPool3D(input, 2, 2)

		if result.AsFloat32()[0] != -1 {
			t.Errorf("expected -1, got %v", result.AsFloat32()[0])
		}
	})

	t.Run("TooSmallPanics", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 2, 2}, make([]float32, 4))
		defer func() {
			if recover() == nil {
				t.Error("expected panic for depth smaller than kernel")
			}
		}()
		backend.MaxPool3D(input, 2, 2)
	})
}

func TestMaxPool3D_Backward(t *testing.T) {
	backend := New()

	input := rawFloat32(t, tensor.Shape{1, 1, 2, 2, 2}, []float32{1, 5, 2, 8, 3, 7, 4, 6})
	outputGrad := rawFloat32(t, tensor.Shape{1, 1, 1, 1, 1}, []float32{10})

	// Flat index of the window maximum (value 8).
	inputGrad := backend.MaxPool3DBackward(input, outputGrad, []int{3}, 2, 2)

	expected := []float32{0, 0, 0, 10, 0, 0, 0, 0}
	if !float32SliceEqual(inputGrad.AsFloat32(), expected) {
		t.Errorf("got %v, expected %v", inputGrad.AsFloat32(), expected)
	}
}

func TestMaxPool3D_BackwardAccumulates(t *testing.T) {
	backend := New()

	// Two output positions claiming the same input index must sum.
	input := rawFloat32(t, tensor.Shape{1, 1, 1, 1, 3}, []float32{1, 9, 2})
	outputGrad := rawFloat32(t, tensor.Shape{1, 1, 1, 1, 2}, []float32{4, 6})

	inputGrad := backend.MaxPool3DBackward(input, outputGrad, []int{1, 1}, 2, 1)

	if !float32SliceEqual(inputGrad.AsFloat32(), []float32{0, 10, 0}) {
		t.Errorf("got %v, expected [0, 10, 0]", inputGrad.AsFloat32())
	}
}

func TestAvgPool3D(t *testing.T) {
	backend := New()

	t.Run("SpatialOnly", func(t *testing.T) {
		// Kernel [1, 2, 2] halves H and W but keeps every frame, the
		// dataset downsampling configuration.
		inputData := make([]float32, 16)
		for i := range inputData {
			inputData[i] = float32(i)
		}
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 4, 4}, inputData)

		result := backend.AvgPool3D(input, [3]int{1, 2, 2}, [3]int{1, 2, 2})

		if !result.Shape().Equal(tensor.Shape{1, 1, 1, 2, 2}) {
			t.Fatalf("expected shape [1, 1, 1, 2, 2], got %v", result.Shape())
		}
		expected := []float32{2.5, 4.5, 10.5, 12.5}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("FramesPreserved", func(t *testing.T) {
		inputData := make([]float32, 8)
		for i := range inputData {
			inputData[i] = float32(i)
		}
		input := rawFloat32(t, tensor.Shape{1, 1, 2, 2, 2}, inputData)

		result := backend.AvgPool3D(input, [3]int{1, 2, 2}, [3]int{1, 2, 2})

		if !result.Shape().Equal(tensor.Shape{1, 1, 2, 1, 1}) {
			t.Fatalf("expected shape [1, 1, 2, 1, 1], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{1.5, 5.5}) {
			t.Errorf("got %v, expected [1.5, 5.5]", result.AsFloat32())
		}
	})
}

func TestUpsampleNearest3D(t *testing.T) {
	backend := New()

	t.Run("Float32", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 2, 2}, []float32{1, 2, 3, 4})

		result := backend.UpsampleNearest3D(input, [3]int{1, 2, 2})

		if !result.Shape().Equal(tensor.Shape{1, 1, 1, 4, 4}) {
			t.Fatalf("expected shape [1, 1, 1, 4, 4], got %v", result.Shape())
		}
		expected := []float32{
			1, 1, 2, 2,
			1, 1, 2, 2,
			3, 3, 4, 4,
			3, 3, 4, 4,
		}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("DepthScale", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 1, 2}, []float32{5, 6})

		result := backend.UpsampleNearest3D(input, [3]int{2, 1, 1})

		if !result.Shape().Equal(tensor.Shape{1, 1, 2, 1, 2}) {
			t.Fatalf("expected shape [1, 1, 2, 1, 2], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{5, 6, 5, 6}) {
			t.Errorf("got %v, expected [5, 6, 5, 6]", result.AsFloat32())
		}
	})

	t.Run("Uint8", func(t *testing.T) {
		input, err := tensor.NewRaw(tensor.Shape{1, 1, 1, 2, 2}, tensor.Uint8, tensor.CPU)
		if err != nil {
			t.Fatalf("NewRaw: %v", err)
		}
		copy(input.AsUint8(), []uint8{10, 20, 30, 40})

		result := backend.UpsampleNearest3D(input, [3]int{1, 2, 2})

		if result.DType() != tensor.Uint8 {
			t.Fatalf("expected uint8 result, got %s", result.DType())
		}
		expected := []uint8{
			10, 10, 20, 20,
			10, 10, 20, 20,
			30, 30, 40, 40,
			30, 30, 40, 40,
		}
		got := result.AsUint8()
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("element %d: got %d, expected %d", i, got[i], expected[i])
			}
		}
	})
}

func TestPad3D(t *testing.T) {
	backend := New()

	t.Run("SpatialBorder", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 2, 2}, []float32{1, 2, 3, 4})

		result := backend.Pad3D(input, [6]int{0, 0, 1, 1, 1, 1})

		if !result.Shape().Equal(tensor.Shape{1, 1, 1, 4, 4}) {
			t.Fatalf("expected shape [1, 1, 1, 4, 4], got %v", result.Shape())
		}
		expected := []float32{
			0, 0, 0, 0,
			0, 1, 2, 0,
			0, 3, 4, 0,
			0, 0, 0, 0,
		}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("DepthBefore", func(t *testing.T) {
		input := rawFloat32(t, tensor.Shape{1, 1, 1, 2, 2}, []float32{1, 2, 3, 4})

		result := backend.Pad3D(input, [6]int{1, 0, 0, 0, 0, 0})

		if !result.Shape().Equal(tensor.Shape{1, 1, 2, 2, 2}) {
			t.Fatalf("expected shape [1, 1, 2, 2, 2], got %v", result.Shape())
		}
		expected := []float32{0, 0, 0, 0, 1, 2, 3, 4}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("AsymmetricRoundTrip", func(t *testing.T) {
		inputData := make([]float32, 2*3*2*2*3)
		for i := range inputData {
			inputData[i] = float32(i) - 10
		}
		input := rawFloat32(t, tensor.Shape{2, 3, 2, 2, 3}, inputData)
		pads := [6]int{1, 0, 0, 2, 1, 1}

		padded := backend.Pad3D(input, pads)
		if !padded.Shape().Equal(tensor.Shape{2, 3, 3, 4, 5}) {
			t.Fatalf("expected shape [2, 3, 3, 4, 5], got %v", padded.Shape())
		}

		restored := backend.Pad3DBackward(padded, pads)
		if !restored.Shape().Equal(input.Shape()) {
			t.Fatalf("expected shape %v, got %v", input.Shape(), restored.Shape())
		}
		if !float32SliceEqual(restored.AsFloat32(), inputData) {
			t.Errorf("round trip lost data: got %v", restored.AsFloat32())
		}
	})
}
