package autodiff_test

import (
	"math"
	"testing"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

// numericalGradient computes the gradient using central finite differences.
func numericalGradient(f func(float32) float32, x, epsilon float32) float32 {
	return (f(x+epsilon) - f(x-epsilon)) / (2 * epsilon)
}

// perturbedGradient perturbs one element of data in place, evaluates
// objective twice, and restores the element. The objective must read
// data fresh on every call.
func perturbedGradient(data []float32, idx int, epsilon float32, objective func() float32) float32 {
	old := data[idx]
	data[idx] = old + epsilon
	plus := objective()
	data[idx] = old - epsilon
	minus := objective()
	data[idx] = old
	return (plus - minus) / (2 * epsilon)
}

// sumAll sums a tensor's float32 elements.
func sumAll(t *tensor.RawTensor) float32 {
	var total float32
	for _, v := range t.AsFloat32() {
		total += v
	}
	return total
}

// TestNumericalGradient_Square tests f(x) = x².
func TestNumericalGradient_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-4)
	testPoint := float32(3.0)

	// Autodiff gradient
	tape.Clear()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{testPoint}, tensor.Shape{1}, backend)
	y := backend.Mul(x.Raw(), x.Raw()) // y = x²

	result := tensor.New[float32](y, backend)
	gradients := autodiff.Backward(result, backend)

	autodiffGrad := gradients[x.Raw()].AsFloat32()[0]

	// Numerical gradient
	f := func(val float32) float32 { return val * val }
	numericalGrad := numericalGradient(f, testPoint, epsilon)

	// Expected: df/dx = 2x = 6.0
	expected := float32(6.0)

	if math.Abs(float64(autodiffGrad-expected)) > 1e-5 {
		t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, expected)
	}

	// Numerical gradients carry finite-difference error, so compare loosely
	if math.Abs(float64(autodiffGrad-numericalGrad)) > 0.01 {
		t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %f",
			autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
	}
}

// TestNumericalGradient_Division tests f(x) = 1/x.
func TestNumericalGradient_Division(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-4)
	testPoint := float32(2.0)

	tape.Clear()
	tape.StartRecording()

	one, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	x, _ := tensor.FromSlice([]float32{testPoint}, tensor.Shape{1}, backend)

	y := backend.Div(one.Raw(), x.Raw()) // y = 1/x

	result := tensor.New[float32](y, backend)
	gradients := autodiff.Backward(result, backend)

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("Expected gradient for x")
	}

	autodiffGrad := gradX.AsFloat32()[0]

	f := func(val float32) float32 { return 1 / val }
	numericalGrad := numericalGradient(f, testPoint, epsilon)

	// Expected: df/dx = -1/x² = -0.25
	expected := float32(-0.25)

	if math.Abs(float64(autodiffGrad-expected)) > 1e-4 {
		t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, expected)
	}

	if math.Abs(float64(autodiffGrad-numericalGrad)) > 0.01 {
		t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %f",
			autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
	}
}

// TestNumericalGradient_Sqrt tests f(x) = sqrt(x).
func TestNumericalGradient_Sqrt(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-3)
	testPoint := float32(4.0)

	tape.Clear()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{testPoint}, tensor.Shape{1}, backend)
	y := backend.Sqrt(x.Raw())

	result := tensor.New[float32](y, backend)
	gradients := autodiff.Backward(result, backend)

	autodiffGrad := gradients[x.Raw()].AsFloat32()[0]

	f := func(val float32) float32 { return float32(math.Sqrt(float64(val))) }
	numericalGrad := numericalGradient(f, testPoint, epsilon)

	// Expected: df/dx = 0.5/sqrt(x) = 0.25
	expected := float32(0.25)

	if math.Abs(float64(autodiffGrad-expected)) > 1e-5 {
		t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, expected)
	}

	if math.Abs(float64(autodiffGrad-numericalGrad)) > 0.01 {
		t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %f",
			autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
	}
}

// TestNumericalGradient_Rsqrt tests f(x) = 1/sqrt(x).
func TestNumericalGradient_Rsqrt(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-3)
	testPoint := float32(4.0)

	tape.Clear()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float32{testPoint}, tensor.Shape{1}, backend)
	y := backend.Rsqrt(x.Raw())

	result := tensor.New[float32](y, backend)
	gradients := autodiff.Backward(result, backend)

	autodiffGrad := gradients[x.Raw()].AsFloat32()[0]

	f := func(val float32) float32 { return float32(1 / math.Sqrt(float64(val))) }
	numericalGrad := numericalGradient(f, testPoint, epsilon)

	// Expected: df/dx = -0.5 * x^(-1.5) = -0.0625
	expected := float32(-0.0625)

	if math.Abs(float64(autodiffGrad-expected)) > 1e-5 {
		t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, expected)
	}

	if math.Abs(float64(autodiffGrad-numericalGrad)) > 0.01 {
		t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %f",
			autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
	}
}

// TestNumericalGradient_ReLU tests ReLU gradient checking.
func TestNumericalGradient_ReLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-4)

	tests := []struct {
		name      string
		testPoint float32
		expected  float32
	}{
		{"positive input", 2.0, 1.0},
		{"negative input", -2.0, 0.0},
		// At x=0 ReLU is not differentiable, skip that point
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tape.Clear()
			tape.StartRecording()

			x, _ := tensor.FromSlice([]float32{tt.testPoint}, tensor.Shape{1}, backend)
			y := backend.ReLU(x.Raw())

			result := tensor.New[float32](y, backend)
			gradients := autodiff.Backward(result, backend)

			autodiffGrad := gradients[x.Raw()].AsFloat32()[0]

			f := func(val float32) float32 {
				if val > 0 {
					return val
				}
				return 0
			}
			numericalGrad := numericalGradient(f, tt.testPoint, epsilon)

			if math.Abs(float64(autodiffGrad-tt.expected)) > 1e-5 {
				t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, tt.expected)
			}

			if math.Abs(float64(autodiffGrad-numericalGrad)) > 1e-3 {
				t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %f",
					autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
			}
		})
	}
}

// TestNumericalGradient_Conv3D verifies the volumetric convolution
// backward kernels element by element against finite differences. The
// input spans overlapping windows so the gather indices matter.
func TestNumericalGradient_Conv3D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-2)

	// Input [1,1,2,3,3], kernel [1,1,2,2,2], stride 1 -> output [1,1,1,2,2]
	inputData := make([]float32, 18)
	for i := range inputData {
		inputData[i] = float32((i*5)%7)*0.5 - 1.5
	}
	kernelData := make([]float32, 8)
	for i := range kernelData {
		kernelData[i] = float32((i*3)%5)*0.25 - 0.5
	}

	x, _ := tensor.FromSlice(inputData, tensor.Shape{1, 1, 2, 3, 3}, backend)
	k, _ := tensor.FromSlice(kernelData, tensor.Shape{1, 1, 2, 2, 2}, backend)

	// Autodiff gradients with a ones seed, equivalent to d(sum(out))/d·
	tape.Clear()
	tape.StartRecording()

	out := backend.Conv3D(x.Raw(), k.Raw(), 1, 0)
	result := tensor.New[float32](out, backend)
	gradients := autodiff.Backward(result, backend)

	tape.StopRecording()
	tape.Clear()

	gradInput := gradients[x.Raw()]
	gradKernel := gradients[k.Raw()]
	if gradInput == nil || gradKernel == nil {
		t.Fatal("Expected gradients for input and kernel")
	}

	// Conv output is linear in each element, so central differences are
	// exact up to float32 rounding
	objective := func() float32 {
		return sumAll(backend.Conv3D(x.Raw(), k.Raw(), 1, 0))
	}

	xData := x.Data()
	for i := range xData {
		numerical := perturbedGradient(xData, i, epsilon, objective)
		got := gradInput.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 0.01 {
			t.Errorf("grad_input[%d] = %f, numerical %f", i, got, numerical)
		}
	}

	kData := k.Data()
	for i := range kData {
		numerical := perturbedGradient(kData, i, epsilon, objective)
		got := gradKernel.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 0.01 {
			t.Errorf("grad_kernel[%d] = %f, numerical %f", i, got, numerical)
		}
	}
}

// TestNumericalGradient_ConvTranspose3D verifies the transposed
// convolution backward against finite differences, including the
// overlap where the stride is smaller than the kernel.
func TestNumericalGradient_ConvTranspose3D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-2)

	// Input [1,1,1,2,2], kernel [1,1,2,2,2], stride 1 -> output [1,1,2,3,3]
	inputData := []float32{0.5, -1.0, 1.5, 0.25}
	kernelData := []float32{1, -0.5, 0.75, 0.25, -1, 0.5, 1.25, -0.25}

	x, _ := tensor.FromSlice(inputData, tensor.Shape{1, 1, 1, 2, 2}, backend)
	k, _ := tensor.FromSlice(kernelData, tensor.Shape{1, 1, 2, 2, 2}, backend)

	tape.Clear()
	tape.StartRecording()

	out := backend.ConvTranspose3D(x.Raw(), k.Raw(), 1)
	result := tensor.New[float32](out, backend)
	gradients := autodiff.Backward(result, backend)

	tape.StopRecording()
	tape.Clear()

	gradInput := gradients[x.Raw()]
	gradKernel := gradients[k.Raw()]
	if gradInput == nil || gradKernel == nil {
		t.Fatal("Expected gradients for input and kernel")
	}

	objective := func() float32 {
		return sumAll(backend.ConvTranspose3D(x.Raw(), k.Raw(), 1))
	}

	xData := x.Data()
	for i := range xData {
		numerical := perturbedGradient(xData, i, epsilon, objective)
		got := gradInput.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 0.01 {
			t.Errorf("grad_input[%d] = %f, numerical %f", i, got, numerical)
		}
	}

	kData := k.Data()
	for i := range kData {
		numerical := perturbedGradient(kData, i, epsilon, objective)
		got := gradKernel.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 0.01 {
			t.Errorf("grad_kernel[%d] = %f, numerical %f", i, got, numerical)
		}
	}
}

// TestNumericalGradient_MaxPool3D verifies that the pooled gradient is 1
// at the window maximum and 0 elsewhere.
func TestNumericalGradient_MaxPool3D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	// Distinct values keep the argmax stable under the perturbation
	epsilon := float32(1e-2)
	inputData := []float32{1, 2, 3, 4, 5, 6, 7, 8}

	x, _ := tensor.FromSlice(inputData, tensor.Shape{1, 1, 2, 2, 2}, backend)

	tape.Clear()
	tape.StartRecording()

	out := backend.MaxPool3D(x.Raw(), 2, 2)
	result := tensor.New[float32](out, backend)
	gradients := autodiff.Backward(result, backend)

	tape.StopRecording()
	tape.Clear()

	gradInput := gradients[x.Raw()]
	if gradInput == nil {
		t.Fatal("Expected gradient for input")
	}

	objective := func() float32 {
		return sumAll(backend.MaxPool3D(x.Raw(), 2, 2))
	}

	xData := x.Data()
	for i := range xData {
		numerical := perturbedGradient(xData, i, epsilon, objective)
		got := gradInput.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 1e-3 {
			t.Errorf("grad_input[%d] = %f, numerical %f", i, got, numerical)
		}
	}
}

// TestNumericalGradient_Softmax verifies the softmax Jacobian product
// against finite differences with a fixed weighting of the outputs.
func TestNumericalGradient_Softmax(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-3)

	logits := []float32{0.5, -1.0, 2.0}
	weights := []float32{1.0, -2.0, 0.5}

	x, _ := tensor.FromSlice(logits, tensor.Shape{1, 3}, backend)
	w, _ := tensor.FromSlice(weights, tensor.Shape{1, 3}, backend)

	tape.Clear()
	tape.StartRecording()

	soft := backend.Softmax(x.Raw(), -1)
	out := backend.Mul(soft, w.Raw())
	result := tensor.New[float32](out, backend)
	gradients := autodiff.Backward(result, backend)

	tape.StopRecording()
	tape.Clear()

	gradX := gradients[x.Raw()]
	if gradX == nil {
		t.Fatal("Expected gradient for x")
	}

	// Objective computed independently of the backend
	objective := func(vals []float32) float32 {
		maxVal := vals[0]
		for _, v := range vals {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		exps := make([]float64, len(vals))
		for i, v := range vals {
			exps[i] = math.Exp(float64(v - maxVal))
			sum += exps[i]
		}
		var total float64
		for i := range vals {
			total += exps[i] / sum * float64(weights[i])
		}
		return float32(total)
	}

	for i := range logits {
		perturbed := make([]float32, len(logits))

		copy(perturbed, logits)
		perturbed[i] = logits[i] + epsilon
		plus := objective(perturbed)

		copy(perturbed, logits)
		perturbed[i] = logits[i] - epsilon
		minus := objective(perturbed)

		numerical := (plus - minus) / (2 * epsilon)
		got := gradX.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 1e-3 {
			t.Errorf("grad_x[%d] = %f, numerical %f", i, got, numerical)
		}
	}
}

// TestNumericalGradient_SmoothL1 verifies the loss gradient in both the
// quadratic and linear regions.
func TestNumericalGradient_SmoothL1(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float32(1e-3)
	beta := 1.0

	// Residuals -0.4 and 2.0: one per region, both away from the
	// boundary so the perturbation stays inside its region
	predData := []float32{1.1, 4.0}
	targetData := []float32{1.5, 2.0}

	pred, _ := tensor.FromSlice(predData, tensor.Shape{2}, backend)
	target, _ := tensor.FromSlice(targetData, tensor.Shape{2}, backend)

	tape.Clear()
	tape.StartRecording()

	loss := backend.SmoothL1(pred.Raw(), target.Raw(), beta)
	result := tensor.New[float32](loss, backend)
	gradients := autodiff.Backward(result, backend)

	tape.StopRecording()
	tape.Clear()

	gradPred := gradients[pred.Raw()]
	if gradPred == nil {
		t.Fatal("Expected gradient for pred")
	}

	objective := func() float32 {
		out := backend.SmoothL1(pred.Raw(), target.Raw(), beta)
		return out.AsFloat32()[0]
	}

	pData := pred.Data()
	for i := range pData {
		numerical := perturbedGradient(pData, i, epsilon, objective)
		got := gradPred.AsFloat32()[i]
		if math.Abs(float64(got-numerical)) > 1e-3 {
			t.Errorf("grad_pred[%d] = %f, numerical %f", i, got, numerical)
		}
	}
}

// TestNumericalGradient_Float64 tests gradient checking with float64.
func TestNumericalGradient_Float64(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	epsilon := float64(1e-8)
	testPoint := float64(3.0)

	// Autodiff gradient: f(x) = x²
	tape.Clear()
	tape.StartRecording()

	x, _ := tensor.FromSlice([]float64{testPoint}, tensor.Shape{1}, backend)
	y := backend.Mul(x.Raw(), x.Raw())

	result := tensor.New[float64](y, backend)
	gradients := autodiff.Backward(result, backend)

	autodiffGrad := gradients[x.Raw()].AsFloat64()[0]

	f := func(val float64) float64 { return val * val }
	numericalGrad := (f(testPoint+epsilon) - f(testPoint-epsilon)) / (2 * epsilon)

	// Expected: df/dx = 2x = 6.0
	expected := float64(6.0)

	if math.Abs(autodiffGrad-expected) > 1e-9 {
		t.Errorf("Autodiff gradient = %f, want %f", autodiffGrad, expected)
	}

	if math.Abs(autodiffGrad-numericalGrad) > 1e-6 {
		t.Errorf("Autodiff grad (%f) differs from numerical grad (%f) by %e",
			autodiffGrad, numericalGrad, autodiffGrad-numericalGrad)
	}
}
