package nn

import (
	"testing"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

// TestDropout_Creation tests construction and probability validation.
func TestDropout_Creation(t *testing.T) {
	drop := NewDropout[*cpu.CPUBackend](0.1)

	if drop.P() != 0.1 {
		t.Errorf("Expected p=0.1, got %f", drop.P())
	}
	if !drop.Training() {
		t.Error("Dropout should start in training mode")
	}
	if len(drop.Parameters()) != 0 {
		t.Error("Dropout should have no parameters")
	}
}

// TestDropout_RejectsInvalidProbability tests that p=1 panics.
func TestDropout_RejectsInvalidProbability(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for p=1, got none")
		}
	}()

	NewDropout[*cpu.CPUBackend](1.0)
}

// TestDropout_EvalIdentity tests that evaluation mode passes input through.
func TestDropout_EvalIdentity(t *testing.T) {
	backend := cpu.New()

	drop := NewDropout[*cpu.CPUBackend](0.5)
	drop.SetTraining(false)

	input := tensor.Randn[float32](tensor.Shape{4, 8}, backend)
	output := drop.Forward(input)

	// Evaluation mode returns the input tensor unchanged
	if output != input {
		t.Error("Eval mode should return the input tensor itself")
	}
}

// TestDropout_ZeroProbability tests that p=0 is the identity even in training.
func TestDropout_ZeroProbability(t *testing.T) {
	backend := cpu.New()

	drop := NewDropout[*cpu.CPUBackend](0.0)

	input := tensor.Randn[float32](tensor.Shape{4, 8}, backend)
	output := drop.Forward(input)

	if output != input {
		t.Error("p=0 should return the input tensor itself")
	}
}

// TestDropout_TrainingMask tests the inverted dropout scaling.
func TestDropout_TrainingMask(t *testing.T) {
	backend := cpu.New()

	drop := NewDropout[*cpu.CPUBackend](0.5)

	// Large all-ones input so the keep rate concentrates around p
	input := tensor.Ones[float32](tensor.Shape{1000}, backend)
	output := drop.Forward(input)

	// Survivors are scaled by 1/(1-0.5) = 2, dropped elements are 0
	kept := 0
	for i, v := range output.Raw().AsFloat32() {
		switch v {
		case 2.0:
			kept++
		case 0.0:
			// dropped
		default:
			t.Fatalf("Output[%d]: expected 0 or 2, got %f", i, v)
		}
	}

	// With n=1000 and p=0.5 the kept count stays well inside this range
	if kept < 350 || kept > 650 {
		t.Errorf("Kept %d of 1000 elements, expected roughly half", kept)
	}
}

// TestDropout_GradientMatchesMask tests that gradients flow only through
// surviving elements.
func TestDropout_GradientMatchesMask(t *testing.T) {
	backend := autodiff.New(cpu.New())

	backend.Tape().StartRecording()
	defer func() {
		backend.Tape().StopRecording()
		backend.Tape().Clear()
	}()

	drop := NewDropout[*autodiff.AutodiffBackend[*cpu.CPUBackend]](0.5)

	input := tensor.Ones[float32](tensor.Shape{100}, backend)
	output := drop.Forward(input)

	loss := output.Sum()
	grads := autodiff.Backward(loss, backend)

	inputGrad, ok := grads[input.Raw()]
	if !ok {
		t.Fatal("No gradient for input")
	}

	// With all-ones input the output equals the mask, and the input
	// gradient of a sum loss is the mask as well
	outputData := output.Raw().AsFloat32()
	gradData := inputGrad.AsFloat32()
	for i := range outputData {
		if gradData[i] != outputData[i] {
			t.Errorf("Gradient[%d] = %f, want mask value %f", i, gradData[i], outputData[i])
		}
	}
}
