package nn

import (
	"math"
	"testing"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

// TestPositionalTimeEmbedding_Creation tests construction.
func TestPositionalTimeEmbedding_Creation(t *testing.T) {
	backend := cpu.New()

	embed := NewPositionalTimeEmbedding(100, 32, backend)

	if embed.Capacity() != 100 {
		t.Errorf("Expected capacity=100, got %d", embed.Capacity())
	}
	if embed.Dim() != 32 {
		t.Errorf("Expected dim=32, got %d", embed.Dim())
	}

	// The sinusoidal table is fixed, not learned
	if len(embed.Parameters()) != 0 {
		t.Error("Time embedding should have no learnable parameters")
	}
	if embed.StateDict() != nil {
		t.Error("Time embedding should have no persistent state")
	}
}

// TestPositionalTimeEmbedding_KnownValues tests the sinusoid formula.
func TestPositionalTimeEmbedding_KnownValues(t *testing.T) {
	backend := cpu.New()

	embed := NewPositionalTimeEmbedding(10, 4, backend)
	embed.SetTraining(false) // disable dropout for exact values

	// Timestep 0: sin(0)=0 on even dims, cos(0)=1 on odd dims
	row0 := embed.Forward([]int{0}).Raw().AsFloat32()
	expected0 := []float32{0, 1, 0, 1}
	for i, exp := range expected0 {
		if row0[i] != exp {
			t.Errorf("Embedding(0)[%d]: expected %f, got %f", i, exp, row0[i])
		}
	}

	// Timestep 1 with dim=4: frequencies 1 and 1/100
	row1 := embed.Forward([]int{1}).Raw().AsFloat32()
	expected1 := []float32{
		float32(math.Sin(1.0)),
		float32(math.Cos(1.0)),
		float32(math.Sin(0.01)),
		float32(math.Cos(0.01)),
	}
	for i, exp := range expected1 {
		if math.Abs(float64(row1[i]-exp)) > 1e-5 {
			t.Errorf("Embedding(1)[%d]: expected %f, got %f", i, exp, row1[i])
		}
	}
}

// TestPositionalTimeEmbedding_BatchShape tests batched lookup.
func TestPositionalTimeEmbedding_BatchShape(t *testing.T) {
	backend := cpu.New()

	embed := NewPositionalTimeEmbedding(50, 16, backend)
	embed.SetTraining(false)

	output := embed.Forward([]int{1, 5, 9})

	expectedShape := tensor.Shape{3, 16}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Output shape: expected %v, got %v", expectedShape, output.Shape())
	}

	// Every feature is a sine or cosine, so bounded by [-1, 1]
	for i, v := range output.Raw().AsFloat32() {
		if v < -1.0 || v > 1.0 {
			t.Errorf("Embedding[%d] = %f outside [-1, 1]", i, v)
		}
	}
}

// TestPositionalTimeEmbedding_Deterministic tests that two embeddings
// with the same configuration agree.
func TestPositionalTimeEmbedding_Deterministic(t *testing.T) {
	backend := cpu.New()

	a := NewPositionalTimeEmbedding(20, 8, backend)
	b := NewPositionalTimeEmbedding(20, 8, backend)
	a.SetTraining(false)
	b.SetTraining(false)

	timesteps := []int{0, 3, 19}
	aOut := a.Forward(timesteps).Raw().AsFloat32()
	bOut := b.Forward(timesteps).Raw().AsFloat32()

	for i := range aOut {
		if aOut[i] != bOut[i] {
			t.Fatalf("Embedding mismatch at %d: %f != %f", i, aOut[i], bOut[i])
		}
	}
}

// TestPositionalTimeEmbedding_OutOfRange tests timestep validation.
func TestPositionalTimeEmbedding_OutOfRange(t *testing.T) {
	backend := cpu.New()
	embed := NewPositionalTimeEmbedding(10, 4, backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for timestep >= capacity, got none")
		}
	}()

	embed.Forward([]int{10})
}

// TestPositionalTimeEmbedding_EmptyBatch tests empty input validation.
func TestPositionalTimeEmbedding_EmptyBatch(t *testing.T) {
	backend := cpu.New()
	embed := NewPositionalTimeEmbedding(10, 4, backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for empty timestep batch, got none")
		}
	}()

	embed.Forward(nil)
}
