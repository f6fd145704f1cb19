package nn

import (
	"math"
	"testing"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

// TestScaledDotProductAttention_Basic tests basic attention computation.
func TestScaledDotProductAttention_Basic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// Simple case: batch=1, heads=1, seq=2, head_dim=2
	// Q = [[1, 0], [0, 1]]
	// K = [[1, 0], [0, 1]]
	// V = [[2, 0], [0, 2]]
	Q, err := tensor.FromSlice[float32](
		[]float32{1, 0, 0, 1},
		tensor.Shape{1, 1, 2, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create query: %v", err)
	}

	K, err := tensor.FromSlice[float32](
		[]float32{1, 0, 0, 1},
		tensor.Shape{1, 1, 2, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	V, err := tensor.FromSlice[float32](
		[]float32{2, 0, 0, 2},
		tensor.Shape{1, 1, 2, 2},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create value: %v", err)
	}

	// Compute attention with auto-scale
	output, weights := ScaledDotProductAttention(Q, K, V, nil, 0)

	// Check output shape
	expectedShape := tensor.Shape{1, 1, 2, 2}
	if !output.Shape().Equal(expectedShape) {
		t.Errorf("Output shape = %v, expected %v", output.Shape(), expectedShape)
	}

	// Check weights shape
	expectedWeightsShape := tensor.Shape{1, 1, 2, 2}
	if !weights.Shape().Equal(expectedWeightsShape) {
		t.Errorf("Weights shape = %v, expected %v", weights.Shape(), expectedWeightsShape)
	}

	// Weights should sum to 1 along last dimension
	weightsData := weights.Data()
	row1Sum := weightsData[0] + weightsData[1]
	row2Sum := weightsData[2] + weightsData[3]

	if math.Abs(float64(row1Sum-1.0)) > 0.001 {
		t.Errorf("Row 1 weights sum = %v, expected 1.0", row1Sum)
	}
	if math.Abs(float64(row2Sum-1.0)) > 0.001 {
		t.Errorf("Row 2 weights sum = %v, expected 1.0", row2Sum)
	}

	// Identical diagonal Q and K favor the matching position, so each
	// output row leans towards the matching row of V.
	outputData := output.Data()
	if outputData[0] <= outputData[1] {
		t.Errorf("Row 1 output = %v, expected first component dominant", outputData[:2])
	}
	if outputData[3] <= outputData[2] {
		t.Errorf("Row 2 output = %v, expected second component dominant", outputData[2:])
	}
}

// TestScaledDotProductAttention_WithMask tests additive masking.
func TestScaledDotProductAttention_WithMask(t *testing.T) {
	backend := autodiff.New(cpu.New())

	seqLen := 3
	headDim := 4
	Q := tensor.Randn[float32](tensor.Shape{1, 1, seqLen, headDim}, backend)
	K := tensor.Randn[float32](tensor.Shape{1, 1, seqLen, headDim}, backend)
	V := tensor.Randn[float32](tensor.Shape{1, 1, seqLen, headDim}, backend)

	// Mask out the last key position for every query.
	negInf := float32(math.Inf(-1))
	mask, err := tensor.FromSlice[float32](
		[]float32{
			0, 0, negInf,
			0, 0, negInf,
			0, 0, negInf,
		},
		tensor.Shape{1, 1, seqLen, seqLen},
		backend,
	)
	if err != nil {
		t.Fatalf("Failed to create mask: %v", err)
	}

	_, weights := ScaledDotProductAttention(Q, K, V, mask, 0)
	weightsData := weights.Data()

	for i := 0; i < seqLen; i++ {
		masked := weightsData[i*seqLen+seqLen-1]
		if math.Abs(float64(masked)) > 1e-6 {
			t.Errorf("Query %d attends to masked key: weight = %v, expected ~0", i, masked)
		}

		sum := float32(0)
		for j := 0; j < seqLen; j++ {
			sum += weightsData[i*seqLen+j]
		}
		if math.Abs(float64(sum-1.0)) > 0.001 {
			t.Errorf("Row %d weights sum = %v, expected 1.0", i, sum)
		}
	}
}

// TestScaledDotProductAttention_CrossAttention tests seq_q != seq_k.
func TestScaledDotProductAttention_CrossAttention(t *testing.T) {
	backend := autodiff.New(cpu.New())

	seqQ := 5
	seqKV := 7
	headDim := 16

	Q := tensor.Randn[float32](tensor.Shape{2, 4, seqQ, headDim}, backend) // batch=2, heads=4
	K := tensor.Randn[float32](tensor.Shape{2, 4, seqKV, headDim}, backend)
	V := tensor.Randn[float32](tensor.Shape{2, 4, seqKV, headDim}, backend)

	// Compute attention
	output, weights := ScaledDotProductAttention(Q, K, V, nil, 0)

	// Check shapes
	expectedOutputShape := tensor.Shape{2, 4, seqQ, headDim}
	if !output.Shape().Equal(expectedOutputShape) {
		t.Errorf("Output shape = %v, expected %v", output.Shape(), expectedOutputShape)
	}

	expectedWeightsShape := tensor.Shape{2, 4, seqQ, seqKV}
	if !weights.Shape().Equal(expectedWeightsShape) {
		t.Errorf("Weights shape = %v, expected %v", weights.Shape(), expectedWeightsShape)
	}

	// Verify each query position has weights summing to 1
	weightsData := weights.Data()
	batch := 2
	heads := 4

	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			for q := 0; q < seqQ; q++ {
				sum := float32(0)
				for k := 0; k < seqKV; k++ {
					// Index: [b, h, q, k]
					idx := b*heads*seqQ*seqKV + h*seqQ*seqKV + q*seqKV + k
					sum += weightsData[idx]
				}
				if math.Abs(float64(sum-1.0)) > 0.01 {
					t.Errorf("Batch %d, head %d, query %d: weights sum = %v, expected 1.0",
						b, h, q, sum)
					break // Only report first error per batch/head
				}
			}
		}
	}
}

// TestScaledDotProductAttention_CustomScale tests custom scaling factor.
func TestScaledDotProductAttention_CustomScale(t *testing.T) {
	backend := autodiff.New(cpu.New())

	Q := tensor.Randn[float32](tensor.Shape{1, 1, 3, 8}, backend)
	K := tensor.Randn[float32](tensor.Shape{1, 1, 3, 8}, backend)
	V := tensor.Randn[float32](tensor.Shape{1, 1, 3, 8}, backend)

	// Test with custom scale (should not panic)
	customScale := float32(0.5)
	output, weights := ScaledDotProductAttention(Q, K, V, nil, customScale)

	// Basic sanity checks
	if output == nil || weights == nil {
		t.Error("ScaledDotProductAttention returned nil")
	}

	// Weights should sum to 1
	weightsData := weights.Data()
	for i := 0; i < 3; i++ {
		sum := float32(0)
		for j := 0; j < 3; j++ {
			idx := i*3 + j
			sum += weightsData[idx]
		}
		if math.Abs(float64(sum-1.0)) > 0.001 {
			t.Errorf("Row %d weights sum = %v, expected 1.0", i, sum)
		}
	}
}

// TestTransformerEncoderSA_ShapeInvariance verifies the block maps
// feature maps to identically shaped feature maps across resolutions.
func TestTransformerEncoderSA_ShapeInvariance(t *testing.T) {
	backend := autodiff.New(cpu.New())

	tests := []struct {
		name     string
		channels int
		size     int
		heads    int
		batch    int
	}{
		{"small map", 8, 2, 2, 1},
		{"mid map", 16, 4, 4, 2},
		{"wide map", 32, 4, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := NewTransformerEncoderSA(tt.channels, tt.size, tt.heads, backend)

			shape := tensor.Shape{tt.batch, tt.channels, tt.size, tt.size}
			x := tensor.Randn[float32](shape, backend)
			y := block.Forward(x)

			if !y.Shape().Equal(shape) {
				t.Errorf("Output shape = %v, expected %v", y.Shape(), shape)
			}
		})
	}
}

// TestTransformerEncoderSA_RejectsWrongShape verifies the resolution
// contract is enforced.
func TestTransformerEncoderSA_RejectsWrongShape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	block := NewTransformerEncoderSA(8, 4, 2, backend)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Forward accepted input with wrong spatial size")
		}
	}()

	x := tensor.Randn[float32](tensor.Shape{1, 8, 2, 2}, backend)
	block.Forward(x)
}

// TestTransformerEncoderSA_StateDictRoundTrip verifies save/restore of
// the block state.
func TestTransformerEncoderSA_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())

	src := NewTransformerEncoderSA(8, 2, 2, backend)
	dst := NewTransformerEncoderSA(8, 2, 2, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	x := tensor.Randn[float32](tensor.Shape{1, 8, 2, 2}, backend)
	ySrc := src.Forward(x)
	yDst := dst.Forward(x)

	srcData := ySrc.Data()
	dstData := yDst.Data()
	for i := range srcData {
		if math.Abs(float64(srcData[i]-dstData[i])) > 1e-6 {
			t.Fatalf("Outputs diverge at %d: %v vs %v", i, srcData[i], dstData[i])
		}
	}
}

// TestTransformerEncoderSA_Parameters verifies the block exposes the
// parameters of all three sublayers.
func TestTransformerEncoderSA_Parameters(t *testing.T) {
	backend := cpu.New()
	block := NewTransformerEncoderSA(8, 2, 2, backend)

	// ln (2) + mha (4 weights + 4 biases) + ff_self (2 norms x2 + 2 linears x2)
	params := block.Parameters()
	if len(params) == 0 {
		t.Fatal("Parameters() returned no parameters")
	}

	names := make(map[string]bool)
	for name := range block.StateDict() {
		names[name] = true
	}
	for _, prefix := range []string{"ln.", "mha.", "ff_self."} {
		found := false
		for name := range names {
			if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("StateDict missing entries under %q", prefix)
		}
	}
}
