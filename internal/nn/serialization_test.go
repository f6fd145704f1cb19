package nn

import (
	"os"
	"testing"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/serialization"
	"github.com/drift-ml/drift/internal/tensor"
)

// TestDriftFormatRoundTrip tests save → load round-trip for a simple Linear module.
func TestDriftFormatRoundTrip(t *testing.T) {
	backend := cpu.New()

	// Create a simple Linear layer
	model := NewLinear(64, 16, backend)

	// Get initial predictions
	input, err := tensor.FromSlice(make([]float32, 64), tensor.Shape{1, 64}, backend)
	if err != nil {
		t.Fatal(err)
	}
	pred1 := model.Forward(input)

	// Save model
	tmpFile := t.TempDir() + "/model.drift"
	if err := SaveModel(tmpFile, model, "Linear", nil); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	// Create new model with same architecture
	model2 := NewLinear(64, 16, backend)

	// Load into new model
	if err := LoadModel(tmpFile, backend, model2); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}

	// Get predictions from loaded model
	pred2 := model2.Forward(input)

	// Predictions should be identical
	pred1Data := pred1.Data()
	pred2Data := pred2.Data()
	if len(pred1Data) != len(pred2Data) {
		t.Fatalf("Prediction length mismatch: %d != %d", len(pred1Data), len(pred2Data))
	}

	for i := range pred1Data {
		if pred1Data[i] != pred2Data[i] {
			t.Errorf("Prediction mismatch at index %d: %.6f != %.6f", i, pred1Data[i], pred2Data[i])
		}
	}
}

// TestDriftFormatSequential tests save → load for a Sequential model.
func TestDriftFormatSequential(t *testing.T) {
	backend := cpu.New()

	// Create a sequential model
	model := NewSequential[*cpu.CPUBackend](
		NewLinear(64, 16, backend),
		NewReLU[*cpu.CPUBackend](),
		NewLinear(16, 4, backend),
	)

	// Get initial predictions
	input, err := tensor.FromSlice(make([]float32, 64), tensor.Shape{1, 64}, backend)
	if err != nil {
		t.Fatal(err)
	}
	pred1 := model.Forward(input)

	// Save model
	tmpFile := t.TempDir() + "/sequential.drift"
	if err := SaveModel(tmpFile, model, "Sequential", nil); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	// Create new model with same architecture
	model2 := NewSequential[*cpu.CPUBackend](
		NewLinear(64, 16, backend),
		NewReLU[*cpu.CPUBackend](),
		NewLinear(16, 4, backend),
	)

	// Load into new model
	if err := LoadModel(tmpFile, backend, model2); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}

	// Get predictions from loaded model
	pred2 := model2.Forward(input)

	// Predictions should be identical
	pred1Data := pred1.Data()
	pred2Data := pred2.Data()
	if len(pred1Data) != len(pred2Data) {
		t.Fatalf("Prediction length mismatch: %d != %d", len(pred1Data), len(pred2Data))
	}

	for i := range pred1Data {
		if pred1Data[i] != pred2Data[i] {
			t.Errorf("Prediction mismatch at index %d: %.6f != %.6f", i, pred1Data[i], pred2Data[i])
		}
	}
}

// TestDriftFormatWithMetadata tests metadata preservation.
func TestDriftFormatWithMetadata(t *testing.T) {
	backend := cpu.New()

	// Create a simple Linear layer
	model := NewLinear(10, 5, backend)

	// Save with metadata
	tmpFile := t.TempDir() + "/model_with_metadata.drift"
	metadata := map[string]string{
		"version":     "1.0.0",
		"author":      "test",
		"description": "test model",
	}
	if err := SaveModel(tmpFile, model, "Linear", metadata); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	// Read and verify metadata
	reader, err := serialization.NewDriftReader(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer reader.Close()

	loadedMetadata := reader.Metadata()
	for key, expectedValue := range metadata {
		if actualValue, ok := loadedMetadata[key]; !ok {
			t.Errorf("Metadata key %s missing", key)
		} else if actualValue != expectedValue {
			t.Errorf("Metadata %s mismatch: expected %s, got %s", key, expectedValue, actualValue)
		}
	}
}

// TestDriftFormatInvalidFile tests error handling for invalid files.
func TestDriftFormatInvalidFile(t *testing.T) {
	tmpFile := t.TempDir() + "/invalid.drift"

	// Write invalid magic bytes
	if err := os.WriteFile(tmpFile, []byte("XXXX"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Try to read - should fail
	if _, err := serialization.NewDriftReader(tmpFile); err == nil {
		t.Error("Expected error for invalid magic bytes, got nil")
	}
}

// TestDriftFormatMissingParameter tests error handling for missing parameters.
func TestDriftFormatMissingParameter(t *testing.T) {
	backend := cpu.New()

	// Create a model and save it
	model := NewLinear(10, 5, backend)
	tmpFile := t.TempDir() + "/model.drift"
	if err := SaveModel(tmpFile, model, "Linear", nil); err != nil {
		t.Fatal(err)
	}

	// Read state dict
	reader, err := serialization.NewDriftReader(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		t.Fatal(err)
	}
	reader.Close()

	// Remove weight parameter
	delete(stateDict, "weight")

	// Try to load - should fail
	model2 := NewLinear(10, 5, backend)
	if err := model2.LoadStateDict(stateDict); err == nil {
		t.Error("Expected error for missing parameter, got nil")
	}
}

// TestDriftFormatShapeMismatch tests error handling for shape mismatches.
func TestDriftFormatShapeMismatch(t *testing.T) {
	backend := cpu.New()

	// Create and save a 10→5 model
	model := NewLinear(10, 5, backend)
	tmpFile := t.TempDir() + "/model.drift"
	if err := SaveModel(tmpFile, model, "Linear", nil); err != nil {
		t.Fatal(err)
	}

	// Try to load into a 20→5 model - should fail
	model2 := NewLinear(20, 5, backend)
	if err := LoadModel(tmpFile, backend, model2); err == nil {
		t.Error("Expected error for shape mismatch, got nil")
	}
}

// TestDriftWriterCloseIdempotent tests that closing writer multiple times is safe.
func TestDriftWriterCloseIdempotent(t *testing.T) {
	tmpFile := t.TempDir() + "/close_test.drift"
	writer, err := serialization.NewDriftWriter(tmpFile)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not panic
	if err := writer.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

// TestDriftReaderCloseIdempotent tests that closing reader multiple times is safe.
func TestDriftReaderCloseIdempotent(t *testing.T) {
	backend := cpu.New()
	model := NewLinear(10, 5, backend)
	tmpFile := t.TempDir() + "/close_test.drift"
	if err := SaveModel(tmpFile, model, "Linear", nil); err != nil {
		t.Fatal(err)
	}

	reader, err := serialization.NewDriftReader(tmpFile)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not panic
	if err := reader.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

// TestDriftFormatTensorNames tests reading tensor names from file.
func TestDriftFormatTensorNames(t *testing.T) {
	backend := cpu.New()

	// Create sequential model with known structure
	model := NewSequential[*cpu.CPUBackend](
		NewLinear(10, 5, backend),  // 0.weight, 0.bias
		NewReLU[*cpu.CPUBackend](), // no parameters
		NewLinear(5, 3, backend),   // 2.weight, 2.bias
	)

	tmpFile := t.TempDir() + "/tensor_names.drift"
	if err := SaveModel(tmpFile, model, "Sequential", nil); err != nil {
		t.Fatal(err)
	}

	// Read and verify tensor names
	reader, err := serialization.NewDriftReader(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	names := reader.TensorNames()
	expectedNames := []string{"0.weight", "0.bias", "2.weight", "2.bias"}

	if len(names) != len(expectedNames) {
		t.Fatalf("Expected %d tensor names, got %d", len(expectedNames), len(names))
	}

	// Check all expected names are present
	nameSet := make(map[string]bool)
	for _, name := range names {
		nameSet[name] = true
	}

	for _, expected := range expectedNames {
		if !nameSet[expected] {
			t.Errorf("Expected tensor name %s not found", expected)
		}
	}
}

// TestDriftFormatHeaderInfo tests reading header information.
func TestDriftFormatHeaderInfo(t *testing.T) {
	backend := cpu.New()
	model := NewLinear(10, 5, backend)

	tmpFile := t.TempDir() + "/header_test.drift"
	metadata := map[string]string{"version": "1.0"}
	if err := SaveModel(tmpFile, model, "Linear", metadata); err != nil {
		t.Fatal(err)
	}

	reader, err := serialization.NewDriftReader(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	header := reader.Header()

	// Check format version
	if header.FormatVersion != serialization.FormatVersion {
		t.Errorf("Format version mismatch: expected %d, got %d", serialization.FormatVersion, header.FormatVersion)
	}

	// Check model type
	if header.ModelType != "Linear" {
		t.Errorf("Model type mismatch: expected Linear, got %s", header.ModelType)
	}

	// Check Drift version
	if header.DriftVersion == "" {
		t.Error("Drift version is empty")
	}

	// Check created_at is set
	if header.CreatedAt.IsZero() {
		t.Error("CreatedAt timestamp is zero")
	}
}
