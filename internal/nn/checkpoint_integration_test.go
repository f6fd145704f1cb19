package nn_test

import (
	"math"
	"os"
	"testing"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/optim"
	"github.com/drift-ml/drift/internal/tensor"
)

type CPUBackend = *cpu.CPUBackend

// fakeScaler stands in for a gradient scaler in checkpoint tests.
type fakeScaler struct {
	scale       float64
	growthCount float64
}

func (f *fakeScaler) StateDict() map[string]float64 {
	return map[string]float64{"scale": f.scale, "growth_count": f.growthCount}
}

func (f *fakeScaler) LoadStateDict(state map[string]float64) {
	f.scale = state["scale"]
	f.growthCount = state["growth_count"]
}

// applyUnitGrads puts a gradient of ones on every parameter so the
// optimizer has something to step on.
func applyUnitGrads(backend CPUBackend, params []*nn.Parameter[CPUBackend]) {
	for _, p := range params {
		p.SetGrad(tensor.Ones[float32](p.Tensor().Shape(), backend))
	}
}

func paramsEqual(t *testing.T, a, b []*nn.Parameter[CPUBackend]) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("Parameter count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		aData := a[i].Tensor().Raw().AsFloat32()
		bData := b[i].Tensor().Raw().AsFloat32()
		if len(aData) != len(bData) {
			t.Fatalf("Parameter %d size mismatch: %d vs %d", i, len(aData), len(bData))
		}
		for j := range aData {
			if aData[j] != bData[j] {
				t.Errorf("Parameter %d differs at %d: %f vs %f", i, j, aData[j], bData[j])
				return
			}
		}
	}
}

func TestCheckpointSaveLoad_SGD(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_sgd.drift"
	defer os.Remove(tempFile)

	// Create model and optimizer, and take a step so the momentum
	// buffers exist
	model := nn.NewLinear[CPUBackend](10, 5, backend)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
		LR:       0.01,
		Momentum: 0.9,
	}, backend)

	applyUnitGrads(backend, model.Parameters())
	optimizer.Step()

	checkpoint := &nn.Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     10,
		Step:      5000,
		Loss:      0.123,
		Metadata:  map[string]any{"batch_size": 32.0},
	}

	if err := checkpoint.Save(tempFile); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// Fresh model and optimizer for loading
	newModel := nn.NewLinear[CPUBackend](10, 5, backend)
	newOptimizer := optim.NewSGD(newModel.Parameters(), optim.SGDConfig{
		LR:       0.01,
		Momentum: 0.9,
	}, backend)

	loaded, err := nn.LoadCheckpoint(tempFile, backend, newModel, newOptimizer, nil, nil)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if loaded.Epoch != 10 {
		t.Errorf("Expected epoch 10, got %d", loaded.Epoch)
	}
	if loaded.Step != 5000 {
		t.Errorf("Expected step 5000, got %d", loaded.Step)
	}
	if loaded.Loss != 0.123 {
		t.Errorf("Expected loss 0.123, got %f", loaded.Loss)
	}
	// Metadata round trips through JSON, so numbers come back as float64
	if bs, ok := loaded.Metadata["batch_size"].(float64); !ok || bs != 32.0 {
		t.Errorf("Expected batch_size 32, got %v", loaded.Metadata["batch_size"])
	}

	paramsEqual(t, model.Parameters(), newModel.Parameters())

	// Momentum buffers must survive the round trip
	oldState := optimizer.StateDict()
	newState := newOptimizer.StateDict()
	for name, raw := range oldState {
		restored, exists := newState[name]
		if !exists {
			t.Fatalf("Optimizer state %q missing after load", name)
		}
		oldData := raw.AsFloat32()
		newData := restored.AsFloat32()
		for i := range oldData {
			if oldData[i] != newData[i] {
				t.Errorf("Optimizer state %q differs at %d: %f vs %f",
					name, i, oldData[i], newData[i])
				break
			}
		}
	}
}

func TestCheckpointSaveLoad_Adam(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_adam.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](8, 4, backend)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
		LR:    0.001,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}, backend)

	// Two steps so both the timestep and the moment estimates are
	// non-trivial
	for i := 0; i < 2; i++ {
		applyUnitGrads(backend, model.Parameters())
		optimizer.Step()
	}

	if err := nn.SaveCheckpoint(tempFile, model, optimizer, 42); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](8, 4, backend)
	newOptimizer := optim.NewAdam(newModel.Parameters(), optim.AdamConfig{
		LR:    0.001,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}, backend)

	loaded, err := nn.LoadCheckpoint(tempFile, backend, newModel, newOptimizer, nil, nil)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if loaded.Epoch != 42 {
		t.Errorf("Expected epoch 42, got %d", loaded.Epoch)
	}
	if newOptimizer.GetTimestep() != 2 {
		t.Errorf("Expected restored timestep 2, got %d", newOptimizer.GetTimestep())
	}

	paramsEqual(t, model.Parameters(), newModel.Parameters())

	// Both optimizers take an identical third step after a positive
	// gradient. If the moments were restored the trajectories match.
	applyUnitGrads(backend, model.Parameters())
	optimizer.Step()
	applyUnitGrads(backend, newModel.Parameters())
	newOptimizer.Step()

	paramsEqual(t, model.Parameters(), newModel.Parameters())
}

func TestCheckpointSchedulerAndScaler(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_full.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](6, 3, backend)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01}, backend)
	scheduler := optim.NewCosineAnnealingLR(optimizer, 10, 0)
	scaler := &fakeScaler{scale: 65536, growthCount: 1500}

	// Advance the schedule to epoch 5: lr = 0.01 * (1 + cos(pi/2)) / 2 = 0.005
	for i := 0; i < 5; i++ {
		scheduler.Step()
	}

	checkpoint := &nn.Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Scheduler: scheduler,
		Scaler:    scaler,
		Epoch:     5,
		Step:      2500,
		Loss:      0.05,
	}
	if err := checkpoint.Save(tempFile); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](6, 3, backend)
	newOptimizer := optim.NewAdam(newModel.Parameters(), optim.AdamConfig{LR: 0.01}, backend)
	newScheduler := optim.NewCosineAnnealingLR(newOptimizer, 10, 0)
	newScaler := &fakeScaler{scale: 1, growthCount: 0}

	if _, err := nn.LoadCheckpoint(tempFile, backend, newModel, newOptimizer, newScheduler, newScaler); err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if newScheduler.LastEpoch() != 5 {
		t.Errorf("Expected restored epoch 5, got %d", newScheduler.LastEpoch())
	}
	// Restoring the schedule re-applies the annealed learning rate
	if math.Abs(float64(newOptimizer.GetLR())-0.005) > 1e-9 {
		t.Errorf("Expected restored LR 0.005, got %f", newOptimizer.GetLR())
	}
	if newScaler.scale != 65536 {
		t.Errorf("Expected restored scale 65536, got %f", newScaler.scale)
	}
	if newScaler.growthCount != 1500 {
		t.Errorf("Expected restored growth count 1500, got %f", newScaler.growthCount)
	}
}

func TestCheckpointModelOnly(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_model_only.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](4, 2, backend)
	checkpoint := &nn.Checkpoint{
		Model: model,
		Epoch: 3,
	}
	if err := checkpoint.Save(tempFile); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](4, 2, backend)
	loaded, err := nn.LoadCheckpoint(tempFile, backend, newModel, nil, nil, nil)
	if err != nil {
		t.Fatalf("Failed to load model-only checkpoint: %v", err)
	}

	if loaded.Epoch != 3 {
		t.Errorf("Expected epoch 3, got %d", loaded.Epoch)
	}
	paramsEqual(t, model.Parameters(), newModel.Parameters())
}

func TestSaveModelLoadModel(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_model.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](10, 5, backend)
	if err := nn.SaveModel(tempFile, model, "Linear", map[string]string{"source": "test"}); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](10, 5, backend)
	if err := nn.LoadModel(tempFile, backend, newModel); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}

	paramsEqual(t, model.Parameters(), newModel.Parameters())
}

func TestLoadModelFromCheckpoint(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_as_model.drift"
	defer os.Remove(tempFile)

	// A checkpoint with optimizer state should still load as a plain
	// model: the optimizer entries are namespaced away
	model := nn.NewLinear[CPUBackend](5, 5, backend)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
	applyUnitGrads(backend, model.Parameters())
	optimizer.Step()

	if err := nn.SaveCheckpoint(tempFile, model, optimizer, 1); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](5, 5, backend)
	if err := nn.LoadModel(tempFile, backend, newModel); err != nil {
		t.Fatalf("Failed to load model from checkpoint: %v", err)
	}

	paramsEqual(t, model.Parameters(), newModel.Parameters())
}

func TestLoadCheckpointRejectsPlainModel(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_not_a_checkpoint.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](4, 4, backend)
	if err := nn.SaveModel(tempFile, model, "Linear", nil); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	newModel := nn.NewLinear[CPUBackend](4, 4, backend)
	if _, err := nn.LoadCheckpoint(tempFile, backend, newModel, nil, nil, nil); err == nil {
		t.Error("Expected error loading a plain model file as a checkpoint")
	}
}

func TestLoadCheckpointArchitectureMismatch(t *testing.T) {
	backend := cpu.New()
	tempFile := "test_checkpoint_mismatch.drift"
	defer os.Remove(tempFile)

	model := nn.NewLinear[CPUBackend](10, 5, backend)
	if err := nn.SaveCheckpoint(tempFile, model, nil, 0); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// Different architecture: shape validation must reject the weights
	wrongModel := nn.NewLinear[CPUBackend](5, 5, backend)
	if _, err := nn.LoadCheckpoint(tempFile, backend, wrongModel, nil, nil, nil); err == nil {
		t.Error("Expected error loading checkpoint into mismatched architecture")
	}
}
