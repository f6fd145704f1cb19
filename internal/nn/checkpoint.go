package nn

import (
	"fmt"
	"strings"
	"time"

	"github.com/drift-ml/drift/internal/serialization"
	"github.com/drift-ml/drift/internal/tensor"
)

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32

	// Type returns the optimizer type name ("Adam", "SGD", ...).
	Type() string
}

// FloatState is implemented by training collaborators whose state is a
// flat float dictionary: LR schedulers and gradient scalers. Keeping
// the state flat lets checkpoints store it in the file header instead
// of the tensor section.
type FloatState interface {
	StateDict() map[string]float64
	LoadStateDict(state map[string]float64)
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model parameters and buffers (via StateDict)
//   - Optimizer state (Adam moments, momentum buffers)
//   - Scheduler and gradient scaler state
//   - Training metadata (epoch, step, loss)
//
// Checkpoints enable training to be resumed from a specific point.
// Optimizer, Scheduler and Scaler are optional; a nil collaborator is
// simply left out of the file, so a model-only snapshot is still a
// valid checkpoint.
//
// Example:
//
//	checkpoint := &nn.Checkpoint{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	}
//	err := checkpoint.Save("checkpoint_epoch_10.drift")
type Checkpoint struct {
	Model     StateModule    // The neural network model
	Optimizer OptimizerState // The optimizer with its state (optional)
	Scheduler FloatState     // LR scheduler state (optional)
	Scaler    FloatState     // Gradient scaler state (optional)
	Epoch     int            // Training epoch number
	Step      int64          // Training step number
	Loss      float64        // Loss value at this checkpoint
	Metadata  map[string]any // Additional training metadata
	CreatedAt time.Time      // When the checkpoint was created
}

// optimizerPrefix namespaces optimizer tensors next to model tensors
// in the combined state dict.
const optimizerPrefix = "optimizer."

// Save saves the checkpoint to a .drift file.
//
// Model and optimizer tensors share one tensor section; optimizer
// entries carry an "optimizer." prefix. Scheduler and scaler state go
// into the JSON header as flat float dictionaries.
func (c *Checkpoint) Save(path string) (err error) {
	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combined[name] = raw
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			combined[optimizerPrefix+name] = raw
		}
	}

	meta := &serialization.CheckpointMeta{
		IsCheckpoint: true,
		Epoch:        c.Epoch,
		Step:         c.Step,
		Loss:         c.Loss,
		TrainingMeta: c.Metadata,
	}
	if c.Optimizer != nil {
		meta.OptimizerType = c.Optimizer.Type()
		meta.OptimizerConfig = map[string]any{"lr": c.Optimizer.GetLR()}
	}
	if c.Scheduler != nil {
		meta.SchedulerState = c.Scheduler.StateDict()
	}
	if c.Scaler != nil {
		meta.ScalerState = c.Scaler.StateDict()
	}

	writer, err := serialization.NewDriftWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := serialization.Header{
		ModelType:      "Checkpoint",
		CheckpointMeta: meta,
	}
	if err := writer.WriteStateDictWithHeader(combined, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint loads a checkpoint from a .drift file.
//
// The model must be pre-constructed with the same architecture as when
// the checkpoint was saved. Optimizer, scheduler and scaler are
// optional: pass nil for a collaborator and its saved state (if any)
// is skipped.
//
// Example:
//
//	model := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//	optimizer := optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig(), backend)
//
//	checkpoint, err := nn.LoadCheckpoint("checkpoint.drift", backend, model, optimizer, scheduler, scaler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Resume training from checkpoint.Epoch + 1
func LoadCheckpoint(
	path string,
	backend tensor.Backend,
	model StateModule,
	optimizer OptimizerState,
	scheduler FloatState,
	scaler FloatState,
) (cp *Checkpoint, err error) {
	reader, err := serialization.NewDriftReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := reader.Header()
	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		return nil, fmt.Errorf("file is not a checkpoint")
	}
	meta := header.CheckpointMeta

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to read state dict: %w", err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if strings.HasPrefix(name, optimizerPrefix) {
			optimizerState[strings.TrimPrefix(name, optimizerPrefix)] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if optimizer != nil && len(optimizerState) > 0 {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, fmt.Errorf("failed to load optimizer state: %w", err)
		}
	}
	if scheduler != nil && len(meta.SchedulerState) > 0 {
		scheduler.LoadStateDict(meta.SchedulerState)
	}
	if scaler != nil && len(meta.ScalerState) > 0 {
		scaler.LoadStateDict(meta.ScalerState)
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Scheduler: scheduler,
		Scaler:    scaler,
		Epoch:     meta.Epoch,
		Step:      meta.Step,
		Loss:      meta.Loss,
		Metadata:  meta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}

// SaveCheckpoint is a convenience function to save a model-and-optimizer
// checkpoint without filling in a Checkpoint struct.
func SaveCheckpoint(path string, model StateModule, optimizer OptimizerState, epoch int) error {
	checkpoint := &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
		CreatedAt: time.Now().UTC(),
	}
	return checkpoint.Save(path)
}

// SaveModel writes just the model weights as a .drift file, without any
// checkpoint metadata. Used for final weights and EMA snapshots where
// the training state does not matter.
func SaveModel(path string, model StateModule, modelType string, metadata map[string]string) (err error) {
	writer, err := serialization.NewDriftWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := writer.WriteStateDict(model.StateDict(), modelType, metadata); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// LoadModel restores model weights from a .drift file written by
// SaveModel or from the model section of a checkpoint.
func LoadModel(path string, backend tensor.Backend, model StateModule) (err error) {
	reader, err := serialization.NewDriftReader(path)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return fmt.Errorf("failed to read state dict: %w", err)
	}

	// A checkpoint file loads fine as a plain model: the optimizer
	// entries are namespaced and LoadStateDict ignores unknown names.
	modelState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if !strings.HasPrefix(name, optimizerPrefix) {
			modelState[name] = raw
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return fmt.Errorf("failed to load model state: %w", err)
	}
	return nil
}
