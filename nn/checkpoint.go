// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/tensor"
)

// Checkpoint represents a complete training state snapshot: model
// weights plus optional optimizer, scheduler and scaler state, with
// epoch/step/loss metadata.
type Checkpoint = nn.Checkpoint

// StateModule is the serialization surface of a module: anything that
// can export and restore a named tensor state dictionary.
type StateModule = nn.StateModule

// OptimizerState is the checkpoint surface of an optimizer.
type OptimizerState = nn.OptimizerState

// FloatState is the checkpoint surface of training collaborators whose
// state is a flat float dictionary: LR schedulers and gradient scalers.
type FloatState = nn.FloatState

// LoadCheckpoint loads a checkpoint from a .drift file into a
// pre-constructed model. Optimizer, scheduler and scaler are optional:
// pass nil and their saved state (if any) is skipped.
//
// Example:
//
//	model := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//	checkpoint, err := nn.LoadCheckpoint("ckpt.drift", backend, model, nil, nil, nil)
func LoadCheckpoint(
	path string,
	backend tensor.Backend,
	model StateModule,
	optimizer OptimizerState,
	scheduler FloatState,
	scaler FloatState,
) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, backend, model, optimizer, scheduler, scaler)
}

// SaveCheckpoint saves a model-and-optimizer checkpoint.
func SaveCheckpoint(path string, model StateModule, optimizer OptimizerState, epoch int) error {
	return nn.SaveCheckpoint(path, model, optimizer, epoch)
}

// SaveModel writes just the model weights as a .drift file, without any
// checkpoint metadata.
func SaveModel(path string, model StateModule, modelType string, metadata map[string]string) error {
	return nn.SaveModel(path, model, modelType, metadata)
}

// LoadModel restores model weights from a .drift file written by
// SaveModel or from the model section of a checkpoint.
func LoadModel(path string, backend tensor.Backend, model StateModule) error {
	return nn.LoadModel(path, backend, model)
}
