// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/drift-ml/drift/internal/serialization"
	"github.com/drift-ml/drift/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict: Export persistent state for serialization
//   - LoadStateDict: Import persistent state from serialization
//
// Modules can be composed to build complex architectures:
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv3D(3, 64, 3, 1, 1, true, backend),
//	    nn.NewBatchNorm3D(64, backend),
//	    nn.NewReLU[Backend](),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Conv3D expects [batch, channels, frames, height, width].
	//
	// Returns the output tensor with shape determined by the module type.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter[B]

	// StateDict returns the module's persistent state as a flat map of
	// names to raw tensors. Besides trainable parameters this includes
	// buffers such as batch-norm running statistics.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores persistent state from a state dictionary.
	// Entries whose names the module does not recognize are ignored, so
	// a superset dictionary can be loaded safely.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Note: Internal implementations of Module automatically satisfy this interface
// because they have the same method signatures.

// Save saves a module to a .drift file.
//
// This is a convenience function that exports the module's state dictionary
// and writes it to a file using the Drift native format.
//
// Parameters:
//   - module: The module to save
//   - path: File path to write to
//   - modelType: Type name of the model (e.g., "Sequential", "UNet3D")
//   - metadata: Optional metadata (can be nil)
//
// Returns an error if saving fails.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewLinear(256, 10, backend)
//	err := nn.Save(model, "model.drift", "Linear", nil)
func Save[B tensor.Backend](module Module[B], path, modelType string, metadata map[string]string) error {
	stateDict := module.StateDict()

	writer, err := serialization.NewDriftWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close()
	}()

	return writer.WriteStateDict(stateDict, modelType, metadata)
}

// Load loads a module from a .drift file.
//
// This is a convenience function that reads a state dictionary from a file
// and loads it into the provided module.
//
// Parameters:
//   - path: File path to read from
//   - backend: Backend to use for tensors
//   - module: The module to load into (will be modified)
//
// Returns the header and an error if loading fails.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewLinear(256, 10, backend)
//	header, err := nn.Load("model.drift", backend, model)
func Load[B tensor.Backend](path string, backend B, module Module[B]) (serialization.Header, error) {
	reader, err := serialization.NewDriftReader(path)
	if err != nil {
		return serialization.Header{}, err
	}
	defer func() {
		_ = reader.Close()
	}()

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return serialization.Header{}, err
	}

	if err := module.LoadStateDict(stateDict); err != nil {
		return serialization.Header{}, err
	}

	return reader.Header(), nil
}
