// Package nn implements neural network modules for the Drift ML Framework.
//
// This package provides building blocks for constructing denoising networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Conv3D / ConvTranspose3D / MaxPool3D / BatchNorm3D: volumetric layers
//   - Linear, LayerNorm, MultiHeadAttention: transformer-style layers
//   - Loss functions: SmoothL1, MSE, NCC
//   - Sequential: Container for stacking layers
//   - UNet3D: encoder-decoder denoising network for video clips
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict / LoadStateDict: Serialize and restore persistent state
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
	// buffers such as batch-norm running statistics. Stateless modules
	// return nil.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores persistent state from a state dictionary.
	// Entries whose names the module does not recognize are ignored, so
	// a superset dictionary can be loaded safely.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// StateModule is the serialization surface of a module: anything that
// can export and restore a named tensor state dictionary. All Modules
// satisfy it; networks whose Forward takes extra arguments, such as
// UNet3D with its timesteps, satisfy it without being Modules.
type StateModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// ModeModule is implemented by modules whose behavior differs between
// training and evaluation, such as dropout and batch normalization.
// Containers propagate the mode to every child that implements it.
type ModeModule interface {
	SetTraining(training bool)
}

// SetTrainingMode walks a list of modules and flips the train/eval mode
// on every one that distinguishes the two.
func SetTrainingMode[B tensor.Backend](training bool, modules ...Module[B]) {
	for _, m := range modules {
		if mm, ok := any(m).(ModeModule); ok {
			mm.SetTraining(training)
		}
	}
}

// prefixStateDict copies src entries into dst with the given name prefix.
func prefixStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+name] = raw
	}
}

// subStateDict extracts the entries under prefix, with the prefix removed.
func subStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			sub[name[len(prefix):]] = raw
		}
	}
	return sub
}
