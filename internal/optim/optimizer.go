// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - CosineAnnealingLR: cosine learning rate schedule
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Optimizers read gradients from the parameters themselves, which is
// what makes gradient accumulation work: the trainer accumulates
// several micro-batch gradients onto each parameter before one Step.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-5}, backend)
//	scheduler := optim.NewCosineAnnealingLR(optimizer, 300, 0)
//
//	for epoch := 0; epoch < epochs; epoch++ {
//	    for batch := range loader {
//	        // forward, backward, accumulate grads onto parameters
//	        optimizer.Step()
//	        optimizer.ZeroGrad()
//	    }
//	    scheduler.Step()
//	}
package optim

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters in-place based on the gradients
// accumulated on them (Parameter.Grad), then the caller clears the
// gradients with ZeroGrad before the next accumulation window.
type Optimizer interface {
	// Step applies one gradient update to all parameters. Parameters
	// with no accumulated gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate. Schedulers call this.
	SetLR(lr float32)

	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// Type returns the optimizer type name ("Adam", "SGD", ...).
	Type() string
}

// Scheduler adjusts an optimizer's learning rate over the course of
// training. Step is called once per epoch.
type Scheduler interface {
	Step()
	StateDict() map[string]float64
	LoadStateDict(state map[string]float64)
}
