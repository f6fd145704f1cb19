// Package ops defines the differentiable operations recorded on the
// gradient tape.
//
// Each operation captures its inputs and output during the forward pass
// and turns an output gradient into input gradients during the backward
// pass. Heavy backward passes (convolution, pooling) delegate to the
// backend's gradient kernels; cheap ones compose forward backend calls.
package ops

import "github.com/drift-ml/drift/internal/tensor"

// Operation is one node of the recorded computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice lines up with Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the tensors this operation consumed. Only tensors
	// listed here receive gradients.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor this operation produced.
	Output() *tensor.RawTensor
}
