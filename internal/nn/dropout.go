package nn

import (
	"fmt"
	"math/rand"

	"github.com/drift-ml/drift/internal/tensor"
)

// Dropout randomly zeroes elements of the input during training.
//
// Each element is zeroed independently with probability p. Surviving
// elements are scaled by 1/(1-p) so the expected activation stays the
// same (inverted dropout), which means evaluation needs no rescaling.
//
// In evaluation mode Dropout is the identity.
//
// Example:
//
//	drop := nn.NewDropout[Backend](0.1)
//	drop.SetTraining(true)
//	output := drop.Forward(input)
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
}

// NewDropout creates a new Dropout module with drop probability p.
//
// Panics if p is outside [0, 1).
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{p: p, training: true}
}

// Forward applies dropout to the input.
//
// During training a fresh Bernoulli mask is drawn on every call and the
// input is multiplied by it, so gradients flow only through surviving
// elements. In evaluation mode the input passes through unchanged.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	backend := input.Backend()
	maskRaw, err := tensor.NewRaw(input.Shape(), tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	keepScale := 1.0 / (1.0 - d.p)
	maskData := maskRaw.AsFloat32()
	for i := range maskData {
		//nolint:gosec // Using math/rand for dropout masks (not security-critical)
		if rand.Float32() >= d.p {
			maskData[i] = keepScale
		}
	}

	mask := tensor.New[float32, B](maskRaw, backend)
	return input.Mul(mask)
}

// SetTraining switches between training (masking) and evaluation
// (identity) behavior.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether the module is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float32 {
	return d.p
}

// Parameters returns an empty slice (Dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns nil (the mask is drawn fresh each call).
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return nil
}

// LoadStateDict is a no-op for Dropout.
func (d *Dropout[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
