package nn

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// Down3D is one contracting stage of the volumetric U-Net: a 2x2x2 max
// pool that halves frames, height and width, followed by a DoubleConv3D
// that remaps channels.
//
// Input shape:  [batch, inChannels, frames, height, width]
// Output shape: [batch, outChannels, frames/2, height/2, width/2]
type Down3D[B tensor.Backend] struct {
	layers *Sequential[B]
}

// NewDown3D creates a downsampling stage from inChannels to outChannels.
func NewDown3D[B tensor.Backend](inChannels, outChannels int, backend B) *Down3D[B] {
	return &Down3D[B]{
		layers: NewSequential[B](
			NewMaxPool3D[B](2, 2, backend),
			NewDoubleConv3D(inChannels, outChannels, backend),
		),
	}
}

// Forward pools then convolves.
func (d *Down3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return d.layers.Forward(input)
}

// SetTraining propagates the mode to the convolution block.
func (d *Down3D[B]) SetTraining(training bool) {
	d.layers.SetTraining(training)
}

// Parameters returns the learnable parameters of the convolution block.
func (d *Down3D[B]) Parameters() []*Parameter[B] {
	return d.layers.Parameters()
}

// StateDict returns the stage state keyed by layer index.
func (d *Down3D[B]) StateDict() map[string]*tensor.RawTensor {
	return d.layers.StateDict()
}

// LoadStateDict restores the stage state.
func (d *Down3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return d.layers.LoadStateDict(stateDict)
}
