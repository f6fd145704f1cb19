package nn

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// DoubleConv3D applies two 3x3x3 convolutions, each followed by batch
// normalization and ReLU. Padding 1 with stride 1 keeps the spatial and
// temporal extents unchanged, so the block only remaps channels.
//
// Input shape:  [batch, inChannels, frames, height, width]
// Output shape: [batch, outChannels, frames, height, width]
//
// This is the basic building block of the volumetric U-Net: the stem,
// both halves of every Down3D and Up3D stage, and the bottleneck are
// all DoubleConv3D blocks.
type DoubleConv3D[B tensor.Backend] struct {
	layers *Sequential[B]

	inChannels  int
	outChannels int
}

// NewDoubleConv3D creates a DoubleConv3D block mapping inChannels to
// outChannels. Both convolutions carry a bias.
func NewDoubleConv3D[B tensor.Backend](inChannels, outChannels int, backend B) *DoubleConv3D[B] {
	return &DoubleConv3D[B]{
		layers: NewSequential[B](
			NewConv3D(inChannels, outChannels, 3, 1, 1, true, backend),
			NewBatchNorm3D(outChannels, backend),
			NewReLU[B](),
			NewConv3D(outChannels, outChannels, 3, 1, 1, true, backend),
			NewBatchNorm3D(outChannels, backend),
			NewReLU[B](),
		),
		inChannels:  inChannels,
		outChannels: outChannels,
	}
}

// Forward runs the two convolution stages.
func (dc *DoubleConv3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return dc.layers.Forward(input)
}

// SetTraining propagates the mode to the batch-norm layers.
func (dc *DoubleConv3D[B]) SetTraining(training bool) {
	dc.layers.SetTraining(training)
}

// InChannels returns the input channel count.
func (dc *DoubleConv3D[B]) InChannels() int {
	return dc.inChannels
}

// OutChannels returns the output channel count.
func (dc *DoubleConv3D[B]) OutChannels() int {
	return dc.outChannels
}

// Parameters returns all learnable parameters of both stages.
func (dc *DoubleConv3D[B]) Parameters() []*Parameter[B] {
	return dc.layers.Parameters()
}

// StateDict returns the state of both stages keyed by layer index.
func (dc *DoubleConv3D[B]) StateDict() map[string]*tensor.RawTensor {
	return dc.layers.StateDict()
}

// LoadStateDict restores the state of both stages.
func (dc *DoubleConv3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return dc.layers.LoadStateDict(stateDict)
}
