package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Up3D is one expanding stage of the volumetric U-Net. A 2x2x2
// transposed convolution doubles frames, height and width while halving
// channels, the result is zero-padded to the skip connection's exact
// extents, and the two are concatenated along channels before a
// DoubleConv3D remaps them.
//
// Forward takes two inputs, the deeper feature map and the skip
// connection from the matching encoder stage, so Up3D does not satisfy
// the single-input Module interface.
type Up3D[B tensor.Backend] struct {
	up   *ConvTranspose3D[B]
	conv *DoubleConv3D[B]

	backend B
}

// NewUp3D creates an expanding stage. inChannels counts the channels
// after concatenation: the transposed convolution produces inChannels/2
// and the skip connection supplies the rest.
func NewUp3D[B tensor.Backend](inChannels, outChannels int, backend B) *Up3D[B] {
	if inChannels%2 != 0 {
		panic(fmt.Sprintf("up3d: inChannels must be even, got %d", inChannels))
	}
	return &Up3D[B]{
		up:      NewConvTranspose3D(inChannels, inChannels/2, 2, 2, true, backend),
		conv:    NewDoubleConv3D(inChannels, outChannels, backend),
		backend: backend,
	}
}

// Forward upsamples x1, aligns it to x2 and convolves the concatenation.
//
// x1: deeper features [batch, inChannels, f, h, w]
// x2: skip connection [batch, inChannels/2, ~2f, ~2h, ~2w]
// Output: [batch, outChannels, dims of x2]
//
// When x2's extents are odd the upsampled volume comes up one voxel
// short on that axis. Zero padding splits the difference, floor before
// and ceil after, so the concatenation always lines up.
func (u *Up3D[B]) Forward(x1, x2 *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	upsampled := u.up.Forward(x1)

	upShape := upsampled.Shape()
	skipShape := x2.Shape()
	diffF := skipShape[2] - upShape[2]
	diffH := skipShape[3] - upShape[3]
	diffW := skipShape[4] - upShape[4]
	if diffF < 0 || diffH < 0 || diffW < 0 {
		panic(fmt.Sprintf("up3d: upsampled shape %v exceeds skip shape %v", upShape, skipShape))
	}

	if diffF > 0 || diffH > 0 || diffW > 0 {
		pads := [6]int{
			diffF / 2, diffF - diffF/2,
			diffH / 2, diffH - diffH/2,
			diffW / 2, diffW - diffW/2,
		}
		upsampled = tensor.New[float32, B](u.backend.Pad3D(upsampled.Raw(), pads), u.backend)
	}

	merged := tensor.Cat([]*tensor.Tensor[float32, B]{x2, upsampled}, 1)
	return u.conv.Forward(merged)
}

// SetTraining propagates the mode to the convolution block.
func (u *Up3D[B]) SetTraining(training bool) {
	u.conv.SetTraining(training)
}

// Parameters returns the parameters of both the transposed convolution
// and the convolution block.
func (u *Up3D[B]) Parameters() []*Parameter[B] {
	params := u.up.Parameters()
	return append(params, u.conv.Parameters()...)
}

// StateDict returns the stage state under "up." and "conv." prefixes.
func (u *Up3D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	prefixStateDict(stateDict, "up.", u.up.StateDict())
	prefixStateDict(stateDict, "conv.", u.conv.StateDict())
	return stateDict
}

// LoadStateDict restores the stage state.
func (u *Up3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := u.up.LoadStateDict(subStateDict(stateDict, "up.")); err != nil {
		return fmt.Errorf("up3d up: %w", err)
	}
	if err := u.conv.LoadStateDict(subStateDict(stateDict, "conv.")); err != nil {
		return fmt.Errorf("up3d conv: %w", err)
	}
	return nil
}
