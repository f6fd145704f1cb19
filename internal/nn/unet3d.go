package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// UNet3DConfig collects the construction parameters of the volumetric
// denoising network.
type UNet3DConfig struct {
	InChannels   int // input channels, 3 for RGB clips
	OutChannels  int // predicted-noise channels, matches InChannels
	TimeCapacity int // highest timestep the embedding table covers
	TimeDim      int // timestep embedding dimension
}

// DefaultUNet3DConfig returns the standard configuration: RGB in and
// out, embeddings for timesteps up to 1000 at dimension 256.
func DefaultUNet3DConfig() UNet3DConfig {
	return UNet3DConfig{
		InChannels:   3,
		OutChannels:  3,
		TimeCapacity: 1000,
		TimeDim:      256,
	}
}

// UNet3D predicts the noise component of a corrupted video volume.
//
// The network is a volumetric U-Net over [batch, channels, frames,
// height, width] input:
//
//	stem        DoubleConv3D  in -> 64
//	down1       Down3D        64 -> 128   (extents halved)
//	down2       Down3D       128 -> 256   (extents halved)
//	down3       Down3D       256 -> 256   (extents halved)
//	bottleneck  DoubleConv3D 256 -> 512
//	up1         Up3D         512 -> 256   (skip from down2)
//	up2         Up3D         256 -> 128   (skip from down1)
//	up3         Up3D         128 -> 64    (skip from stem)
//	head        Conv3D 1x1x1  64 -> out
//
// Output shape always equals input shape; Forward panics otherwise.
// Frames, height and width must each survive three halvings, so
// multiples of 8 are required.
//
// The timestep embedding is computed on every Forward but never added
// to the feature maps, leaving the network unconditioned on the noise
// level. Existing checkpoints were trained with this wiring and their
// weights depend on it.
type UNet3D[B tensor.Backend] struct {
	cfg UNet3DConfig

	timeEmbed  *PositionalTimeEmbedding[B]
	inputConv  *DoubleConv3D[B]
	down1      *Down3D[B]
	down2      *Down3D[B]
	down3      *Down3D[B]
	bottleneck *DoubleConv3D[B]
	up1        *Up3D[B]
	up2        *Up3D[B]
	up3        *Up3D[B]
	outConv    *Conv3D[B]

	backend B
}

// NewUNet3D builds the denoising network for the given configuration.
func NewUNet3D[B tensor.Backend](cfg UNet3DConfig, backend B) *UNet3D[B] {
	if cfg.InChannels <= 0 || cfg.OutChannels <= 0 {
		panic(fmt.Sprintf("unet3d: invalid channel config in=%d out=%d", cfg.InChannels, cfg.OutChannels))
	}
	if cfg.TimeCapacity <= 0 || cfg.TimeDim <= 0 {
		panic(fmt.Sprintf("unet3d: invalid time embedding config capacity=%d dim=%d", cfg.TimeCapacity, cfg.TimeDim))
	}

	return &UNet3D[B]{
		cfg:        cfg,
		timeEmbed:  NewPositionalTimeEmbedding[B](cfg.TimeCapacity, cfg.TimeDim, backend),
		inputConv:  NewDoubleConv3D(cfg.InChannels, 64, backend),
		down1:      NewDown3D(64, 128, backend),
		down2:      NewDown3D(128, 256, backend),
		down3:      NewDown3D(256, 256, backend),
		bottleneck: NewDoubleConv3D(256, 512, backend),
		up1:        NewUp3D(512, 256, backend),
		up2:        NewUp3D(256, 128, backend),
		up3:        NewUp3D(128, 64, backend),
		outConv:    NewConv3D(64, cfg.OutChannels, 1, 1, 0, true, backend),
		backend:    backend,
	}
}

// Forward predicts noise for a batch of corrupted volumes.
//
// x is [batch, inChannels, frames, height, width] and timesteps holds
// one timestep per batch element. The output has exactly the input's
// shape.
func (u *UNet3D[B]) Forward(x *tensor.Tensor[float32, B], timesteps []int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("unet3d: expected 5D input [N,C,F,H,W], got %dD", len(shape)))
	}
	if shape[1] != u.cfg.InChannels {
		panic(fmt.Sprintf("unet3d: input channels %d != configured %d", shape[1], u.cfg.InChannels))
	}
	if len(timesteps) != shape[0] {
		panic(fmt.Sprintf("unet3d: %d timesteps for batch of %d", len(timesteps), shape[0]))
	}

	// Computed and discarded: see the type comment.
	_ = u.timeEmbed.Forward(timesteps)

	x1 := u.inputConv.Forward(x)
	x2 := u.down1.Forward(x1)
	x3 := u.down2.Forward(x2)
	x4 := u.down3.Forward(x3)

	x4 = u.bottleneck.Forward(x4)

	out := u.up1.Forward(x4, x3)
	out = u.up2.Forward(out, x2)
	out = u.up3.Forward(out, x1)
	out = u.outConv.Forward(out)

	outShape := out.Shape()
	if !outShape.Equal(shape) {
		panic(fmt.Sprintf("unet3d: output shape %v != input shape %v", outShape, shape))
	}
	return out
}

// SetTraining propagates the mode to every stage with batch norms plus
// the embedding dropout.
func (u *UNet3D[B]) SetTraining(training bool) {
	u.timeEmbed.SetTraining(training)
	u.inputConv.SetTraining(training)
	u.down1.SetTraining(training)
	u.down2.SetTraining(training)
	u.down3.SetTraining(training)
	u.bottleneck.SetTraining(training)
	u.up1.SetTraining(training)
	u.up2.SetTraining(training)
	u.up3.SetTraining(training)
}

// Config returns the construction parameters.
func (u *UNet3D[B]) Config() UNet3DConfig {
	return u.cfg
}

// Parameters returns all learnable parameters of every stage.
func (u *UNet3D[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, u.inputConv.Parameters()...)
	params = append(params, u.down1.Parameters()...)
	params = append(params, u.down2.Parameters()...)
	params = append(params, u.down3.Parameters()...)
	params = append(params, u.bottleneck.Parameters()...)
	params = append(params, u.up1.Parameters()...)
	params = append(params, u.up2.Parameters()...)
	params = append(params, u.up3.Parameters()...)
	params = append(params, u.outConv.Parameters()...)
	return params
}

// ParameterCount returns the total number of learnable scalars.
func (u *UNet3D[B]) ParameterCount() int {
	count := 0
	for _, p := range u.Parameters() {
		count += p.NumElements()
	}
	return count
}

// StateDict returns the full network state keyed by stage prefix.
func (u *UNet3D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for prefix, module := range u.stages() {
		prefixStateDict(stateDict, prefix, module.StateDict())
	}
	return stateDict
}

// LoadStateDict restores the full network state.
func (u *UNet3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, module := range u.stages() {
		if err := module.LoadStateDict(subStateDict(stateDict, prefix)); err != nil {
			return fmt.Errorf("unet3d %s: %w", prefix, err)
		}
	}
	return nil
}

// stages maps state-dict prefixes to the stages that own them. The
// timestep embedding is deterministic and carries no state.
func (u *UNet3D[B]) stages() map[string]StateModule {
	return map[string]StateModule{
		"input_conv.": u.inputConv,
		"down1.":      u.down1,
		"down2.":      u.down2,
		"down3.":      u.down3,
		"bottleneck.": u.bottleneck,
		"up1.":        u.up1,
		"up2.":        u.up2,
		"up3.":        u.up3,
		"out_conv.":   u.outConv,
	}
}
