// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// UNet3DConfig defines the configuration for the video denoising U-Net.
//
// Fields:
//   - InChannels: input channels (3 for RGB clips)
//   - OutChannels: predicted-noise channels, matches InChannels
//   - TimeCapacity: highest diffusion timestep the embedding table covers
//   - TimeDim: timestep embedding dimension
//
// Example:
//
//	config := nn.UNet3DConfig{
//	    InChannels:   3,
//	    OutChannels:  3,
//	    TimeCapacity: 1000,
//	    TimeDim:      256,
//	}
type UNet3DConfig = nn.UNet3DConfig

// DefaultUNet3DConfig returns the standard configuration: RGB in and
// out, embeddings for timesteps up to 1000 at dimension 256.
func DefaultUNet3DConfig() UNet3DConfig {
	return nn.DefaultUNet3DConfig()
}

// UNet3D is the encoder-decoder denoising network for video clips.
//
// Architecture:
//
//	x → DoubleConv → Down×3 → bottleneck → Up×3 → Conv1×1 → noise
//	        |_________skip connections________|
//
// Forward takes the noisy clip [N, C, F, H, W] and the per-sample
// diffusion timesteps, and predicts the injected noise with the same
// shape as the input. Frames, height and width must be multiples of 8
// (three pooling halvings).
type UNet3D[B tensor.Backend] = nn.UNet3D[B]

// NewUNet3D creates a new video denoising U-Net.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//	noise := model.Forward(clips, timesteps)
func NewUNet3D[B tensor.Backend](cfg UNet3DConfig, backend B) *UNet3D[B] {
	return nn.NewUNet3D(cfg, backend)
}

// Building blocks

// DoubleConv3D is two Conv3D+BatchNorm3D+ReLU stages, the basic
// convolutional unit of the U-Net.
type DoubleConv3D[B tensor.Backend] = nn.DoubleConv3D[B]

// NewDoubleConv3D creates a double convolution block.
func NewDoubleConv3D[B tensor.Backend](inChannels, outChannels int, backend B) *DoubleConv3D[B] {
	return nn.NewDoubleConv3D(inChannels, outChannels, backend)
}

// Down3D halves the spatial resolution with max pooling, then applies a
// double convolution.
type Down3D[B tensor.Backend] = nn.Down3D[B]

// NewDown3D creates a downsampling block.
func NewDown3D[B tensor.Backend](inChannels, outChannels int, backend B) *Down3D[B] {
	return nn.NewDown3D(inChannels, outChannels, backend)
}

// Up3D doubles the spatial resolution with a transposed convolution,
// concatenates the encoder skip connection, then applies a double
// convolution.
type Up3D[B tensor.Backend] = nn.Up3D[B]

// NewUp3D creates an upsampling block.
func NewUp3D[B tensor.Backend](inChannels, outChannels int, backend B) *Up3D[B] {
	return nn.NewUp3D(inChannels, outChannels, backend)
}
