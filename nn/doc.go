// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Conv3D, ConvTranspose3D, MaxPool3D, BatchNorm3D, Dropout
//   - Activations: ReLU
//   - Attention: MultiHeadAttention, TransformerEncoderSA
//   - Loss functions: SmoothL1Loss, MSELoss, NCCLoss
//   - Networks: UNet3D video denoiser with its Down3D/Up3D blocks
//   - Utilities: Sequential, Module interface, Parameter, checkpoints
//   - Initialization: Xavier, Zeros, Ones, Randn
//
// # Basic Usage
//
//	import (
//	    "github.com/drift-ml/drift/backend/cpu"
//	    "github.com/drift-ml/drift/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Build a small conv block
//	    model := nn.NewSequential(
//	        nn.NewConv3D(3, 64, 3, 1, 1, true, backend),
//	        nn.NewReLU[*cpu.Backend](),
//	    )
//
//	    // Forward pass
//	    output := model.Forward(input)
//	}
//
// # Layers
//
// Linear: Fully connected layer with Xavier initialization
//
//	layer := nn.NewLinear(inFeatures, outFeatures, backend)
//
// Conv3D: Volumetric convolutional layer over [N, C, F, H, W] input
//
//	conv := nn.NewConv3D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
//
// MaxPool3D: Volumetric max pooling layer
//
//	pool := nn.NewMaxPool3D(kernelSize, stride, backend)
//
// # The Denoising U-Net
//
// UNet3D is the flagship network: an encoder-decoder over video clips
// conditioned on diffusion timesteps.
//
//	model := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//	noise := model.Forward(clips, timesteps)  // same shape as clips
//
// # Loss Functions
//
// SmoothL1Loss: Huber-style loss for noise prediction
//
//	criterion := nn.NewSmoothL1Loss(backend)
//	loss := criterion.Forward(predictions, targets)
//
// NCCLoss: normalized cross-correlation alternative
//
//	criterion, err := nn.NewNCCLoss(nn.ReductionMean, backend)
//	loss := criterion.Forward(predictions, targets)
//
// # Checkpoints
//
// Training state round-trips through .drift files:
//
//	err := nn.SaveCheckpoint("ckpt.drift", model, optimizer, epoch)
//	checkpoint, err := nn.LoadCheckpoint("ckpt.drift", backend, model, optimizer, scheduler, scaler)
//
// # Parameter Management
//
// Access model parameters for optimization:
//
//	params := model.Parameters()
//	for _, param := range params {
//	    fmt.Println(param.Name(), param.Tensor().Shape())
//	}
package nn
