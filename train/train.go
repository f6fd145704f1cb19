// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train provides the diffusion training loop: gradient
// accumulation, mixed-precision scaling, EMA weight tracking, periodic
// checkpoints and sample grids.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//	ema := nn.NewUNet3D(nn.DefaultUNet3DConfig(), backend)
//
//	cfg := train.DefaultTrainerConfig()
//	cfg.OutDir = "runs"
//	cfg.NumEpochs = 300
//
//	trainer, err := train.NewTrainer(cfg, model, ema, data, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := trainer.Train(); err != nil {
//	    log.Fatal(err)
//	}
package train

import (
	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/dataset"
	"github.com/drift-ml/drift/internal/tensor"
	"github.com/drift-ml/drift/internal/train"
)

// Loss objectives accepted by TrainerConfig.
const (
	LossSmoothL1 = train.LossSmoothL1
	LossNCC      = train.LossNCC
)

// TrainerConfig collects every knob of a training run.
type TrainerConfig = train.TrainerConfig

// DefaultTrainerConfig returns the standard run configuration.
func DefaultTrainerConfig() TrainerConfig {
	return train.DefaultTrainerConfig()
}

// Model is the denoising network surface the loop drives: forward
// passes for noise prediction plus weight access for updates, EMA
// tracking and checkpoints. nn.UNet3D satisfies it.
type Model[B tensor.Backend] = train.Model[B]

// Network is the weight-access surface shared by the live and shadow
// models.
type Network[B tensor.Backend] = train.Network[B]

// Trainer owns one training run: the live and shadow networks, their
// optimizer and schedules, the diffusion process and the data loader.
type Trainer[B tensor.Backend] = train.Trainer[B]

// NewTrainer wires a run together. model and emaModel must be freshly
// constructed with identical architectures; the shadow starts as an
// exact copy of the live weights and is kept in evaluation mode.
//
// Example:
//
//	trainer, err := train.NewTrainer(cfg, model, ema, data, backend)
func NewTrainer[B tensor.Backend](
	cfg TrainerConfig,
	model, emaModel Model[*autodiff.AutodiffBackend[B]],
	data *dataset.Dataset,
	backend *autodiff.AutodiffBackend[B],
) (*Trainer[B], error) {
	return train.NewTrainer(cfg, model, emaModel, data, backend)
}

// DefaultEMAWarmup is the number of steps the shadow model plainly
// copies the live weights before exponential blending begins.
const DefaultEMAWarmup = train.DefaultEMAWarmup

// EMA maintains an exponential moving average of model weights. The
// shadow model it updates tends to sample better than the live one.
type EMA[B tensor.Backend] = train.EMA[B]

// NewEMA creates an EMA tracker with the given decay and warmup.
//
// Example:
//
//	ema := train.NewEMA[*cpu.CPUBackend](0.995, train.DefaultEMAWarmup)
func NewEMA[B tensor.Backend](beta float32, warmup int) *EMA[B] {
	return train.NewEMA[B](beta, warmup)
}

// SaveImageGrid writes sampled clips as a JPEG contact sheet, one clip
// per row with frames left to right.
func SaveImageGrid[B tensor.Backend](path string, clips *tensor.Tensor[uint8, B]) error {
	return train.SaveImageGrid(path, clips)
}

// SaveGIF writes sampled clips as an animated GIF, clips side by side
// and frames over time.
func SaveGIF[B tensor.Backend](path string, clips *tensor.Tensor[uint8, B]) error {
	return train.SaveGIF(path, clips)
}
