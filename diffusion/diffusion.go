// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package diffusion provides the denoising diffusion probabilistic
// model (DDPM) machinery: precomputed variance schedules, the forward
// corruption process used during training, and the ancestral reverse
// sampler that turns pure noise into clips.
//
// Example:
//
//	schedule, err := diffusion.NewSchedule(1000,
//	    diffusion.DefaultBetaStart, diffusion.DefaultBetaEnd,
//	    diffusion.ScheduleLinear)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	process := diffusion.NewProcess(schedule, diffusion.ProcessConfig{
//	    Channels: 3,
//	    Frames:   8,
//	    Size:     32,
//	    Seed:     1,
//	}, backend)
//
//	// Training: corrupt a clean batch at random timesteps.
//	t := process.SampleTimesteps(batchSize)
//	noisy, eps := process.ForwardCorrupt(clean, t)
//
//	// Inference: walk the chain backwards from pure noise.
//	clips := process.ReverseSample(model, 4, 1)
package diffusion

import (
	"github.com/drift-ml/drift/internal/diffusion"
	"github.com/drift-ml/drift/internal/tensor"
)

// SchedulePolicy selects how the per-step noise variances are laid out.
type SchedulePolicy = diffusion.SchedulePolicy

const (
	// ScheduleLinear spaces the betas evenly between the start and end
	// values. The classic DDPM schedule.
	ScheduleLinear = diffusion.ScheduleLinear

	// ScheduleCosine derives the betas from a squared-cosine cumulative
	// alpha curve, which keeps more signal alive in the early steps.
	ScheduleCosine = diffusion.ScheduleCosine
)

// Standard endpoints for the linear schedule.
const (
	DefaultBetaStart = diffusion.DefaultBetaStart
	DefaultBetaEnd   = diffusion.DefaultBetaEnd
)

// Schedule holds the precomputed variance schedule for a diffusion
// process: per-step betas plus the derived signal and noise magnitudes
// both paths index into every step.
type Schedule = diffusion.Schedule

// NewSchedule precomputes a variance schedule with stepCount steps.
// The beta range only shapes the linear policy; the cosine policy is
// parameter-free apart from the step count.
//
// Example:
//
//	schedule, err := diffusion.NewSchedule(1000, 1e-4, 0.02, diffusion.ScheduleLinear)
func NewSchedule(stepCount int, betaStart, betaEnd float64, policy SchedulePolicy) (*Schedule, error) {
	return diffusion.NewSchedule(stepCount, betaStart, betaEnd, policy)
}

// Denoiser predicts the noise component of a corrupted clip at the
// given timesteps. nn.UNet3D satisfies it.
type Denoiser[B tensor.Backend] = diffusion.Denoiser[B]

// ProcessConfig describes the clip geometry the process generates and
// the seed for its private noise source.
type ProcessConfig = diffusion.ProcessConfig

// DefaultProcessConfig matches the training data layout: 3-channel,
// 8-frame clips at 32x32.
func DefaultProcessConfig() ProcessConfig {
	return diffusion.DefaultProcessConfig()
}

// Process couples a variance schedule with clip geometry and a noise
// source. It owns a private RNG, so two processes built with the same
// seed corrupt and sample identically.
type Process[B tensor.Backend] = diffusion.Process[B]

// NewProcess creates a diffusion process over the given schedule.
//
// Example:
//
//	process := diffusion.NewProcess(schedule, diffusion.DefaultProcessConfig(), backend)
func NewProcess[B tensor.Backend](schedule *Schedule, cfg ProcessConfig, backend B) *Process[B] {
	return diffusion.NewProcess(schedule, cfg, backend)
}
