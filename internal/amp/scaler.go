// Package amp implements mixed-precision training support.
//
// The GradScaler multiplies the loss by a large factor before
// backpropagation so that small gradients survive half-precision
// rounding, then divides the gradients back down before the optimizer
// step. Steps whose scaled gradients fall outside the finite float16
// range are skipped and the scale is reduced; long runs of good steps
// grow it back.
package amp

import (
	"github.com/x448/float16"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// Stepper is the part of an optimizer the scaler drives.
type Stepper interface {
	Step()
}

// GradScalerConfig holds the scale dynamics parameters.
type GradScalerConfig struct {
	InitScale      float64 // Initial loss scale
	GrowthFactor   float64 // Multiplier after a run of good steps
	BackoffFactor  float64 // Multiplier after an overflow
	GrowthInterval int     // Good steps required before growing
}

// DefaultGradScalerConfig returns the standard scale dynamics:
// start at 2^16, halve on overflow, double after 2000 clean steps.
func DefaultGradScalerConfig() GradScalerConfig {
	return GradScalerConfig{
		InitScale:      65536.0,
		GrowthFactor:   2.0,
		BackoffFactor:  0.5,
		GrowthInterval: 2000,
	}
}

// GradScaler manages the loss scale for mixed-precision training.
//
// A disabled scaler is a pass-through: Scale returns the loss
// unchanged, Unscale does nothing and Step always runs the optimizer.
// This lets the trainer keep one code path for FP16 and FP32 runs.
type GradScaler[B tensor.Backend] struct {
	enabled        bool
	scale          float64
	growthFactor   float64
	backoffFactor  float64
	growthInterval int

	goodSteps     int
	foundOverflow bool
	unscaled      bool
}

// NewGradScaler creates a gradient scaler. Zero config fields take
// their defaults. The backend argument only pins the type parameter.
func NewGradScaler[B tensor.Backend](enabled bool, config GradScalerConfig, backend B) *GradScaler[B] {
	if config.InitScale == 0 {
		config.InitScale = 65536.0
	}
	if config.GrowthFactor == 0 {
		config.GrowthFactor = 2.0
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 0.5
	}
	if config.GrowthInterval == 0 {
		config.GrowthInterval = 2000
	}

	return &GradScaler[B]{
		enabled:        enabled,
		scale:          config.InitScale,
		growthFactor:   config.GrowthFactor,
		backoffFactor:  config.BackoffFactor,
		growthInterval: config.GrowthInterval,
	}
}

// Enabled reports whether the scaler is active.
func (s *GradScaler[B]) Enabled() bool {
	return s.enabled
}

// GetScale returns the current loss scale. A disabled scaler always
// reports 1.
func (s *GradScaler[B]) GetScale() float64 {
	if !s.enabled {
		return 1.0
	}
	return s.scale
}

// Scale multiplies the loss by the current scale factor. Call this on
// the loss before running backpropagation.
func (s *GradScaler[B]) Scale(loss *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !s.enabled {
		return loss
	}
	return loss.MulScalar(float32(s.scale))
}

// Unscale divides the accumulated gradients by the scale in place and
// records whether any scaled gradient overflowed half precision.
// Calling it twice between updates is a no-op.
func (s *GradScaler[B]) Unscale(params []*nn.Parameter[B]) {
	if !s.enabled || s.unscaled {
		return
	}

	inv := float32(1.0 / s.scale)
	for _, param := range params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		data := grad.Raw().AsFloat32()
		for i, v := range data {
			if overflowsHalf(v) {
				s.foundOverflow = true
			}
			data[i] = v * inv
		}
	}
	s.unscaled = true
}

// Step unscales the gradients if needed and runs the optimizer step,
// unless an overflow was detected. Returns whether the step ran.
func (s *GradScaler[B]) Step(optimizer Stepper, params []*nn.Parameter[B]) bool {
	if !s.enabled {
		optimizer.Step()
		return true
	}

	s.Unscale(params)
	if s.foundOverflow {
		return false
	}

	optimizer.Step()
	return true
}

// Update adjusts the scale after a step: back off on overflow, grow
// after a full interval of clean steps. Call once per optimizer step,
// after Step.
func (s *GradScaler[B]) Update() {
	if !s.enabled {
		return
	}

	if s.foundOverflow {
		s.scale *= s.backoffFactor
		s.goodSteps = 0
	} else {
		s.goodSteps++
		if s.goodSteps >= s.growthInterval {
			s.scale *= s.growthFactor
			s.goodSteps = 0
		}
	}

	s.foundOverflow = false
	s.unscaled = false
}

// StateDict returns the scaler state for checkpointing. A disabled
// scaler has no state and returns an empty map.
func (s *GradScaler[B]) StateDict() map[string]float64 {
	if !s.enabled {
		return map[string]float64{}
	}
	return map[string]float64{
		"scale":           s.scale,
		"growth_factor":   s.growthFactor,
		"backoff_factor":  s.backoffFactor,
		"growth_interval": float64(s.growthInterval),
		"good_steps":      float64(s.goodSteps),
	}
}

// LoadStateDict restores scaler state from a checkpoint. Loading into
// a disabled scaler is a no-op.
func (s *GradScaler[B]) LoadStateDict(state map[string]float64) {
	if !s.enabled || len(state) == 0 {
		return
	}
	if v, exists := state["scale"]; exists && v > 0 {
		s.scale = v
	}
	if v, exists := state["growth_factor"]; exists && v > 0 {
		s.growthFactor = v
	}
	if v, exists := state["backoff_factor"]; exists && v > 0 {
		s.backoffFactor = v
	}
	if v, exists := state["growth_interval"]; exists && int(v) > 0 {
		s.growthInterval = int(v)
	}
	if v, exists := state["good_steps"]; exists {
		s.goodSteps = int(v)
	}
}

// overflowsHalf reports whether a scaled gradient value falls outside
// the finite half-precision range. NaN counts as an overflow.
func overflowsHalf(v float32) bool {
	h := float16.Fromfloat32(v)
	return h.IsNaN() || h.IsInf(0)
}
