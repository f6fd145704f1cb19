// Package diffusion implements the denoising diffusion probabilistic
// model (DDPM) machinery: the variance schedule, the forward corruption
// process used during training, and the ancestral reverse sampler that
// turns pure noise into clips.
package diffusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SchedulePolicy selects how the per-step noise variances are laid out.
type SchedulePolicy int

const (
	// ScheduleLinear spaces the betas evenly between the start and end
	// values. The classic DDPM schedule.
	ScheduleLinear SchedulePolicy = iota

	// ScheduleCosine derives the betas from a squared-cosine cumulative
	// alpha curve, which keeps more signal alive in the early steps.
	ScheduleCosine
)

// Standard endpoints for the linear schedule.
const (
	DefaultBetaStart = 1e-4
	DefaultBetaEnd   = 0.02
)

func (p SchedulePolicy) String() string {
	switch p {
	case ScheduleLinear:
		return "linear"
	case ScheduleCosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// Schedule holds the precomputed variance schedule for a diffusion
// process. All slices have StepCount entries and are read-only after
// construction; both the corruption and sampling paths index into them
// every step, so they are computed once up front.
type Schedule struct {
	StepCount int
	Policy    SchedulePolicy

	// Beta is the per-step noise variance.
	Beta []float64
	// SqrtAlpha is sqrt(1 - beta), the per-step signal retention.
	SqrtAlpha []float64
	// SqrtAlphaHat is sqrt of the cumulative product of (1 - beta),
	// the total signal retention after each step.
	SqrtAlphaHat []float64
	// SqrtOneMinusAlphaHat is the matching total noise magnitude.
	SqrtOneMinusAlphaHat []float64
	// StdBeta is sqrt(beta), the sampling noise scale.
	StdBeta []float64
}

// NewSchedule precomputes a variance schedule with stepCount steps.
// The beta range only shapes the linear policy; the cosine policy is
// parameter-free apart from the step count.
func NewSchedule(stepCount int, betaStart, betaEnd float64, policy SchedulePolicy) (*Schedule, error) {
	if stepCount <= 0 {
		return nil, fmt.Errorf("schedule: step count must be positive, got %d", stepCount)
	}
	if betaStart >= betaEnd {
		return nil, fmt.Errorf("schedule: beta start %g must be below beta end %g", betaStart, betaEnd)
	}

	var beta []float64
	switch policy {
	case ScheduleLinear:
		beta = floats.Span(make([]float64, stepCount), betaStart, betaEnd)
	case ScheduleCosine:
		beta = cosineBetas(stepCount)
	default:
		return nil, fmt.Errorf("schedule: unknown policy %d", policy)
	}

	alpha := make([]float64, stepCount)
	for i, b := range beta {
		alpha[i] = 1 - b
	}
	alphaHat := floats.CumProd(make([]float64, stepCount), alpha)

	s := &Schedule{
		StepCount:            stepCount,
		Policy:               policy,
		Beta:                 beta,
		SqrtAlpha:            make([]float64, stepCount),
		SqrtAlphaHat:         make([]float64, stepCount),
		SqrtOneMinusAlphaHat: make([]float64, stepCount),
		StdBeta:              make([]float64, stepCount),
	}
	for i := 0; i < stepCount; i++ {
		s.SqrtAlpha[i] = math.Sqrt(alpha[i])
		s.SqrtAlphaHat[i] = math.Sqrt(alphaHat[i])
		s.SqrtOneMinusAlphaHat[i] = math.Sqrt(1 - alphaHat[i])
		s.StdBeta[i] = math.Sqrt(beta[i])
	}

	return s, nil
}

// cosineBetas computes the squared-cosine schedule with the standard
// offset s = 0.008, clipping each beta to [1e-4, 0.9999].
func cosineBetas(stepCount int) []float64 {
	const s = 0.008

	cumulative := make([]float64, stepCount+1)
	for i := range cumulative {
		t := float64(i) / float64(stepCount)
		f := math.Cos((t + s) / (1 + s) * math.Pi / 2)
		cumulative[i] = f * f
	}
	for i := stepCount; i >= 0; i-- {
		cumulative[i] /= cumulative[0]
	}

	beta := make([]float64, stepCount)
	for i := range beta {
		b := 1 - cumulative[i+1]/cumulative[i]
		beta[i] = math.Min(math.Max(b, 1e-4), 0.9999)
	}
	return beta
}
