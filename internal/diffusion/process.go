package diffusion

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/drift-ml/drift/internal/tensor"
)

// Denoiser predicts the noise component of a corrupted clip at the
// given timesteps. UNet3D satisfies it; tests substitute cheap stubs.
type Denoiser[B tensor.Backend] interface {
	Forward(x *tensor.Tensor[float32, B], timesteps []int) *tensor.Tensor[float32, B]
	SetTraining(training bool)
}

// gradientPauser is the optional backend capability of running work
// with operation recording suspended. The autodiff backend provides
// it; plain compute backends sample without it.
type gradientPauser interface {
	NoGrad(fn func())
}

// ProcessConfig describes the clip geometry the process generates and
// the seed for its private noise source.
type ProcessConfig struct {
	Channels int   // Color channels per frame
	Frames   int   // Frames per clip
	Size     int   // Height and width of each frame
	Seed     int64 // RNG seed for timesteps and noise draws
}

// DefaultProcessConfig matches the training data layout: 3-channel,
// 8-frame clips at 32x32.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Channels: 3,
		Frames:   8,
		Size:     32,
		Seed:     1,
	}
}

// Process couples a variance schedule with clip geometry and a noise
// source. It owns a private RNG, so two processes built with the same
// seed corrupt and sample identically.
type Process[B tensor.Backend] struct {
	schedule *Schedule
	channels int
	frames   int
	size     int
	rng      *rand.Rand
	backend  B
}

// NewProcess creates a diffusion process over the given schedule.
func NewProcess[B tensor.Backend](schedule *Schedule, cfg ProcessConfig, backend B) *Process[B] {
	return &Process[B]{
		schedule: schedule,
		channels: cfg.Channels,
		frames:   cfg.Frames,
		size:     cfg.Size,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		backend:  backend,
	}
}

// Schedule returns the variance schedule the process runs on.
func (p *Process[B]) Schedule() *Schedule {
	return p.schedule
}

// SampleTimesteps draws one training timestep per batch element,
// uniform over [1, stepCount). Step 0 is never drawn: the first step
// carries no noise to predict.
func (p *Process[B]) SampleTimesteps(batchSize int) []int {
	timesteps := make([]int, batchSize)
	for i := range timesteps {
		timesteps[i] = 1 + p.rng.Intn(p.schedule.StepCount-1)
	}
	return timesteps
}

// ForwardCorrupt applies t[i] steps of noise to each clip in x in a
// single jump and returns the corrupted batch together with the exact
// noise that was mixed in. The network trains to recover that noise.
//
// Inputs are never mutated. x must be [batch, C, F, H, W] with one
// timestep per batch element.
func (p *Process[B]) ForwardCorrupt(x *tensor.Tensor[float32, B], t []int) (noisy, eps *tensor.Tensor[float32, B]) {
	shape := x.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("diffusion: corrupt input must be 5D [N,C,F,H,W], got %dD", len(shape)))
	}
	if len(t) != shape[0] {
		panic(fmt.Sprintf("diffusion: %d timesteps for batch of %d", len(t), shape[0]))
	}

	eps = tensor.RandnFrom[float32](shape, p.rng, p.backend)

	signal := p.gather(p.schedule.SqrtAlphaHat, t)
	noise := p.gather(p.schedule.SqrtOneMinusAlphaHat, t)
	noisy = signal.Mul(x).Add(noise.Mul(eps))

	return noisy, eps
}

// gather builds a [n, 1, 1, 1, 1] coefficient tensor from the schedule
// values at the given timesteps, ready to broadcast over a clip batch.
func (p *Process[B]) gather(values []float64, t []int) *tensor.Tensor[float32, B] {
	raw, err := tensor.NewRaw(tensor.Shape{len(t), 1, 1, 1, 1}, tensor.Float32, p.backend.Device())
	if err != nil {
		panic(err)
	}
	data := raw.AsFloat32()
	for i, step := range t {
		data[i] = float32(values[step])
	}
	return tensor.New[float32](raw, p.backend)
}

// ReverseSample generates count clips by ancestral sampling: start
// from pure noise and walk the schedule backwards, subtracting the
// network's noise estimate at every step. Fresh noise is injected at
// every step except the last.
//
// The network runs in evaluation mode with gradient recording
// suspended; both are restored before returning. The result is
// quantized to uint8 pixels and upscaled by upscaleFactor in H and W.
func (p *Process[B]) ReverseSample(network Denoiser[B], count int, upscaleFactor int) *tensor.Tensor[uint8, B] {
	slog.Info("sampling clips", "count", count, "steps", p.schedule.StepCount)

	network.SetTraining(false)
	defer network.SetTraining(true)

	shape := tensor.Shape{count, p.channels, p.frames, p.size, p.size}
	var x *tensor.Tensor[float32, B]

	p.noGrad(func() {
		x = tensor.RandnFrom[float32](shape, p.rng, p.backend)
		timesteps := make([]int, count)

		for i := p.schedule.StepCount - 1; i >= 1; i-- {
			for j := range timesteps {
				timesteps[j] = i
			}
			eps := network.Forward(x, timesteps)

			invSqrtAlpha := float32(1 / p.schedule.SqrtAlpha[i])
			epsWeight := float32(p.schedule.Beta[i] / p.schedule.SqrtOneMinusAlphaHat[i])
			x = x.Sub(eps.MulScalar(epsWeight)).MulScalar(invSqrtAlpha)

			if i > 1 {
				noise := tensor.RandnFrom[float32](shape, p.rng, p.backend)
				x = x.Add(noise.MulScalar(float32(p.schedule.StdBeta[i])))
			}
		}
	})

	return p.quantize(x, upscaleFactor)
}

// quantize clamps a sampled batch to [-1, 1], maps it onto [0, 255]
// pixel values and nearest-neighbor upscales height and width.
func (p *Process[B]) quantize(x *tensor.Tensor[float32, B], upscaleFactor int) *tensor.Tensor[uint8, B] {
	data := x.Raw().AsFloat32()
	raw, err := tensor.NewRaw(x.Shape().Clone(), tensor.Uint8, p.backend.Device())
	if err != nil {
		panic(err)
	}
	pixels := raw.AsUint8()
	for i, v := range data {
		if v < -1 {
			v = -1
		} else if v > 1 {
			v = 1
		}
		pixels[i] = uint8((v + 1) * 127.5)
	}

	if upscaleFactor > 1 {
		raw = p.backend.UpsampleNearest3D(raw, [3]int{1, upscaleFactor, upscaleFactor})
	}
	return tensor.New[uint8](raw, p.backend)
}

// noGrad runs fn with gradient recording suspended when the backend
// supports it.
func (p *Process[B]) noGrad(fn func()) {
	if pauser, ok := any(p.backend).(gradientPauser); ok {
		pauser.NoGrad(fn)
		return
	}
	fn()
}
