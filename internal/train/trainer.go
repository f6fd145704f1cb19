// Package train drives DDPM training: the gradient-accumulation loop
// with mixed-precision scaling, EMA shadow tracking, periodic sampling
// and checkpointing, and the artifact writers for grids and GIFs.
package train

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/drift-ml/drift/internal/amp"
	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/dataset"
	"github.com/drift-ml/drift/internal/diffusion"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/optim"
	"github.com/drift-ml/drift/internal/tensor"
)

// Loss objectives accepted by TrainerConfig. Both score the predicted
// noise against the injected noise and are interchangeable.
const (
	LossSmoothL1 = "smooth_l1"
	LossNCC      = "ncc"
)

// sampleUpscale is the nearest-neighbor factor applied to sampled
// clips before they are written out.
const sampleUpscale = 2

// loaderPrefetch is the number of batches staged ahead of the loop.
const loaderPrefetch = 2

// Model is the denoising network surface the loop drives: forward
// passes for noise prediction plus weight access for updates, EMA
// tracking and checkpoints.
type Model[B tensor.Backend] interface {
	Network[B]
	Forward(x *tensor.Tensor[float32, B], timesteps []int) *tensor.Tensor[float32, B]
	SetTraining(training bool)
}

// objective scores predicted noise against injected noise.
type objective[B tensor.Backend] interface {
	Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// TrainerConfig collects every knob of a training run.
type TrainerConfig struct {
	OutDir  string // base directory for run artifacts
	RunName string // subdirectory of OutDir holding this run

	BatchSize         int
	AccumulationIters int // optimizer steps once per this many batches
	SampleCount       int // clips sampled at each snapshot
	NumEpochs         int
	FP16              bool // enables the gradient scaler
	SaveEvery         int  // snapshot period in batches
	LearningRate      float32
	NoiseSteps        int
	ImageSize         int
	ImageChannels     int
	NumFrames         int
	EMABeta           float32
	SchedulerTMax     int
	Loss              string // LossSmoothL1 or LossNCC
	Seed              int64
}

// DefaultTrainerConfig returns the standard run configuration.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		RunName:           "ddpm",
		BatchSize:         16,
		AccumulationIters: 64,
		SampleCount:       1,
		NumEpochs:         1000,
		SaveEvery:         2000,
		LearningRate:      1e-5,
		NoiseSteps:        500,
		ImageSize:         64,
		ImageChannels:     3,
		NumFrames:         8,
		EMABeta:           0.95,
		SchedulerTMax:     300,
		Loss:              LossSmoothL1,
		Seed:              1,
	}
}

// Trainer owns one training run: the live and shadow networks, their
// optimizer and schedules, the diffusion process and the data loader.
type Trainer[B tensor.Backend] struct {
	cfg     TrainerConfig
	saveDir string
	backend *autodiff.AutodiffBackend[B]

	model    Model[*autodiff.AutodiffBackend[B]]
	emaModel Model[*autodiff.AutodiffBackend[B]]
	params   []*nn.Parameter[*autodiff.AutodiffBackend[B]]

	process   *diffusion.Process[*autodiff.AutodiffBackend[B]]
	loader    *dataset.Loader[*autodiff.AutodiffBackend[B]]
	optimizer optim.Optimizer
	scheduler optim.Scheduler
	scaler    *amp.GradScaler[*autodiff.AutodiffBackend[B]]
	ema       *EMA[*autodiff.AutodiffBackend[B]]
	loss      objective[*autodiff.AutodiffBackend[B]]

	startEpoch int
	step       int64
	lastTotal  float64
	progress   io.Writer
}

// NewTrainer wires a run together. model and emaModel must be freshly
// constructed with identical architectures; the shadow starts as an
// exact copy of the live weights and is kept in evaluation mode.
func NewTrainer[B tensor.Backend](
	cfg TrainerConfig,
	model, emaModel Model[*autodiff.AutodiffBackend[B]],
	data *dataset.Dataset,
	backend *autodiff.AutodiffBackend[B],
) (*Trainer[B], error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	lossFn, err := newObjective(cfg.Loss, backend)
	if err != nil {
		return nil, err
	}

	schedule, err := diffusion.NewSchedule(cfg.NoiseSteps, diffusion.DefaultBetaStart, diffusion.DefaultBetaEnd, diffusion.ScheduleLinear)
	if err != nil {
		return nil, err
	}
	process := diffusion.NewProcess(schedule, diffusion.ProcessConfig{
		Channels: cfg.ImageChannels,
		Frames:   cfg.NumFrames,
		Size:     cfg.ImageSize,
		Seed:     cfg.Seed,
	}, backend)

	loader, err := dataset.NewLoader(data, dataset.LoaderConfig{
		BatchSize: cfg.BatchSize,
		Prefetch:  loaderPrefetch,
		Seed:      cfg.Seed,
	}, backend)
	if err != nil {
		return nil, err
	}

	if err := emaModel.LoadStateDict(model.StateDict()); err != nil {
		return nil, fmt.Errorf("trainer: shadow copy failed: %w", err)
	}
	emaModel.SetTraining(false)

	params := model.Parameters()
	adamCfg := optim.DefaultAdamConfig()
	adamCfg.LR = cfg.LearningRate
	optimizer := optim.NewAdam(params, adamCfg, backend)

	saveDir := filepath.Join(cfg.OutDir, cfg.RunName)
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("trainer: create %s: %w", saveDir, err)
	}

	return &Trainer[B]{
		cfg:       cfg,
		saveDir:   saveDir,
		backend:   backend,
		model:     model,
		emaModel:  emaModel,
		params:    params,
		process:   process,
		loader:    loader,
		optimizer: optimizer,
		scheduler: optim.NewCosineAnnealingLR(optimizer, cfg.SchedulerTMax, 0),
		scaler:    amp.NewGradScaler(cfg.FP16, amp.DefaultGradScalerConfig(), backend),
		ema:       NewEMA[*autodiff.AutodiffBackend[B]](cfg.EMABeta, DefaultEMAWarmup),
		loss:      lossFn,
		progress:  os.Stderr,
	}, nil
}

func validateConfig(cfg TrainerConfig) error {
	if cfg.NumEpochs <= 0 {
		return fmt.Errorf("trainer: epochs must be positive, got %d", cfg.NumEpochs)
	}
	if cfg.AccumulationIters <= 0 {
		return fmt.Errorf("trainer: accumulation iters must be positive, got %d", cfg.AccumulationIters)
	}
	if cfg.SampleCount <= 0 {
		return fmt.Errorf("trainer: sample count must be positive, got %d", cfg.SampleCount)
	}
	if cfg.SaveEvery <= 0 {
		return fmt.Errorf("trainer: save period must be positive, got %d", cfg.SaveEvery)
	}
	if cfg.LearningRate <= 0 {
		return fmt.Errorf("trainer: learning rate must be positive, got %g", cfg.LearningRate)
	}
	if cfg.NoiseSteps < 2 {
		return fmt.Errorf("trainer: need at least 2 noise steps, got %d", cfg.NoiseSteps)
	}
	if cfg.ImageChannels <= 0 || cfg.NumFrames <= 0 || cfg.ImageSize <= 0 {
		return fmt.Errorf("trainer: invalid clip geometry %dx%dx%dx%d",
			cfg.ImageChannels, cfg.NumFrames, cfg.ImageSize, cfg.ImageSize)
	}
	if cfg.EMABeta <= 0 || cfg.EMABeta >= 1 {
		return fmt.Errorf("trainer: ema beta must be in (0, 1), got %g", cfg.EMABeta)
	}
	if cfg.SchedulerTMax <= 0 {
		return fmt.Errorf("trainer: scheduler t-max must be positive, got %d", cfg.SchedulerTMax)
	}
	return nil
}

// newObjective resolves the configured loss name.
func newObjective[B tensor.Backend](name string, backend B) (objective[B], error) {
	switch name {
	case LossSmoothL1:
		return nn.NewSmoothL1Loss(backend), nil
	case LossNCC:
		return nn.NewNCCLoss(nn.ReductionMean, backend)
	default:
		return nil, fmt.Errorf("trainer: unknown loss objective %q (use %q or %q)", name, LossSmoothL1, LossNCC)
	}
}

// SetProgressOutput redirects the per-epoch header and progress bar,
// os.Stderr by default.
func (t *Trainer[B]) SetProgressOutput(w io.Writer) {
	t.progress = w
}

// Resume restores a full training checkpoint: weights, optimizer
// moments, scheduler phase and scaler state. Training continues at the
// checkpointed epoch.
func (t *Trainer[B]) Resume(path string) error {
	ckpt, err := nn.LoadCheckpoint(path, t.backend, t.model, t.optimizer, t.scheduler, t.scaler)
	if err != nil {
		return fmt.Errorf("trainer: resume: %w", err)
	}
	t.startEpoch = ckpt.Epoch
	t.step = ckpt.Step
	slog.Info("resumed from checkpoint", "path", path, "epoch", ckpt.Epoch, "step", ckpt.Step)
	return nil
}

// ResumeEMA restores the shadow network from an EMA checkpoint.
func (t *Trainer[B]) ResumeEMA(path string) error {
	if _, err := nn.LoadCheckpoint(path, t.backend, t.emaModel, nil, nil, nil); err != nil {
		return fmt.Errorf("trainer: resume ema: %w", err)
	}
	return nil
}

// Train runs the configured number of epochs. A failed batch or
// snapshot aborts the run with its error.
func (t *Trainer[B]) Train() error {
	slog.Info("training started",
		"epochs", t.cfg.NumEpochs,
		"batches", t.loader.Batches(),
		"accumulation", t.cfg.AccumulationIters,
		"loss", t.cfg.Loss,
		"fp16", t.cfg.FP16)

	t.model.SetTraining(true)
	tape := t.backend.Tape()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	for epoch := t.startEpoch; epoch < t.cfg.NumEpochs; epoch++ {
		fmt.Fprintf(t.progress, "Epoch: %d\n", epoch)
		if err := t.runEpoch(epoch); err != nil {
			return err
		}
		t.scheduler.Step()
	}
	return nil
}

// runEpoch iterates one pass over the loader, stepping the optimizer
// at accumulation boundaries and snapshotting on the save period.
func (t *Trainer[B]) runEpoch(epoch int) error {
	batches := t.loader.Batches()
	bar := NewProgress(t.progress, batches)

	var totalLoss float64
	var minibatchLoss float64

	it := t.loader.Epoch()
	batchIdx := 0
	for {
		clips, ok := it.Next()
		if !ok {
			break
		}

		value, err := t.accumulate(clips)
		if err != nil {
			return err
		}
		minibatchLoss += value
		t.step++

		if (batchIdx+1)%t.cfg.AccumulationIters == 0 {
			if err := t.applyUpdate(); err != nil {
				return err
			}
			totalLoss += minibatchLoss / float64(batches) * float64(t.cfg.AccumulationIters)
			t.lastTotal = totalLoss
			bar.SetDescription(fmt.Sprintf("Loss minibatch: %.4f, total: %.4f", minibatchLoss, totalLoss))
			minibatchLoss = 0
		}

		if batchIdx%t.cfg.SaveEvery == 0 {
			if err := t.snapshot(epoch, batchIdx); err != nil {
				return err
			}
		}

		bar.Increment()
		batchIdx++
	}
	if err := it.Err(); err != nil {
		return err
	}
	bar.Finish()
	return nil
}

// accumulate runs one forward/backward pass and folds the scaled
// gradients into the parameters. Returns the unscaled loss value.
func (t *Trainer[B]) accumulate(clips *tensor.Tensor[float32, *autodiff.AutodiffBackend[B]]) (float64, error) {
	batchSize := clips.Shape()[0]
	timesteps := t.process.SampleTimesteps(batchSize)
	noisy, eps := t.process.ForwardCorrupt(clips, timesteps)

	predicted := t.model.Forward(noisy, timesteps)
	if !predicted.Shape().Equal(noisy.Shape()) {
		return 0, fmt.Errorf("trainer: network output shape %v does not match input shape %v",
			predicted.Shape(), noisy.Shape())
	}

	loss := t.loss.Forward(predicted, eps)
	loss = loss.MulScalar(1 / float32(t.cfg.AccumulationIters))
	value := float64(loss.Raw().AsFloat32()[0])

	scaled := t.scaler.Scale(loss)
	grads := autodiff.Backward(scaled, t.backend)

	// Gradient bookkeeping must stay off the tape.
	tape := t.backend.Tape()
	tape.StopRecording()
	for _, p := range t.params {
		if g, ok := grads[p.Tensor().Raw()]; ok {
			p.AccumulateGrad(tensor.New[float32](g, t.backend))
		}
	}
	tape.Clear()
	tape.StartRecording()

	return value, nil
}

// applyUpdate performs the deferred optimizer step at an accumulation
// boundary: unscale and step, adjust the scale, clear gradients and
// advance the shadow network.
func (t *Trainer[B]) applyUpdate() error {
	t.scaler.Step(t.optimizer, t.params)
	t.scaler.Update()
	t.optimizer.ZeroGrad()
	return t.ema.Step(t.emaModel, t.model)
}

// snapshot samples from both networks and writes grids plus
// checkpoints. The live checkpoint carries the optimizer, scheduler
// and scaler; the shadow checkpoint is weights and epoch only.
func (t *Trainer[B]) snapshot(epoch, batchIdx int) error {
	live := t.process.ReverseSample(t.model, t.cfg.SampleCount, sampleUpscale)
	shadow := t.process.ReverseSample(t.emaModel, t.cfg.SampleCount, sampleUpscale)

	liveGrid := filepath.Join(t.saveDir, fmt.Sprintf("model_%d_%d.jpg", epoch, batchIdx))
	if err := SaveImageGrid(liveGrid, live); err != nil {
		return err
	}
	shadowGrid := filepath.Join(t.saveDir, fmt.Sprintf("model_ema_%d_%d.jpg", epoch, batchIdx))
	if err := SaveImageGrid(shadowGrid, shadow); err != nil {
		return err
	}

	// Clip geometry rides along so the sampler can rebuild the
	// network and process from the checkpoint alone.
	runMeta := map[string]any{
		"image_size":     t.cfg.ImageSize,
		"image_channels": t.cfg.ImageChannels,
		"num_frames":     t.cfg.NumFrames,
		"noise_steps":    t.cfg.NoiseSteps,
	}

	ckpt := &nn.Checkpoint{
		Model:     t.model,
		Optimizer: t.optimizer,
		Scheduler: t.scheduler,
		Scaler:    t.scaler,
		Epoch:     epoch,
		Step:      t.step,
		Loss:      t.lastTotal,
		Metadata:  runMeta,
		CreatedAt: time.Now().UTC(),
	}
	if err := ckpt.Save(filepath.Join(t.saveDir, fmt.Sprintf("model_%d_%d.drift", epoch, batchIdx))); err != nil {
		return err
	}

	emaCkpt := &nn.Checkpoint{
		Model:     t.emaModel,
		Epoch:     epoch,
		Metadata:  runMeta,
		CreatedAt: time.Now().UTC(),
	}
	if err := emaCkpt.Save(filepath.Join(t.saveDir, fmt.Sprintf("model_ema_%d_%d.drift", epoch, batchIdx))); err != nil {
		return err
	}

	slog.Info("snapshot written", "epoch", epoch, "batch", batchIdx, "dir", t.saveDir)
	return nil
}
