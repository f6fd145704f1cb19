package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/dataset"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/train"
)

type trainOptions struct {
	data      string
	out       string
	runName   string
	resume    string
	resumeEMA string

	epochs     int
	batchSize  int
	accum      int
	lr         float64
	noiseSteps int
	saveEvery  int
	size       int
	frames     int
	channels   int
	loss       string
	seed       int64
	fp16       bool
}

func newTrainCmd() *cobra.Command {
	var opts trainOptions

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a video diffusion model on a clip archive",
		Run: func(cmd *cobra.Command, args []string) {
			runTrain(opts)
		},
	}

	defaults := train.DefaultTrainerConfig()

	trainCmd.Flags().StringVar(&opts.data, "data", "", "Path to the .npy clip archive (required)")
	trainCmd.Flags().StringVar(&opts.out, "out", "runs", "Base directory for run artifacts")
	trainCmd.Flags().StringVar(&opts.runName, "run-name", defaults.RunName, "Subdirectory of --out holding this run")
	trainCmd.Flags().StringVar(&opts.resume, "resume", "", "Checkpoint to resume training from")
	trainCmd.Flags().StringVar(&opts.resumeEMA, "resume-ema", "", "EMA checkpoint to restore the shadow model from")
	trainCmd.Flags().IntVar(&opts.epochs, "epochs", defaults.NumEpochs, "Number of training epochs")
	trainCmd.Flags().IntVar(&opts.batchSize, "batch-size", defaults.BatchSize, "Clips per batch")
	trainCmd.Flags().IntVar(&opts.accum, "accum", defaults.AccumulationIters, "Batches accumulated per optimizer step")
	trainCmd.Flags().Float64Var(&opts.lr, "lr", float64(defaults.LearningRate), "Learning rate")
	trainCmd.Flags().IntVar(&opts.noiseSteps, "noise-steps", defaults.NoiseSteps, "Diffusion chain length")
	trainCmd.Flags().IntVar(&opts.saveEvery, "save-every", defaults.SaveEvery, "Snapshot period in batches")
	trainCmd.Flags().IntVar(&opts.size, "size", defaults.ImageSize, "Frame height and width after preparation")
	trainCmd.Flags().IntVar(&opts.frames, "frames", defaults.NumFrames, "Frames per clip after truncation")
	trainCmd.Flags().IntVar(&opts.channels, "channels", defaults.ImageChannels, "Color channels per frame")
	trainCmd.Flags().StringVar(&opts.loss, "loss", defaults.Loss, "Training objective: smooth_l1 or ncc")
	trainCmd.Flags().Int64Var(&opts.seed, "seed", defaults.Seed, "Seed for noise and timestep draws")
	trainCmd.Flags().BoolVar(&opts.fp16, "fp16", false, "Enable mixed-precision gradient scaling")

	return trainCmd
}

func runTrain(opts trainOptions) {
	if opts.data == "" {
		log.Fatalf("train: --data is required")
	}

	cfg := train.DefaultTrainerConfig()
	cfg.OutDir = opts.out
	cfg.RunName = opts.runName
	cfg.NumEpochs = opts.epochs
	cfg.BatchSize = opts.batchSize
	cfg.AccumulationIters = opts.accum
	cfg.LearningRate = float32(opts.lr)
	cfg.NoiseSteps = opts.noiseSteps
	cfg.SaveEvery = opts.saveEvery
	cfg.ImageSize = opts.size
	cfg.NumFrames = opts.frames
	cfg.ImageChannels = opts.channels
	cfg.Loss = opts.loss
	cfg.Seed = opts.seed
	cfg.FP16 = opts.fp16

	backend := autodiff.New(cpu.New())

	data, err := dataset.Load(opts.data, dataset.Config{NumFrames: cfg.NumFrames}, backend)
	if err != nil {
		log.Fatalf("train: failed to load dataset: %v", err)
	}

	unetCfg := nn.DefaultUNet3DConfig()
	unetCfg.InChannels = cfg.ImageChannels
	unetCfg.OutChannels = cfg.ImageChannels
	unetCfg.TimeCapacity = cfg.NoiseSteps
	model := nn.NewUNet3D(unetCfg, backend)
	emaModel := nn.NewUNet3D(unetCfg, backend)

	trainer, err := train.NewTrainer(cfg, model, emaModel, data, backend)
	if err != nil {
		log.Fatalf("train: failed to build trainer: %v", err)
	}

	if opts.resume != "" {
		if err := trainer.Resume(opts.resume); err != nil {
			log.Fatalf("train: %v", err)
		}
	}
	if opts.resumeEMA != "" {
		if err := trainer.ResumeEMA(opts.resumeEMA); err != nil {
			log.Fatalf("train: %v", err)
		}
	}

	if err := trainer.Train(); err != nil {
		log.Fatalf("train: %v", err)
	}
}
