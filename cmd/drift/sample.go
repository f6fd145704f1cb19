package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/diffusion"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/serialization"
	"github.com/drift-ml/drift/internal/train"
)

// sampleUpscale matches the factor used for training snapshots.
const sampleUpscale = 2

type sampleOptions struct {
	checkpoint    string
	emaCheckpoint string
	out           string
	count         int
	gif           bool
	seed          int64
}

func newSampleCmd() *cobra.Command {
	var opts sampleOptions

	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample clips from a trained checkpoint",
		Long: `Sample clips from a trained checkpoint.

Clip geometry and chain length are read from the checkpoint header;
checkpoints written by older runs without that metadata fall back to
the standard configuration. Output files take --out as a path prefix:
<out>.jpg for the contact sheet and <out>.gif with --gif, plus
<out>_ema.* when --ema-checkpoint is given.`,
		Run: func(cmd *cobra.Command, args []string) {
			runSample(opts)
		},
	}

	sampleCmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Checkpoint to sample from (required)")
	sampleCmd.Flags().StringVar(&opts.emaCheckpoint, "ema-checkpoint", "", "EMA checkpoint to sample alongside")
	sampleCmd.Flags().StringVar(&opts.out, "out", "samples/clips", "Output path prefix")
	sampleCmd.Flags().IntVar(&opts.count, "count", 4, "Number of clips to sample")
	sampleCmd.Flags().BoolVar(&opts.gif, "gif", false, "Also write animated GIFs")
	sampleCmd.Flags().Int64Var(&opts.seed, "seed", 1, "Seed for the sampling noise")

	return sampleCmd
}

func runSample(opts sampleOptions) {
	if opts.checkpoint == "" {
		log.Fatalf("sample: --checkpoint is required")
	}
	if opts.count <= 0 {
		log.Fatalf("sample: --count must be positive, got %d", opts.count)
	}

	if dir := filepath.Dir(opts.out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("sample: failed to create output directory: %v", err)
		}
	}

	geom := readRunGeometry(opts.checkpoint)
	backend := cpu.New()

	schedule, err := diffusion.NewSchedule(geom.noiseSteps,
		diffusion.DefaultBetaStart, diffusion.DefaultBetaEnd, diffusion.ScheduleLinear)
	if err != nil {
		log.Fatalf("sample: %v", err)
	}
	process := diffusion.NewProcess(schedule, diffusion.ProcessConfig{
		Channels: geom.channels,
		Frames:   geom.frames,
		Size:     geom.size,
		Seed:     opts.seed,
	}, backend)

	sampleOne(opts.checkpoint, opts.out, geom, process, backend, opts.count, opts.gif)
	if opts.emaCheckpoint != "" {
		sampleOne(opts.emaCheckpoint, opts.out+"_ema", geom, process, backend, opts.count, opts.gif)
	}
}

// sampleOne restores one network and writes its sampled clips under
// the given path prefix.
func sampleOne(
	checkpoint, prefix string,
	geom runGeometry,
	process *diffusion.Process[*cpu.CPUBackend],
	backend *cpu.CPUBackend,
	count int,
	gif bool,
) {
	unetCfg := nn.DefaultUNet3DConfig()
	unetCfg.InChannels = geom.channels
	unetCfg.OutChannels = geom.channels
	unetCfg.TimeCapacity = geom.noiseSteps
	model := nn.NewUNet3D(unetCfg, backend)

	if _, err := nn.LoadCheckpoint(checkpoint, backend, model, nil, nil, nil); err != nil {
		log.Fatalf("sample: failed to load %s: %v", checkpoint, err)
	}

	clips := process.ReverseSample(model, count, sampleUpscale)

	grid := prefix + ".jpg"
	if err := train.SaveImageGrid(grid, clips); err != nil {
		log.Fatalf("sample: %v", err)
	}
	log.Printf("wrote %s", grid)

	if gif {
		animation := prefix + ".gif"
		if err := train.SaveGIF(animation, clips); err != nil {
			log.Fatalf("sample: %v", err)
		}
		log.Printf("wrote %s", animation)
	}
}

// runGeometry is the clip layout a checkpoint was trained with.
type runGeometry struct {
	size       int
	channels   int
	frames     int
	noiseSteps int
}

// readRunGeometry pulls the clip layout out of the checkpoint header.
// Values missing from the header fall back to the standard run
// configuration.
func readRunGeometry(path string) runGeometry {
	defaults := train.DefaultTrainerConfig()
	geom := runGeometry{
		size:       defaults.ImageSize,
		channels:   defaults.ImageChannels,
		frames:     defaults.NumFrames,
		noiseSteps: defaults.NoiseSteps,
	}

	reader, err := serialization.NewDriftReader(path)
	if err != nil {
		log.Fatalf("sample: failed to open %s: %v", path, err)
	}
	defer reader.Close()

	header := reader.Header()
	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		log.Fatalf("sample: %s is not a checkpoint", path)
	}

	meta := header.CheckpointMeta.TrainingMeta
	geom.size = metaInt(meta, "image_size", geom.size)
	geom.channels = metaInt(meta, "image_channels", geom.channels)
	geom.frames = metaInt(meta, "num_frames", geom.frames)
	geom.noiseSteps = metaInt(meta, "noise_steps", geom.noiseSteps)
	return geom
}

// metaInt reads an integer out of checkpoint metadata. JSON decoding
// turns numbers into float64, so both forms are accepted.
func metaInt(meta map[string]any, key string, fallback int) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
