package main

import (
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/serialization"
	"github.com/drift-ml/drift/internal/tensor"
)

type exportOptions struct {
	checkpoint string
	out        string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Convert model weights from a .drift file to safetensors",
		Long: `Convert model weights from a .drift file to safetensors.

Only model tensors are exported; optimizer state is training-only and
is skipped.`,
		Run: func(cmd *cobra.Command, args []string) {
			runExport(opts)
		},
	}

	exportCmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Path to a .drift file (required)")
	exportCmd.Flags().StringVar(&opts.out, "out", "", "Output .safetensors path (required)")

	return exportCmd
}

func runExport(opts exportOptions) {
	if opts.checkpoint == "" {
		log.Fatalf("export: --checkpoint is required")
	}
	if opts.out == "" {
		log.Fatalf("export: --out is required")
	}

	reader, err := serialization.NewDriftReader(opts.checkpoint)
	if err != nil {
		log.Fatalf("export: failed to open %s: %v", opts.checkpoint, err)
	}
	defer reader.Close()

	stateDict, err := reader.ReadStateDict(cpu.New())
	if err != nil {
		log.Fatalf("export: failed to read tensors: %v", err)
	}

	weights := make(map[string]*tensor.RawTensor, len(stateDict))
	for name, raw := range stateDict {
		if strings.HasPrefix(name, "optimizer.") {
			continue
		}
		weights[name] = raw
	}
	if len(weights) == 0 {
		log.Fatalf("export: %s contains no model tensors", opts.checkpoint)
	}

	header := reader.Header()
	metadata := map[string]string{
		"format":        "drift",
		"model_type":    header.ModelType,
		"drift_version": header.DriftVersion,
	}

	if err := serialization.WriteSafeTensors(opts.out, weights, metadata); err != nil {
		log.Fatalf("export: %v", err)
	}
	log.Printf("wrote %d tensors to %s", len(weights), opts.out)
}
