package main

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/drift-ml/drift/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	var checkpoint string

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the header and tensor directory of a .drift file",
		Run: func(cmd *cobra.Command, args []string) {
			runInspect(checkpoint)
		},
	}

	inspectCmd.Flags().StringVar(&checkpoint, "checkpoint", "", "Path to a .drift file (required)")

	return inspectCmd
}

func runInspect(path string) {
	if path == "" {
		log.Fatalf("inspect: --checkpoint is required")
	}

	reader, err := serialization.NewDriftReader(path)
	if err != nil {
		log.Fatalf("inspect: failed to open %s: %v", path, err)
	}
	defer reader.Close()

	header := reader.Header()

	fmt.Printf("file:           %s\n", path)
	fmt.Printf("format version: %d\n", header.FormatVersion)
	fmt.Printf("drift version:  %s\n", header.DriftVersion)
	fmt.Printf("model type:     %s\n", header.ModelType)
	fmt.Printf("created at:     %s\n", header.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	if meta := header.CheckpointMeta; meta != nil && meta.IsCheckpoint {
		fmt.Println()
		fmt.Printf("checkpoint:     epoch %d, step %d, loss %.6f\n", meta.Epoch, meta.Step, meta.Loss)
		if meta.OptimizerType != "" {
			fmt.Printf("optimizer:      %s %v\n", meta.OptimizerType, meta.OptimizerConfig)
		}
		if len(meta.SchedulerState) > 0 {
			fmt.Printf("scheduler:      %v\n", meta.SchedulerState)
		}
		if len(meta.ScalerState) > 0 {
			fmt.Printf("scaler:         %v\n", meta.ScalerState)
		}
		printStringMap("training meta", sortedAnyMap(meta.TrainingMeta))
	}

	printStringMap("metadata", sortedStringMap(header.Metadata))

	fmt.Println()
	fmt.Printf("tensors (%d):\n", len(header.Tensors))
	var totalBytes int64
	for _, tm := range header.Tensors {
		fmt.Printf("  %-48s %-8s %-20v %10d bytes\n", tm.Name, tm.DType, tm.Shape, tm.Size)
		totalBytes += tm.Size
	}
	fmt.Printf("total tensor data: %d bytes\n", totalBytes)
}

func printStringMap(label string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%s:\n", label)
	for _, line := range lines {
		fmt.Printf("  %s\n", line)
	}
}

func sortedStringMap(m map[string]string) []string {
	lines := make([]string, 0, len(m))
	for k, v := range m {
		lines = append(lines, fmt.Sprintf("%s = %s", k, v))
	}
	sort.Strings(lines)
	return lines
}

func sortedAnyMap(m map[string]any) []string {
	lines := make([]string, 0, len(m))
	for k, v := range m {
		lines = append(lines, fmt.Sprintf("%s = %v", k, v))
	}
	sort.Strings(lines)
	return lines
}
