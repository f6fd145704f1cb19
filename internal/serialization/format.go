package serialization

import (
	"crypto/sha256"
	"time"

	"github.com/drift-ml/drift/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "DRFT"
	FormatVersion   = 2    // Fixed 64-byte header with SHA-256 checksum
	HeaderAlignment = 64   // Tensor data alignment
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt64   = "int64"
	DTypeUint8   = "uint8"
)

// Flags for the .drift format.
const (
	FlagCompressed   uint32 = 1 << 0 // bit 0: gzip compression (reserved)
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .drift file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .drift format
	DriftVersion   string            `json:"drift_version"`        // Version of Drift that created this file
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "UNet3D")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
//
// Scheduler and scaler states are flat float dictionaries so the
// format stays independent of the concrete scheduler or scaler types.
type CheckpointMeta struct {
	IsCheckpoint    bool               `json:"is_checkpoint"`              // Whether this is a checkpoint file
	Epoch           int                `json:"epoch"`                      // Training epoch number
	Step            int64              `json:"step"`                       // Training step number
	Loss            float64            `json:"loss"`                       // Loss value at checkpoint
	OptimizerType   string             `json:"optimizer_type,omitempty"`   // Optimizer type ("Adam", "SGD", ...)
	OptimizerConfig map[string]any     `json:"optimizer_config,omitempty"` // Optimizer hyperparameters
	SchedulerState  map[string]float64 `json:"scheduler_state,omitempty"`  // LR scheduler state
	ScalerState     map[string]float64 `json:"scaler_state,omitempty"`     // Gradient scaler state
	TrainingMeta    map[string]any     `json:"training_meta,omitempty"`    // Additional training metadata
}

// TensorMeta describes a tensor in the .drift file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "down1.1.0.weight")
	DType  string `json:"dtype"`  // Data type (e.g., "float32")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares a computed checksum against the stored one.
// Returns ErrChecksumMismatch if they differ.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// dtypeToString converts tensor.DataType to string representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Int64:
		return DTypeInt64
	case tensor.Uint8:
		return DTypeUint8
	default:
		return "unknown"
	}
}

// stringToDtype converts string representation to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeInt64:
		return tensor.Int64, true
	case DTypeUint8:
		return tensor.Uint8, true
	default:
		return 0, false
	}
}
