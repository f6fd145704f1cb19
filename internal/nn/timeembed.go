package nn

import (
	"fmt"
	"math"

	"github.com/drift-ml/drift/internal/tensor"
)

// PositionalTimeEmbedding encodes diffusion timesteps with fixed
// sinusoidal features.
//
// This is the encoding from "Attention is All You Need" (Vaswani et
// al., 2017) applied to timesteps instead of token positions:
//
//	PE(t, 2i)   = sin(t / 10000^(2i/d))
//	PE(t, 2i+1) = cos(t / 10000^(2i/d))
//
// The whole table is pre-computed once for timesteps 0..capacity-1 and
// looked up per batch, so Forward is a gather. The table is fixed, not
// a learned parameter, and an optional dropout regularizes the
// embedding during training.
//
// Example:
//
//	embed := nn.NewPositionalTimeEmbedding(500, 256, backend)
//	features := embed.Forward([]int{17, 340}) // [2, 256]
type PositionalTimeEmbedding[B tensor.Backend] struct {
	table    *tensor.Tensor[float32, B] // [capacity, dim] fixed rows
	dropout  *Dropout[B]
	capacity int
	dim      int
	backend  B
}

// NewPositionalTimeEmbedding pre-computes sinusoidal embeddings for
// timesteps 0..capacity-1 at the given dimension. Dropout probability
// is 0.1; pass a module in evaluation mode to disable it.
func NewPositionalTimeEmbedding[B tensor.Backend](capacity, dim int, backend B) *PositionalTimeEmbedding[B] {
	if capacity <= 0 {
		panic(fmt.Sprintf("time embedding: capacity must be positive, got %d", capacity))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("time embedding: dim must be positive, got %d", dim))
	}

	rows := make([]float32, capacity*dim)
	for pos := 0; pos < capacity; pos++ {
		for i := 0; i < dim; i++ {
			angle := float64(pos) / math.Pow(10000.0, float64(2*(i/2))/float64(dim))

			idx := pos*dim + i
			if i%2 == 0 {
				rows[idx] = float32(math.Sin(angle))
			} else {
				rows[idx] = float32(math.Cos(angle))
			}
		}
	}

	table, err := tensor.FromSlice[float32, B](rows, tensor.Shape{capacity, dim}, backend)
	if err != nil {
		panic(fmt.Sprintf("time embedding: failed to create table: %v", err))
	}

	return &PositionalTimeEmbedding[B]{
		table:    table,
		dropout:  NewDropout[B](0.1),
		capacity: capacity,
		dim:      dim,
		backend:  backend,
	}
}

// Forward looks up the embedding rows for a batch of timesteps.
//
// Returns [len(timesteps), dim]. Panics when a timestep falls outside
// [0, capacity).
func (p *PositionalTimeEmbedding[B]) Forward(timesteps []int) *tensor.Tensor[float32, B] {
	if len(timesteps) == 0 {
		panic("time embedding: empty timestep batch")
	}

	indices, err := tensor.NewRaw(tensor.Shape{len(timesteps)}, tensor.Int64, p.backend.Device())
	if err != nil {
		panic(err)
	}
	idxData := indices.AsInt64()
	for i, t := range timesteps {
		if t < 0 || t >= p.capacity {
			panic(fmt.Sprintf("time embedding: timestep %d out of range [0, %d)", t, p.capacity))
		}
		idxData[i] = int64(t)
	}

	rows := p.backend.Embedding(p.table.Raw(), indices)
	return p.dropout.Forward(tensor.New[float32, B](rows, p.backend))
}

// SetTraining toggles the embedding dropout.
func (p *PositionalTimeEmbedding[B]) SetTraining(training bool) {
	p.dropout.SetTraining(training)
}

// Capacity returns the number of pre-computed timesteps.
func (p *PositionalTimeEmbedding[B]) Capacity() int {
	return p.capacity
}

// Dim returns the embedding dimension.
func (p *PositionalTimeEmbedding[B]) Dim() int {
	return p.dim
}

// Parameters returns nil: the table is fixed.
func (p *PositionalTimeEmbedding[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns nil: the table is deterministic from capacity and
// dim, so there is nothing to persist.
func (p *PositionalTimeEmbedding[B]) StateDict() map[string]*tensor.RawTensor {
	return nil
}

// LoadStateDict is a no-op.
func (p *PositionalTimeEmbedding[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}
