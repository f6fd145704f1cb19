package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MultiHeadAttention implements the multi-head attention mechanism.
//
// Architecture:
//
//	MHA(Q, K, V) = Concat(head_1, ..., head_h) * W_O
//	head_i = SDPA(Q*W_Q_i, K*W_K_i, V*W_V_i)
//
// The self-attention block of the denoising network runs this over
// flattened feature-map tokens; query, key and value are then the same
// tensor.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	mha := nn.NewMultiHeadAttention[B](128, 4, backend)
//	output := mha.Forward(x, x, x, nil) // Self-attention
type MultiHeadAttention[B tensor.Backend] struct {
	WQ       *Linear[B] // Query projection [embed_dim, embed_dim]
	WK       *Linear[B] // Key projection [embed_dim, embed_dim]
	WV       *Linear[B] // Value projection [embed_dim, embed_dim]
	WO       *Linear[B] // Output projection [embed_dim, embed_dim]
	NumHeads int
	HeadDim  int
	EmbedDim int
	backend  B
}

// NewMultiHeadAttention creates a new multi-head attention module.
//
// embedDim must be divisible by numHeads; the head dimension is
// embedDim / numHeads.
func NewMultiHeadAttention[B tensor.Backend](
	embedDim, numHeads int,
	backend B,
) *MultiHeadAttention[B] {
	if embedDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}
	headDim := embedDim / numHeads

	return &MultiHeadAttention[B]{
		WQ:       NewLinear[B](embedDim, embedDim, backend),
		WK:       NewLinear[B](embedDim, embedDim, backend),
		WV:       NewLinear[B](embedDim, embedDim, backend),
		WO:       NewLinear[B](embedDim, embedDim, backend),
		NumHeads: numHeads,
		HeadDim:  headDim,
		EmbedDim: embedDim,
		backend:  backend,
	}
}

// Forward computes multi-head attention.
//
// Args:
//   - query: Query tensor [batch, seq_q, embed_dim]
//   - key: Key tensor [batch, seq_k, embed_dim]
//   - value: Value tensor [batch, seq_k, embed_dim]
//   - mask: Optional additive attention mask [batch, 1, seq_q, seq_k] or nil
//
// Returns:
//   - output: [batch, seq_q, embed_dim]
//
// For self-attention, pass the same tensor for query, key, and value.
func (m *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	output, _ := m.ForwardWithWeights(query, key, value, mask)
	return output
}

// ForwardWithWeights computes multi-head attention and also returns the
// attention weights, shaped [batch, num_heads, seq_q, seq_k], for
// visualization or analysis.
func (m *MultiHeadAttention[B]) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	batch := query.Shape()[0]
	seqQ := query.Shape()[1]
	seqK := key.Shape()[1]

	// 1. Project Q, K, V through linear layers
	// Linear expects 2D input [batch*seq, embed_dim]
	q := m.projectAndReshape(query, m.WQ, batch, seqQ)
	k := m.projectAndReshape(key, m.WK, batch, seqK)
	v := m.projectAndReshape(value, m.WV, batch, seqK)

	// 2. Reshape to [batch, seq, num_heads, head_dim] then transpose to [batch, num_heads, seq, head_dim]
	q = q.Reshape(batch, seqQ, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	k = k.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
	v = v.Reshape(batch, seqK, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)

	// 3. Scaled dot-product attention (uses BatchMatMul internally)
	attnOut, weights := ScaledDotProductAttention(q, k, v, mask, 0)

	// 4. Transpose back and reshape to [batch, seq_q, embed_dim]
	attnOut = attnOut.Transpose(0, 2, 1, 3).Reshape(batch, seqQ, m.EmbedDim)

	// 5. Output projection
	attnOut2D := attnOut.Reshape(batch*seqQ, m.EmbedDim)
	output := m.WO.Forward(attnOut2D)
	output = output.Reshape(batch, seqQ, m.EmbedDim)

	return output, weights
}

// projectAndReshape is a helper that reshapes 3D input to 2D, applies Linear, and reshapes back to 3D.
func (m *MultiHeadAttention[B]) projectAndReshape(
	input *tensor.Tensor[float32, B],
	linear *Linear[B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	// Reshape [batch, seq, embed_dim] -> [batch*seq, embed_dim]
	input2D := input.Reshape(batch*seq, m.EmbedDim)

	// Apply linear projection
	output2D := linear.Forward(input2D)

	// Reshape back [batch*seq, embed_dim] -> [batch, seq, embed_dim]
	return output2D.Reshape(batch, seq, m.EmbedDim)
}

// Parameters returns all trainable parameters (WQ, WK, WV, WO weights and biases).
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 8)
	params = append(params, m.WQ.Parameters()...)
	params = append(params, m.WK.Parameters()...)
	params = append(params, m.WV.Parameters()...)
	params = append(params, m.WO.Parameters()...)
	return params
}

// StateDict returns the projection states under wq., wk., wv. and wo.
// prefixes.
func (m *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	prefixStateDict(stateDict, "wq.", m.WQ.StateDict())
	prefixStateDict(stateDict, "wk.", m.WK.StateDict())
	prefixStateDict(stateDict, "wv.", m.WV.StateDict())
	prefixStateDict(stateDict, "wo.", m.WO.StateDict())
	return stateDict
}

// LoadStateDict restores all four projections.
func (m *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	projections := []struct {
		prefix string
		layer  *Linear[B]
	}{
		{"wq.", m.WQ},
		{"wk.", m.WK},
		{"wv.", m.WV},
		{"wo.", m.WO},
	}
	for _, p := range projections {
		if err := p.layer.LoadStateDict(subStateDict(stateDict, p.prefix)); err != nil {
			return fmt.Errorf("mha %s: %w", p.prefix, err)
		}
	}
	return nil
}
