package nn

import (
	"fmt"
	"math"

	"github.com/drift-ml/drift/internal/tensor"
)

// ScaledDotProductAttention computes attention scores using the scaled dot-product mechanism.
//
// This is the core attention mechanism used in transformers, implementing:
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k)) * V
//
// Where:
//   - Q (query): what information we're looking for [batch, heads, seq_q, head_dim]
//   - K (key): what information is available [batch, heads, seq_k, head_dim]
//   - V (value): the actual information to retrieve [batch, heads, seq_k, head_dim]
//   - mask: optional attention mask (additive, -inf for masked positions)
//   - scale: scaling factor (typically 1/sqrt(head_dim)), 0 for auto-compute
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(query, key, value)

	// Auto-compute scale if not provided
	qHeadDim := query.Shape()[3]
	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(qHeadDim)))
	}

	// 1. Compute attention scores: Q @ K^T using BatchMatMul
	// K^T: transpose last two dimensions [batch, heads, seq_k, head_dim] -> [batch, heads, head_dim, seq_k]
	kT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(kT)

	// 2. Scale
	scores = scores.MulScalar(scale)

	// 3. Apply mask (if provided)
	if mask != nil {
		scores = scores.Add(mask)
	}

	// 4. Softmax along last dimension (over keys)
	weights := scores.Softmax(-1)

	// 5. Compute output: weights @ V using BatchMatMul
	output := weights.BatchMatMul(value)

	return output, weights
}

// validateAttentionInputs validates the input tensors for attention.
func validateAttentionInputs[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
) {
	if len(query.Shape()) != 4 {
		panic("ScaledDotProductAttention: query must be 4D [batch, heads, seq_q, head_dim]")
	}
	if len(key.Shape()) != 4 {
		panic("ScaledDotProductAttention: key must be 4D [batch, heads, seq_k, head_dim]")
	}
	if len(value.Shape()) != 4 {
		panic("ScaledDotProductAttention: value must be 4D [batch, heads, seq_k, head_dim]")
	}

	// Q and K must have same head_dim
	qHeadDim := query.Shape()[3]
	kHeadDim := key.Shape()[3]
	if qHeadDim != kHeadDim {
		panic("ScaledDotProductAttention: query and key must have same head_dim")
	}

	// K and V must have same seq length
	kSeqLen := key.Shape()[2]
	vSeqLen := value.Shape()[2]
	if kSeqLen != vSeqLen {
		panic("ScaledDotProductAttention: key and value must have same seq length")
	}
}

// TransformerEncoderSA is a self-attention block over a square feature
// map.
//
// A [batch, channels, size, size] map is flattened to size*size tokens
// of dimension channels, then:
//
//	tokens ->
//	  LayerNorm -> MultiHeadAttention -> + tokens (residual)
//	  -> feed-forward -> + attention output (residual)
//	-> back to [batch, channels, size, size]
//
// The feed-forward stack is LayerNorm, Linear, LayerNorm, Linear with
// no activation between the projections.
//
// Forward takes a fixed spatial size chosen at construction, so one
// block serves exactly one resolution.
type TransformerEncoderSA[B tensor.Backend] struct {
	numChannels int
	size        int

	mha    *MultiHeadAttention[B]
	ln     *LayerNorm[B]
	ffSelf *Sequential[B]

	backend B
}

// NewTransformerEncoderSA creates a self-attention block for
// [batch, numChannels, size, size] inputs with the given head count.
func NewTransformerEncoderSA[B tensor.Backend](numChannels, size, numHeads int, backend B) *TransformerEncoderSA[B] {
	if numChannels <= 0 || size <= 0 {
		panic(fmt.Sprintf("attention block: invalid channels %d or size %d", numChannels, size))
	}
	return &TransformerEncoderSA[B]{
		numChannels: numChannels,
		size:        size,
		mha:         NewMultiHeadAttention[B](numChannels, numHeads, backend),
		ln:          NewLayerNorm(numChannels, 1e-5, backend),
		ffSelf: NewSequential[B](
			NewLayerNorm(numChannels, 1e-5, backend),
			NewLinear[B](numChannels, numChannels, backend),
			NewLayerNorm(numChannels, 1e-5, backend),
			NewLinear[B](numChannels, numChannels, backend),
		),
		backend: backend,
	}
}

// Forward applies self-attention over the flattened feature map.
//
// Input and output are both [batch, numChannels, size, size].
func (t *TransformerEncoderSA[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("attention block: expected 4D input [N,C,S,S], got %dD", len(shape)))
	}
	if shape[1] != t.numChannels || shape[2] != t.size || shape[3] != t.size {
		panic(fmt.Sprintf("attention block: expected [N,%d,%d,%d], got %v", t.numChannels, t.size, t.size, shape))
	}

	batch := shape[0]
	seqLen := t.size * t.size

	// [N, C, S, S] -> [N, C, S*S] -> [N, S*S, C]
	tokens := x.Reshape(batch, t.numChannels, seqLen).Transpose(0, 2, 1)

	normed := t.ln.Forward(tokens)
	attended := t.mha.Forward(normed, normed, normed, nil)
	attended = attended.Add(tokens)

	// The feed-forward stack contains Linear layers, which take 2D
	// input, so fold batch and sequence together around it.
	ff := t.ffSelf.Forward(attended.Reshape(batch*seqLen, t.numChannels))
	out := ff.Reshape(batch, seqLen, t.numChannels).Add(attended)

	// [N, S*S, C] -> [N, C, S*S] -> [N, C, S, S]
	return out.Transpose(0, 2, 1).Reshape(batch, t.numChannels, t.size, t.size)
}

// NumChannels returns the token dimension.
func (t *TransformerEncoderSA[B]) NumChannels() int {
	return t.numChannels
}

// Size returns the spatial extent this block accepts.
func (t *TransformerEncoderSA[B]) Size() int {
	return t.size
}

// Parameters returns the parameters of the norm, the attention and the
// feed-forward stack.
func (t *TransformerEncoderSA[B]) Parameters() []*Parameter[B] {
	params := t.ln.Parameters()
	params = append(params, t.mha.Parameters()...)
	params = append(params, t.ffSelf.Parameters()...)
	return params
}

// StateDict returns the block state under ln., mha. and ff_self.
// prefixes.
func (t *TransformerEncoderSA[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	prefixStateDict(stateDict, "ln.", t.ln.StateDict())
	prefixStateDict(stateDict, "mha.", t.mha.StateDict())
	prefixStateDict(stateDict, "ff_self.", t.ffSelf.StateDict())
	return stateDict
}

// LoadStateDict restores the block state.
func (t *TransformerEncoderSA[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := t.ln.LoadStateDict(subStateDict(stateDict, "ln.")); err != nil {
		return fmt.Errorf("attention block ln: %w", err)
	}
	if err := t.mha.LoadStateDict(subStateDict(stateDict, "mha.")); err != nil {
		return fmt.Errorf("attention block mha: %w", err)
	}
	if err := t.ffSelf.LoadStateDict(subStateDict(stateDict, "ff_self.")); err != nil {
		return fmt.Errorf("attention block ff_self: %w", err)
	}
	return nil
}
