package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// The loss is composed from recorded tensor operations, so calling
// Backward on the result propagates gradients into the predictions.
//
// Example:
//
//	mse := nn.NewMSELoss[Backend](backend)
//	predictions := model.Forward(input, timesteps)
//	loss := mse.Forward(predictions, targets)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes the MSE loss.
//
// predictions and targets must share a shape. Returns a scalar loss
// tensor of shape [1].
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)

	return squared.Sum().MulScalar(1.0 / float32(predictions.NumElements()))
}

// Parameters returns nil: loss functions have no trainable parameters.
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// SmoothL1Backend is the backend capability SmoothL1Loss requires.
type SmoothL1Backend interface {
	SmoothL1(pred, target *tensor.RawTensor, beta float64) *tensor.RawTensor
}

// SmoothL1Loss computes the Smooth L1 (Huber) loss.
//
// Per element, with d = pred - target:
//
//	loss = 0.5 * d² / beta   if |d| < beta
//	loss = |d| - 0.5 * beta  otherwise
//
// The quadratic region keeps gradients small near zero while the
// linear region caps the influence of outliers. This is the default
// training objective for noise prediction.
type SmoothL1Loss[B tensor.Backend] struct {
	beta    float64
	backend B
}

// NewSmoothL1Loss creates a Smooth L1 loss with the standard transition
// point beta = 1.
func NewSmoothL1Loss[B tensor.Backend](backend B) *SmoothL1Loss[B] {
	return &SmoothL1Loss[B]{
		beta:    1.0,
		backend: backend,
	}
}

// Forward computes the mean Smooth L1 loss over all elements.
//
// Returns a scalar loss tensor of shape [1].
func (s *SmoothL1Loss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("SmoothL1Loss: predictions and targets must have the same shape")
	}

	smoothBackend, ok := any(s.backend).(SmoothL1Backend)
	if !ok {
		panic("SmoothL1Loss: backend must implement SmoothL1 operation (use autodiff.AutodiffBackend)")
	}

	result := smoothBackend.SmoothL1(predictions.Raw(), targets.Raw(), s.beta)
	return tensor.New[float32, B](result, s.backend)
}

// Beta returns the transition point between the quadratic and linear
// regions.
func (s *SmoothL1Loss[B]) Beta() float64 {
	return s.beta
}

// Parameters returns nil: loss functions have no trainable parameters.
func (s *SmoothL1Loss[B]) Parameters() []*Parameter[B] {
	return nil
}

// Reduction modes accepted by NewNCCLoss.
const (
	ReductionMean = "mean"
	ReductionSum  = "sum"
)

// nccEpsilon guards the correlation quotient against zero-variance
// rows.
const nccEpsilon = 1e-8

// NCCLoss computes a normalized cross-correlation score between two
// batches.
//
// Each batch element is flattened to a row, both rows are centered by
// their means, and the element-wise product of the centered rows is
// normalized by the product of their standard deviations:
//
//	ncc[i,j] = (xdev[i,j]*ydev[i,j] + eps/m) / (sqrt(xx[i]*yy[i]) + eps)
//
// With reduction "mean" the per-row sums are averaged over the batch;
// with "sum" everything is summed. The result is returned as-is: it
// grows with correlation, so minimizing it pushes the inputs apart.
// Pair it with a sign flip when correlation should be rewarded.
type NCCLoss[B tensor.Backend] struct {
	reduction string
	backend   B
}

// NewNCCLoss creates an NCC loss with the given reduction, one of
// ReductionMean or ReductionSum.
func NewNCCLoss[B tensor.Backend](reduction string, backend B) (*NCCLoss[B], error) {
	switch reduction {
	case ReductionMean, ReductionSum:
	default:
		return nil, fmt.Errorf("ncc: unsupported reduction %q (use %q or %q)", reduction, ReductionMean, ReductionSum)
	}
	return &NCCLoss[B]{
		reduction: reduction,
		backend:   backend,
	}, nil
}

// Forward computes the correlation score.
//
// predictions and targets must share a shape with at least one leading
// batch dimension. Returns a scalar tensor of shape [1].
func (n *NCCLoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("NCCLoss: predictions and targets must have the same shape")
	}
	shape := predictions.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("NCCLoss: input must have a batch dimension, got shape %v", shape))
	}

	batch := shape[0]
	rowLen := predictions.NumElements() / batch

	x := predictions.Reshape(batch, rowLen)
	y := targets.Reshape(batch, rowLen)

	xDev := x.Sub(x.MeanDim(1, true))
	yDev := y.Sub(y.MeanDim(1, true))

	devXY := xDev.Mul(yDev)
	xxSum := xDev.Mul(xDev).SumDim(1, true)
	yySum := yDev.Mul(yDev).SumDim(1, true)

	numer := devXY.AddScalar(float32(nccEpsilon / float64(rowLen)))
	denom := xxSum.Mul(yySum).Sqrt().AddScalar(nccEpsilon)
	ncc := numer.Div(denom)

	if n.reduction == ReductionSum {
		return ncc.Sum()
	}
	return ncc.SumDim(1, false).Sum().MulScalar(1.0 / float32(batch))
}

// Reduction returns the configured reduction mode.
func (n *NCCLoss[B]) Reduction() string {
	return n.reduction
}

// Parameters returns nil: loss functions have no trainable parameters.
func (n *NCCLoss[B]) Parameters() []*Parameter[B] {
	return nil
}
