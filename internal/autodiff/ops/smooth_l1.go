package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// SmoothL1Op records the Smooth L1 (Huber) loss between a prediction
// and a target, averaged over all elements.
//
// Forward (per element, d = pred - target):
//
//	loss = 0.5 * d² / beta   if |d| < beta
//	loss = |d| - 0.5 * beta  otherwise
//
// Backward:
//
//	∂L/∂pred = (d / beta clamped to [-1, 1]) / numElements
//
// The quadratic region gives noise-prediction training a gentler slope
// near zero residual, while the linear region keeps outlier frames from
// dominating a batch. The target is treated as data and receives no
// gradient.
type SmoothL1Op struct {
	pred   *tensor.RawTensor
	target *tensor.RawTensor
	output *tensor.RawTensor // [1] mean loss
	beta   float64
}

// NewSmoothL1Op creates a new SmoothL1Op.
func NewSmoothL1Op(pred, target, output *tensor.RawTensor, beta float64) *SmoothL1Op {
	return &SmoothL1Op{
		pred:   pred,
		target: target,
		output: output,
		beta:   beta,
	}
}

// SmoothL1Forward computes the mean Smooth L1 loss as a [1] tensor.
func SmoothL1Forward(pred, target *tensor.RawTensor, beta float64, device tensor.Device) *tensor.RawTensor {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("smooth_l1: prediction shape %v != target shape %v", pred.Shape(), target.Shape()))
	}
	if beta <= 0 {
		panic(fmt.Sprintf("smooth_l1: beta must be positive, got %v", beta))
	}

	result, err := tensor.NewRaw(tensor.Shape{1}, pred.DType(), device)
	if err != nil {
		panic(fmt.Sprintf("smooth_l1: %v", err))
	}

	switch pred.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = float32(smoothL1Mean(pred.AsFloat32(), target.AsFloat32(), beta))
	case tensor.Float64:
		result.AsFloat64()[0] = smoothL1Mean(pred.AsFloat64(), target.AsFloat64(), beta)
	default:
		panic(fmt.Sprintf("smooth_l1: unsupported dtype %s", pred.DType()))
	}

	return result
}

func smoothL1Mean[T float32 | float64](pred, target []T, beta float64) float64 {
	var total float64
	for i := range pred {
		d := float64(pred[i]) - float64(target[i])
		if d < 0 {
			d = -d
		}
		if d < beta {
			total += 0.5 * d * d / beta
		} else {
			total += d - 0.5*beta
		}
	}
	return total / float64(len(pred))
}

// Inputs returns the differentiable inputs. The target is data, not a
// parameter, so only the prediction is listed.
func (op *SmoothL1Op) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.pred}
}

// Output returns the scalar loss tensor.
func (op *SmoothL1Op) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the prediction gradient.
func (op *SmoothL1Op) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	gradPred, err := tensor.NewRaw(op.pred.Shape(), op.pred.DType(), op.pred.Device())
	if err != nil {
		panic(fmt.Sprintf("smooth_l1 backward: %v", err))
	}

	g := scalarOf(outputGrad)

	switch op.pred.DType() {
	case tensor.Float32:
		smoothL1Grad(gradPred.AsFloat32(), op.pred.AsFloat32(), op.target.AsFloat32(), op.beta, g)
	case tensor.Float64:
		smoothL1Grad(gradPred.AsFloat64(), op.pred.AsFloat64(), op.target.AsFloat64(), op.beta, g)
	default:
		panic(fmt.Sprintf("smooth_l1 backward: unsupported dtype %s", op.pred.DType()))
	}

	return []*tensor.RawTensor{gradPred}
}

func smoothL1Grad[T float32 | float64](gradPred, pred, target []T, beta, outputGrad float64) {
	scale := outputGrad / float64(len(pred))
	for i := range pred {
		d := float64(pred[i]) - float64(target[i])
		var slope float64
		switch {
		case d <= -beta:
			slope = -1
		case d >= beta:
			slope = 1
		default:
			slope = d / beta
		}
		gradPred[i] = T(slope * scale)
	}
}
