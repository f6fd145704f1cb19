package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// BatchNorm3D applies Batch Normalization over a 5D input.
//
// Formula: Y = gamma * (X - mean) / sqrt(var + eps) + beta
//
// During training the mean and variance are computed per channel over
// the batch, frame, height and width axes, and exponential running
// estimates of both are updated. During evaluation the running
// estimates are used instead, so single samples normalize consistently.
//
// Input shape:  [batch, channels, frames, height, width]
// Output shape: same as input
//
// Every convolution in the denoising network is followed by BatchNorm3D
// before its ReLU.
//
// Example:
//
//	norm := nn.NewBatchNorm3D(64, backend)
//	output := norm.Forward(features) // [N, 64, F, H, W] -> same shape
type BatchNorm3D[B tensor.Backend] struct {
	numFeatures int
	epsilon     float32
	momentum    float32
	training    bool

	gamma *Parameter[B] // learnable scale [C]
	beta  *Parameter[B] // learnable shift [C]

	runningMean *tensor.RawTensor // per-channel mean estimate [C]
	runningVar  *tensor.RawTensor // per-channel variance estimate [C]

	backend B
}

// NewBatchNorm3D creates a new BatchNorm3D layer.
//
// Gamma starts at ones and beta at zeros, so the layer is initially an
// identity up to normalization. The running mean starts at zero and the
// running variance at one. Epsilon is 1e-5 and the running-estimate
// momentum 0.1.
func NewBatchNorm3D[B tensor.Backend](numFeatures int, backend B) *BatchNorm3D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm3d: invalid feature count %d", numFeatures))
	}

	gamma := tensor.Ones[float32](tensor.Shape{numFeatures}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{numFeatures}, backend)

	runningMean, err := tensor.NewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}
	runningVar, err := tensor.NewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}
	for i := range runningVar.AsFloat32() {
		runningVar.AsFloat32()[i] = 1.0
	}

	return &BatchNorm3D[B]{
		numFeatures: numFeatures,
		epsilon:     1e-5,
		momentum:    0.1,
		training:    true,
		gamma:       NewParameter("gamma", gamma),
		beta:        NewParameter("beta", beta),
		runningMean: runningMean,
		runningVar:  runningVar,
		backend:     backend,
	}
}

// Forward applies batch normalization.
//
// Input: [batch, channels, frames, height, width]
// Output: same shape.
//
// In training mode the per-channel batch statistics are part of the
// recorded computation, so gradients flow through the normalization
// itself, and the running estimates are updated as a side effect. In
// evaluation mode the stored running estimates normalize the input.
func (bn *BatchNorm3D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("batchnorm3d: expected 5D input [N,C,F,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm3d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	var normalized *tensor.Tensor[float32, B]
	if bn.training {
		// Per-channel mean over batch, frame, height and width axes.
		// Chained single-axis means compose to the full mean because
		// every group has the same size.
		mean := x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true).MeanDim(4, true)
		centered := x.Sub(mean)
		variance := centered.Mul(centered).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true).MeanDim(4, true)

		bn.updateRunningStats(mean.Raw().AsFloat32(), variance.Raw().AsFloat32(), shape)

		normalized = centered.Mul(variance.AddScalar(bn.epsilon).Rsqrt())
	} else {
		mean := bn.statTensor(bn.runningMean)
		variance := bn.statTensor(bn.runningVar)
		normalized = x.Sub(mean).Mul(variance.AddScalar(bn.epsilon).Rsqrt())
	}

	gammaReshaped := bn.gamma.Tensor().Reshape(1, bn.numFeatures, 1, 1, 1)
	betaReshaped := bn.beta.Tensor().Reshape(1, bn.numFeatures, 1, 1, 1)

	return normalized.Mul(gammaReshaped).Add(betaReshaped)
}

// updateRunningStats folds the batch statistics into the running
// estimates. The running variance uses the unbiased batch variance,
// while normalization itself uses the biased one.
func (bn *BatchNorm3D[B]) updateRunningStats(batchMean, batchVar []float32, shape tensor.Shape) {
	n := shape[0] * shape[2] * shape[3] * shape[4]
	unbiased := float32(1.0)
	if n > 1 {
		unbiased = float32(n) / float32(n-1)
	}

	rm := bn.runningMean.AsFloat32()
	rv := bn.runningVar.AsFloat32()
	for c := 0; c < bn.numFeatures; c++ {
		rm[c] = (1-bn.momentum)*rm[c] + bn.momentum*batchMean[c]
		rv[c] = (1-bn.momentum)*rv[c] + bn.momentum*batchVar[c]*unbiased
	}
}

// statTensor wraps a running statistic buffer as a broadcastable
// [1, C, 1, 1, 1] tensor. The data is copied so recorded operations can
// never alias the buffer.
func (bn *BatchNorm3D[B]) statTensor(stat *tensor.RawTensor) *tensor.Tensor[float32, B] {
	raw, err := tensor.NewRaw(tensor.Shape{1, bn.numFeatures, 1, 1, 1}, tensor.Float32, bn.backend.Device())
	if err != nil {
		panic(err)
	}
	copy(raw.AsFloat32(), stat.AsFloat32())
	return tensor.New[float32, B](raw, bn.backend)
}

// SetTraining switches between batch statistics (training) and running
// statistics (evaluation).
func (bn *BatchNorm3D[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the module is in training mode.
func (bn *BatchNorm3D[B]) Training() bool {
	return bn.training
}

// NumFeatures returns the channel count this layer normalizes.
func (bn *BatchNorm3D[B]) NumFeatures() int {
	return bn.numFeatures
}

// RunningStats returns the running mean and variance buffers.
func (bn *BatchNorm3D[B]) RunningStats() (mean, variance *tensor.RawTensor) {
	return bn.runningMean, bn.runningVar
}

// Parameters returns the learnable parameters (gamma and beta).
func (bn *BatchNorm3D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// StateDict returns gamma, beta and the running statistics.
func (bn *BatchNorm3D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma":        bn.gamma.Tensor().Raw(),
		"beta":         bn.beta.Tensor().Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

// LoadStateDict restores gamma, beta and the running statistics.
func (bn *BatchNorm3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	targets := map[string][]float32{
		"gamma":        bn.gamma.Tensor().Data(),
		"beta":         bn.beta.Tensor().Data(),
		"running_mean": bn.runningMean.AsFloat32(),
		"running_var":  bn.runningVar.AsFloat32(),
	}
	expected := tensor.Shape{bn.numFeatures}
	for name, dst := range targets {
		raw, ok := stateDict[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if !raw.Shape().Equal(expected) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, expected, raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
		}
		copy(dst, raw.AsFloat32())
	}
	return nil
}
