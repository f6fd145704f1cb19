package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Conv3D is a 3D convolutional layer for volumetric (video) data.
//
// Performs convolution: output = Conv3D(input, weight) + bias
//
// Input shape:  [batch, in_channels, frames, height, width]
// Weight shape: [out_channels, in_channels, k, k, k]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_f, out_h, out_w]
//
// Where each spatial output dimension is:
//
//	out = (in + 2*padding - k) / stride + 1
//
// The kernel is cubic: the same extent is applied to the frame, height
// and width axes, which is the only form the denoising network needs
// (3x3x3 feature convolutions and 1x1x1 projections).
//
// Example:
//
//	// 3 channels -> 64 channels, 3x3x3 kernel, same-size output
//	conv := nn.NewConv3D(3, 64, 3, 1, 1, true, backend)
//
//	input := tensor.Zeros[float32](tensor.Shape{2, 3, 8, 64, 64}, backend)
//	output := conv.Forward(input) // [2, 64, 8, 64, 64]
type Conv3D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter[B] // [out_channels, in_channels, k, k, k]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv3D creates a new 3D convolutional layer with Xavier initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelSize: Cubic kernel extent (commonly 1 or 3)
//   - stride: Stride for convolution
//   - padding: Zero padding applied to every spatial axis
//   - useBias: Whether to include bias term
//   - backend: Backend for computation
//
// Initialization:
//   - Weights: Xavier/Glorot uniform initialization
//   - Bias: Zeros
func NewConv3D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *Conv3D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv3d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv3d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv3d: invalid padding %d", padding))
	}

	// Create weight parameter [out_channels, in_channels, k, k, k]
	k := kernelSize
	weightShape := tensor.Shape{outChannels, inChannels, k, k, k}

	// Xavier initialization for weights
	// For Conv3D:
	//   fan_in = in_channels * k^3
	//   fan_out = out_channels * k^3
	fanIn := inChannels * k * k * k
	fanOut := outChannels * k * k * k
	weight := Xavier(fanIn, fanOut, weightShape, backend)

	weightParam := NewParameter("conv3d.weight", weight)

	// Create bias parameter if needed
	var biasParam *Parameter[B]
	if useBias {
		bias := Zeros(tensor.Shape{outChannels}, backend)
		biasParam = NewParameter("conv3d.bias", bias)
	}

	return &Conv3D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, frames, height, width]
// Output: [batch, out_channels, out_f, out_h, out_w].
func (c *Conv3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	// Validate input shape
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("conv3d: expected 5D input [N,C,F,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv3d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	// Perform convolution
	outputRaw := c.backend.Conv3D(
		input.Raw(),
		c.weight.Tensor().Raw(),
		c.stride,
		c.padding,
	)

	// Wrap in Tensor for high-level API
	output := tensor.New[float32, B](outputRaw, c.backend)

	// Add bias if present
	if c.useBias {
		// Bias shape: [out_channels]
		// Output shape: [batch, out_channels, out_f, out_h, out_w]
		// Reshape bias to [1, out_channels, 1, 1, 1] for broadcasting;
		// the reshape is recorded, so gradients reach the flat bias.
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1, 1)

		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns all trainable parameters.
func (c *Conv3D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// String returns a string representation of the layer.
func (c *Conv3D[B]) String() string {
	return fmt.Sprintf("Conv3D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.useBias)
}

// OutChannels returns the number of output channels.
func (c *Conv3D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv3D[B]) InChannels() int {
	return c.inChannels
}

// KernelSize returns the cubic kernel extent.
func (c *Conv3D[B]) KernelSize() int {
	return c.kernelSize
}

// Stride returns the stride.
func (c *Conv3D[B]) Stride() int {
	return c.stride
}

// Padding returns the padding.
func (c *Conv3D[B]) Padding() int {
	return c.padding
}

// ComputeOutputSize computes output spatial dimensions for a given input size.
//
// Returns: [out_frames, out_height, out_width].
func (c *Conv3D[B]) ComputeOutputSize(inputF, inputH, inputW int) [3]int {
	outF := (inputF+2*c.padding-c.kernelSize)/c.stride + 1
	outH := (inputH+2*c.padding-c.kernelSize)/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize)/c.stride + 1
	return [3]int{outF, outH, outW}
}

// StateDict returns the weight (and bias when present) tensors.
func (c *Conv3D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	stateDict["weight"] = c.weight.Tensor().Raw()
	if c.useBias {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict restores weight and bias from a state dictionary.
func (c *Conv3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	weightRaw, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	if !weightRaw.Shape().Equal(c.weight.Tensor().Shape()) {
		return fmt.Errorf("weight shape mismatch: expected %v, got %v",
			c.weight.Tensor().Shape(), weightRaw.Shape())
	}
	if weightRaw.DType() != tensor.Float32 {
		return fmt.Errorf("weight dtype mismatch: expected float32, got %v", weightRaw.DType())
	}
	copy(c.weight.Tensor().Data(), weightRaw.AsFloat32())

	if c.useBias {
		biasRaw, ok := stateDict["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		if !biasRaw.Shape().Equal(c.bias.Tensor().Shape()) {
			return fmt.Errorf("bias shape mismatch: expected %v, got %v",
				c.bias.Tensor().Shape(), biasRaw.Shape())
		}
		copy(c.bias.Tensor().Data(), biasRaw.AsFloat32())
	}

	return nil
}
