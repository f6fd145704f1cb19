package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// ConvTranspose3D is a 3D transposed (fractionally strided) convolution.
//
// Transposed convolution upsamples its input: each input element is
// multiplied by the kernel and scattered into the output at stride
// spacing. The decoder path of the denoising network uses it with a
// 2x2x2 kernel and stride 2 to double every spatial axis before a skip
// connection is concatenated.
//
// Input shape:  [batch, in_channels, frames, height, width]
// Weight shape: [in_channels, out_channels, k, k, k]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_f, out_h, out_w]
//
// Where each spatial output dimension is:
//
//	out = (in - 1) * stride + k
//
// Example:
//
//	up := nn.NewConvTranspose3D(512, 256, 2, 2, true, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{1, 512, 1, 8, 8}, backend)
//	output := up.Forward(input) // [1, 256, 2, 16, 16]
type ConvTranspose3D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	useBias     bool

	weight *Parameter[B] // [in_channels, out_channels, k, k, k]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConvTranspose3D creates a new 3D transposed convolution layer with
// Xavier initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels
//   - kernelSize: Cubic kernel extent (commonly 2)
//   - stride: Upsampling stride (commonly 2)
//   - useBias: Whether to include bias term
//   - backend: Backend for computation
func NewConvTranspose3D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride int,
	useBias bool,
	backend B,
) *ConvTranspose3D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("convtranspose3d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("convtranspose3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("convtranspose3d: invalid stride %d", stride))
	}

	// Weight layout for the transposed direction: [in_channels, out_channels, k, k, k]
	k := kernelSize
	weightShape := tensor.Shape{inChannels, outChannels, k, k, k}

	fanIn := inChannels * k * k * k
	fanOut := outChannels * k * k * k
	weight := Xavier(fanIn, fanOut, weightShape, backend)

	weightParam := NewParameter("convtranspose3d.weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		bias := Zeros(tensor.Shape{outChannels}, backend)
		biasParam = NewParameter("convtranspose3d.bias", bias)
	}

	return &ConvTranspose3D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
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
func (c *ConvTranspose3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("convtranspose3d: expected 5D input [N,C,F,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("convtranspose3d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.ConvTranspose3D(
		input.Raw(),
		c.weight.Tensor().Raw(),
		c.stride,
	)

	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1, 1)
		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns all trainable parameters.
func (c *ConvTranspose3D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// String returns a string representation of the layer.
func (c *ConvTranspose3D[B]) String() string {
	return fmt.Sprintf("ConvTranspose3D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.useBias)
}

// OutChannels returns the number of output channels.
func (c *ConvTranspose3D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *ConvTranspose3D[B]) InChannels() int {
	return c.inChannels
}

// ComputeOutputSize computes output spatial dimensions for a given input size.
//
// Returns: [out_frames, out_height, out_width].
func (c *ConvTranspose3D[B]) ComputeOutputSize(inputF, inputH, inputW int) [3]int {
	outF := (inputF-1)*c.stride + c.kernelSize
	outH := (inputH-1)*c.stride + c.kernelSize
	outW := (inputW-1)*c.stride + c.kernelSize
	return [3]int{outF, outH, outW}
}

// StateDict returns the weight (and bias when present) tensors.
func (c *ConvTranspose3D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	stateDict["weight"] = c.weight.Tensor().Raw()
	if c.useBias {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict restores weight and bias from a state dictionary.
func (c *ConvTranspose3D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
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
