package ops

import "github.com/drift-ml/drift/internal/tensor"

// Pad3DOp records zero padding of the spatial axes.
//
// Forward: output = Pad3D(input, pads)
// Backward: the padded border carried constants, so the input gradient
// is the output gradient with the border sliced off.
type Pad3DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	pads   [6]int
}

// NewPad3DOp creates a new Pad3DOp.
func NewPad3DOp(input, output *tensor.RawTensor, pads [6]int) *Pad3DOp {
	return &Pad3DOp{
		input:  input,
		output: output,
		pads:   pads,
	}
}

// Inputs returns the input tensors.
func (op *Pad3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *Pad3DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward slices the padding off the output gradient.
func (op *Pad3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Pad3DBackward(outputGrad, op.pads)
	return []*tensor.RawTensor{inputGrad}
}
