package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MaxPool3DOp records volumetric max pooling for autodiff.
//
// Forward:
//
//	output[n,c,d,h,w] = max over the kernel window of the input
//
// Backward: gradient flows only to the position that held each window's
// maximum. The winning positions are found during construction, while
// the forward input is still at hand, and stored as flat input indices.
type MaxPool3DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int
	kernelSize int
	stride     int
}

// NewMaxPool3DOp creates a new MaxPool3DOp and locates the argmax of
// every pooling window.
func NewMaxPool3DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool3DOp {
	return &MaxPool3DOp{
		input:      input,
		output:     output,
		maxIndices: poolArgmax(input, output, kernelSize, stride),
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// poolArgmax finds the flat input index of the maximum in each window.
func poolArgmax(input, output *tensor.RawTensor, kernelSize, stride int) []int {
	inShape := input.Shape()
	outShape := output.Shape()

	maxIndices := make([]int, output.NumElements())

	switch input.DType() {
	case tensor.Float32:
		poolArgmaxScan(maxIndices, input.AsFloat32(), inShape, outShape, kernelSize, stride)
	case tensor.Float64:
		poolArgmaxScan(maxIndices, input.AsFloat64(), inShape, outShape, kernelSize, stride)
	default:
		panic(fmt.Sprintf("maxpool3d: unsupported dtype %s", input.DType()))
	}

	return maxIndices
}

func poolArgmaxScan[T float32 | float64](maxIndices []int, inputData []T, inShape, outShape tensor.Shape, kernelSize, stride int) {
	n, c := inShape[0], inShape[1]
	d, h, w := inShape[2], inShape[3], inShape[4]
	dOut, hOut, wOut := outShape[2], outShape[3], outShape[4]

	outIdx := 0
	for batch := 0; batch < n; batch++ {
		for chn := 0; chn < c; chn++ {
			planeOff := ((batch*c + chn) * d) * h * w
			for outD := 0; outD < dOut; outD++ {
				dStart := outD * stride
				for outH := 0; outH < hOut; outH++ {
					hStart := outH * stride
					for outW := 0; outW < wOut; outW++ {
						wStart := outW * stride

						maxPos := planeOff + (dStart*h+hStart)*w + wStart
						maxVal := inputData[maxPos]
						for kd := 0; kd < kernelSize; kd++ {
							for kh := 0; kh < kernelSize; kh++ {
								rowOff := planeOff + ((dStart+kd)*h+hStart+kh)*w + wStart
								for kw := 0; kw < kernelSize; kw++ {
									if v := inputData[rowOff+kw]; v > maxVal {
										maxVal = v
										maxPos = rowOff + kw
									}
								}
							}
						}

						maxIndices[outIdx] = maxPos
						outIdx++
					}
				}
			}
		}
	}
}

// Inputs returns the input tensors.
func (op *MaxPool3DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool3DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the output gradient to the stored argmax positions.
func (op *MaxPool3DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.MaxPool3DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride)
	return []*tensor.RawTensor{inputGrad}
}
