package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// MaxPool3D performs volumetric max pooling with a cubic kernel.
//
// Input shape: [N, C, D, H, W]
// Output shape: [N, C, D_out, H_out, W_out] with
// D_out = (D-kernelSize)/stride + 1 and likewise for H and W.
func (cpu *CPUBackend) MaxPool3D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("maxpool3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}

	n, c := inputShape[0], inputShape[1]
	d, h, w := inputShape[2], inputShape[3], inputShape[4]
	dOut := (d-kernelSize)/stride + 1
	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1
	if dOut <= 0 || hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid output dimensions %dx%dx%d (input %dx%dx%d, kernel %d, stride %d)",
			dOut, hOut, wOut, d, h, w, kernelSize, stride))
	}

	output := newResult("maxpool3d", tensor.Shape{n, c, dOut, hOut, wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		maxPool3dForward(output.AsFloat32(), input.AsFloat32(), n, c, d, h, w, dOut, hOut, wOut, kernelSize, stride, cpu.pool)
	case tensor.Float64:
		maxPool3dForward(output.AsFloat64(), input.AsFloat64(), n, c, d, h, w, dOut, hOut, wOut, kernelSize, stride, cpu.pool)
	default:
		panic(fmt.Sprintf("maxpool3d: unsupported dtype %s", input.DType()))
	}

	return output
}

func maxPool3dForward[T number](outputData, inputData []T, n, c, d, h, w, dOut, hOut, wOut, kernelSize, stride int, pool parallel.Config) {
	inChanVol := d * h * w
	outChanVol := dOut * hOut * wOut

	parallel.ForBatch(n, c, func(batch, chn int) {
		in := inputData[(batch*c+chn)*inChanVol : (batch*c+chn+1)*inChanVol]
		out := outputData[(batch*c+chn)*outChanVol : (batch*c+chn+1)*outChanVol]

		outIdx := 0
		for outD := 0; outD < dOut; outD++ {
			dStart := outD * stride
			for outH := 0; outH < hOut; outH++ {
				hStart := outH * stride
				for outW := 0; outW < wOut; outW++ {
					wStart := outW * stride

					maxVal := in[(dStart*h+hStart)*w+wStart]
					for kd := 0; kd < kernelSize; kd++ {
						for kh := 0; kh < kernelSize; kh++ {
							rowOff := ((dStart+kd)*h + hStart + kh) * w
							for kw := 0; kw < kernelSize; kw++ {
								if v := in[rowOff+wStart+kw]; v > maxVal {
									maxVal = v
								}
							}
						}
					}
					out[outIdx] = maxVal
					outIdx++
				}
			}
		}
	}, pool)
}

// MaxPool3DBackward routes output gradients to the input positions that
// held the window maxima. maxIndices carries, for each flat output
// position, the flat input index of its maximum; all other window
// positions get zero gradient.
func (cpu *CPUBackend) MaxPool3DBackward(input, outputGrad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	inputGrad := newResult("maxpool3d_backward", input.Shape(), outputGrad.DType(), cpu.device)

	switch outputGrad.DType() {
	case tensor.Float32:
		scatterPoolGrad(inputGrad.AsFloat32(), outputGrad.AsFloat32(), maxIndices)
	case tensor.Float64:
		scatterPoolGrad(inputGrad.AsFloat64(), outputGrad.AsFloat64(), maxIndices)
	default:
		panic(fmt.Sprintf("maxpool3d_backward: unsupported dtype %s", outputGrad.DType()))
	}

	return inputGrad
}

// Overlapping windows can route several output gradients to one input
// index, so the scatter accumulates sequentially.
func scatterPoolGrad[T number](inputGradData, gradData []T, maxIndices []int) {
	for i, idx := range maxIndices {
		inputGradData[idx] += gradData[i]
	}
}
