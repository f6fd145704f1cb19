package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// Conv3DInputBackward computes the gradient w.r.t. the convolution input.
//
// For every output gradient value, the contribution grad * kernel weight
// is scattered back to the input position that produced it. Work is
// split over (batch, in channel) pairs, which write disjoint gradient
// planes.
func (cpu *CPUBackend) Conv3DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := conv3dGeometry(input.Shape(), kernel.Shape(), stride, padding)
	inputGrad := newResult("conv3d_input_backward", input.Shape(), outputGrad.DType(), cpu.device)

	switch outputGrad.DType() {
	case tensor.Float32:
		conv3dInputBackward(inputGrad.AsFloat32(), outputGrad.AsFloat32(), kernel.AsFloat32(), g, cpu.pool)
	case tensor.Float64:
		conv3dInputBackward(inputGrad.AsFloat64(), outputGrad.AsFloat64(), kernel.AsFloat64(), g, cpu.pool)
	default:
		panic(fmt.Sprintf("conv3d_input_backward: unsupported dtype %s", outputGrad.DType()))
	}

	return inputGrad
}

func conv3dInputBackward[T number](inputGradData, gradData, kernelData []T, g convGeom, pool parallel.Config) {
	parallel.ForBatch(g.n, g.cIn, func(n, inChan int) {
		gradBatch := gradData[n*g.outVolume : (n+1)*g.outVolume]
		planeOff := n*g.inVolume + inChan*g.inChanVol
		plane := inputGradData[planeOff : planeOff+g.inChanVol]

		for outChan := 0; outChan < g.cOut; outChan++ {
			gradChan := gradBatch[outChan*g.spatialOut : (outChan+1)*g.spatialOut]
			kernelOff := outChan*g.kernelVol + inChan*g.kernelCInVol
			kernelChan := kernelData[kernelOff : kernelOff+g.kernelCInVol]

			gradIdx := 0
			for outD := 0; outD < g.dOut; outD++ {
				dStart := outD*g.stride - g.padding
				for outH := 0; outH < g.hOut; outH++ {
					hStart := outH*g.stride - g.padding
					for outW := 0; outW < g.wOut; outW++ {
						wStart := outW*g.stride - g.padding
						gradVal := gradChan[gradIdx]
						gradIdx++

						kIdx := 0
						for kd := 0; kd < g.kd; kd++ {
							d := dStart + kd
							for kh := 0; kh < g.kh; kh++ {
								h := hStart + kh
								for kw := 0; kw < g.kw; kw++ {
									w := wStart + kw
									if d >= 0 && d < g.d && h >= 0 && h < g.h && w >= 0 && w < g.w {
										plane[(d*g.h+h)*g.w+w] += gradVal * kernelChan[kIdx]
									}
									kIdx++
								}
							}
						}
					}
				}
			}
		}
	}, pool)
}

// Conv3DKernelBackward computes the gradient w.r.t. the convolution kernel.
//
// Each kernel weight gathers the product of its input tap and the output
// gradient over all batch elements and output positions. Work is split
// over (out channel, in channel) pairs.
func (cpu *CPUBackend) Conv3DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := conv3dGeometry(input.Shape(), kernel.Shape(), stride, padding)
	kernelGrad := newResult("conv3d_kernel_backward", kernel.Shape(), outputGrad.DType(), cpu.device)

	switch outputGrad.DType() {
	case tensor.Float32:
		conv3dKernelBackward(kernelGrad.AsFloat32(), outputGrad.AsFloat32(), input.AsFloat32(), g, cpu.pool)
	case tensor.Float64:
		conv3dKernelBackward(kernelGrad.AsFloat64(), outputGrad.AsFloat64(), input.AsFloat64(), g, cpu.pool)
	default:
		panic(fmt.Sprintf("conv3d_kernel_backward: unsupported dtype %s", outputGrad.DType()))
	}

	return kernelGrad
}

func conv3dKernelBackward[T number](kernelGradData, gradData, inputData []T, g convGeom, pool parallel.Config) {
	parallel.ForBatch(g.cOut, g.cIn, func(outChan, inChan int) {
		blockOff := outChan*g.kernelVol + inChan*g.kernelCInVol
		block := kernelGradData[blockOff : blockOff+g.kernelCInVol]

		for n := 0; n < g.n; n++ {
			inChanData := inputData[n*g.inVolume+inChan*g.inChanVol : n*g.inVolume+(inChan+1)*g.inChanVol]
			gradChan := gradData[n*g.outVolume+outChan*g.spatialOut : n*g.outVolume+(outChan+1)*g.spatialOut]

			gradIdx := 0
			for outD := 0; outD < g.dOut; outD++ {
				dStart := outD*g.stride - g.padding
				for outH := 0; outH < g.hOut; outH++ {
					hStart := outH*g.stride - g.padding
					for outW := 0; outW < g.wOut; outW++ {
						wStart := outW*g.stride - g.padding
						gradVal := gradChan[gradIdx]
						gradIdx++

						kIdx := 0
						for kd := 0; kd < g.kd; kd++ {
							d := dStart + kd
							for kh := 0; kh < g.kh; kh++ {
								h := hStart + kh
								for kw := 0; kw < g.kw; kw++ {
									w := wStart + kw
									if d >= 0 && d < g.d && h >= 0 && h < g.h && w >= 0 && w < g.w {
										block[kIdx] += gradVal * inChanData[(d*g.h+h)*g.w+w]
									}
									kIdx++
								}
							}
						}
					}
				}
			}
		}
	}, pool)
}
