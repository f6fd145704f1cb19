package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// ConvTranspose3D performs transposed volumetric convolution, the
// upsampling counterpart of Conv3D.
//
// Input shape: [N, C_in, D, H, W]
// Kernel shape: [C_in, C_out, K_d, K_h, K_w]
// Output shape: [N, C_out, (D-1)*stride+K_d, (H-1)*stride+K_h, (W-1)*stride+K_w]
//
// Every input element scatters a kernel-sized block into the output.
// Work is split over (batch, out channel) pairs, which write disjoint
// output planes.
func (cpu *CPUBackend) ConvTranspose3D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 5 {
		panic(fmt.Sprintf("conv_transpose3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 5 {
		panic(fmt.Sprintf("conv_transpose3d: kernel must be 5D [C_in,C_out,K_d,K_h,K_w], got %dD", len(kernelShape)))
	}
	if inputShape[1] != kernelShape[0] {
		panic(fmt.Sprintf("conv_transpose3d: input channels %d != kernel channels %d", inputShape[1], kernelShape[0]))
	}

	g := convTranspose3dGeometry(inputShape, kernelShape, stride)
	output := newResult("conv_transpose3d", tensor.Shape{g.n, g.cOut, g.dOut, g.hOut, g.wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		convTranspose3dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.pool)
	case tensor.Float64:
		convTranspose3dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.pool)
	default:
		panic(fmt.Sprintf("conv_transpose3d: unsupported dtype %s", input.DType()))
	}

	return output
}

type convTGeom struct {
	n, cIn, d, h, w       int
	cOut, kd, kh, kw      int
	dOut, hOut, wOut      int
	stride                int
	inChanVol, outChanVol int
	inVolume, outVolume   int
	kernelBlock           int
}

func convTranspose3dGeometry(inputShape, kernelShape tensor.Shape, stride int) convTGeom {
	g := convTGeom{
		n:      inputShape[0],
		cIn:    inputShape[1],
		d:      inputShape[2],
		h:      inputShape[3],
		w:      inputShape[4],
		cOut:   kernelShape[1],
		kd:     kernelShape[2],
		kh:     kernelShape[3],
		kw:     kernelShape[4],
		stride: stride,
	}
	g.dOut = (g.d-1)*stride + g.kd
	g.hOut = (g.h-1)*stride + g.kh
	g.wOut = (g.w-1)*stride + g.kw
	g.inChanVol = g.d * g.h * g.w
	g.outChanVol = g.dOut * g.hOut * g.wOut
	g.inVolume = g.cIn * g.inChanVol
	g.outVolume = g.cOut * g.outChanVol
	g.kernelBlock = g.kd * g.kh * g.kw
	return g
}

func convTranspose3dForward[T number](outputData, inputData, kernelData []T, g convTGeom, pool parallel.Config) {
	parallel.ForBatch(g.n, g.cOut, func(n, outChan int) {
		planeOff := n*g.outVolume + outChan*g.outChanVol
		plane := outputData[planeOff : planeOff+g.outChanVol]

		for inChan := 0; inChan < g.cIn; inChan++ {
			inData := inputData[n*g.inVolume+inChan*g.inChanVol : n*g.inVolume+(inChan+1)*g.inChanVol]
			kernelOff := (inChan*g.cOut + outChan) * g.kernelBlock
			kernelChan := kernelData[kernelOff : kernelOff+g.kernelBlock]

			inIdx := 0
			for d := 0; d < g.d; d++ {
				dStart := d * g.stride
				for h := 0; h < g.h; h++ {
					hStart := h * g.stride
					for w := 0; w < g.w; w++ {
						wStart := w * g.stride
						val := inData[inIdx]
						inIdx++
						if val == 0 {
							continue
						}

						kIdx := 0
						for kd := 0; kd < g.kd; kd++ {
							rowOff := (dStart + kd) * g.hOut
							for kh := 0; kh < g.kh; kh++ {
								outOff := (rowOff+hStart+kh)*g.wOut + wStart
								for kw := 0; kw < g.kw; kw++ {
									plane[outOff+kw] += val * kernelChan[kIdx]
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

// ConvTranspose3DKernelBackward computes the gradient w.r.t. the
// transposed convolution kernel. Each kernel weight gathers the product
// of its input tap and the output gradient position it scattered to.
//
// The input gradient needs no dedicated kernel: scattering forward means
// gathering backward, which is exactly Conv3D of the output gradient
// with the same kernel read as [C_out, C_in, ...].
func (cpu *CPUBackend) ConvTranspose3DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride int) *tensor.RawTensor {
	g := convTranspose3dGeometry(input.Shape(), kernel.Shape(), stride)
	kernelGrad := newResult("conv_transpose3d_kernel_backward", kernel.Shape(), outputGrad.DType(), cpu.device)

	switch outputGrad.DType() {
	case tensor.Float32:
		convTranspose3dKernelBackward(kernelGrad.AsFloat32(), outputGrad.AsFloat32(), input.AsFloat32(), g, cpu.pool)
	case tensor.Float64:
		convTranspose3dKernelBackward(kernelGrad.AsFloat64(), outputGrad.AsFloat64(), input.AsFloat64(), g, cpu.pool)
	default:
		panic(fmt.Sprintf("conv_transpose3d_kernel_backward: unsupported dtype %s", outputGrad.DType()))
	}

	return kernelGrad
}

func convTranspose3dKernelBackward[T number](kernelGradData, gradData, inputData []T, g convTGeom, pool parallel.Config) {
	parallel.ForBatch(g.cIn, g.cOut, func(inChan, outChan int) {
		blockOff := (inChan*g.cOut + outChan) * g.kernelBlock
		block := kernelGradData[blockOff : blockOff+g.kernelBlock]

		for n := 0; n < g.n; n++ {
			inData := inputData[n*g.inVolume+inChan*g.inChanVol : n*g.inVolume+(inChan+1)*g.inChanVol]
			gradChan := gradData[n*g.outVolume+outChan*g.outChanVol : n*g.outVolume+(outChan+1)*g.outChanVol]

			inIdx := 0
			for d := 0; d < g.d; d++ {
				dStart := d * g.stride
				for h := 0; h < g.h; h++ {
					hStart := h * g.stride
					for w := 0; w < g.w; w++ {
						wStart := w * g.stride
						val := inData[inIdx]
						inIdx++
						if val == 0 {
							continue
						}

						kIdx := 0
						for kd := 0; kd < g.kd; kd++ {
							rowOff := (dStart + kd) * g.hOut
							for kh := 0; kh < g.kh; kh++ {
								gradOff := (rowOff+hStart+kh)*g.wOut + wStart
								for kw := 0; kw < g.kw; kw++ {
									block[kIdx] += val * gradChan[gradOff+kw]
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
