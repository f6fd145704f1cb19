package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// Conv3D performs volumetric convolution using the vol2col algorithm.
//
// Input shape: [N, C_in, D, H, W]
// Kernel shape: [C_out, C_in, K_d, K_h, K_w]
// Output shape: [N, C_out, D_out, H_out, W_out]
//
// Each spatial axis uses the same stride and zero padding. The input
// volume is unrolled into a column matrix per batch element, so the
// convolution reduces to one matrix product per (batch, out channel)
// pair. Those products are fanned out across goroutines.
func (cpu *CPUBackend) Conv3D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 5 {
		panic(fmt.Sprintf("conv3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 5 {
		panic(fmt.Sprintf("conv3d: kernel must be 5D [C_out,C_in,K_d,K_h,K_w], got %dD", len(kernelShape)))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("conv3d: input channels %d != kernel channels %d", inputShape[1], kernelShape[1]))
	}

	g := conv3dGeometry(inputShape, kernelShape, stride, padding)
	if g.dOut <= 0 || g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv3d: invalid output dimensions %dx%dx%d (check stride/padding)", g.dOut, g.hOut, g.wOut))
	}

	output := newResult("conv3d", tensor.Shape{g.n, g.cOut, g.dOut, g.hOut, g.wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		conv3dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.pool)
	case tensor.Float64:
		conv3dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.pool)
	default:
		panic(fmt.Sprintf("conv3d: unsupported dtype %s", input.DType()))
	}

	return output
}

// convGeom carries the precomputed loop bounds of one convolution call.
type convGeom struct {
	n, cIn, d, h, w         int
	cOut, kd, kh, kw        int
	dOut, hOut, wOut        int
	stride, padding         int
	colWidth, spatialOut    int
	inVolume, outVolume     int
	inChanVol, outChanVol   int
	kernelVol, kernelCInVol int
}

func conv3dGeometry(inputShape, kernelShape tensor.Shape, stride, padding int) convGeom {
	g := convGeom{
		n:       inputShape[0],
		cIn:     inputShape[1],
		d:       inputShape[2],
		h:       inputShape[3],
		w:       inputShape[4],
		cOut:    kernelShape[0],
		kd:      kernelShape[2],
		kh:      kernelShape[3],
		kw:      kernelShape[4],
		stride:  stride,
		padding: padding,
	}
	g.dOut = (g.d+2*padding-g.kd)/stride + 1
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	g.colWidth = g.cIn * g.kd * g.kh * g.kw
	g.spatialOut = g.dOut * g.hOut * g.wOut
	g.inChanVol = g.d * g.h * g.w
	g.outChanVol = g.spatialOut
	g.inVolume = g.cIn * g.inChanVol
	g.outVolume = g.cOut * g.outChanVol
	g.kernelCInVol = g.kd * g.kh * g.kw
	g.kernelVol = g.cIn * g.kernelCInVol
	return g
}

// conv3dForward runs vol2col then one matrix product row per
// (batch, out channel) pair.
func conv3dForward[T number](outputData, inputData, kernelData []T, g convGeom, pool parallel.Config) {
	cols := make([][]T, g.n)
	parallel.For(g.n, func(n int) {
		col := make([]T, g.spatialOut*g.colWidth)
		vol2col(col, inputData[n*g.inVolume:(n+1)*g.inVolume], g)
		cols[n] = col
	}, pool)

	parallel.ForBatch(g.n, g.cOut, func(n, c int) {
		col := cols[n]
		kernelRow := kernelData[c*g.colWidth : (c+1)*g.colWidth]
		outRow := outputData[n*g.outVolume+c*g.spatialOut : n*g.outVolume+(c+1)*g.spatialOut]
		for p := 0; p < g.spatialOut; p++ {
			patch := col[p*g.colWidth : (p+1)*g.colWidth]
			var sum T
			for k, kv := range kernelRow {
				sum += kv * patch[k]
			}
			outRow[p] = sum
		}
	}, pool)
}

// vol2col unrolls one batch element [C, D, H, W] into a column matrix
// [D_out*H_out*W_out, C*K_d*K_h*K_w]. Out-of-bounds reads are the zero
// padding.
func vol2col[T number](col, in []T, g convGeom) {
	bufIdx := 0
	for outD := 0; outD < g.dOut; outD++ {
		dStart := outD*g.stride - g.padding
		for outH := 0; outH < g.hOut; outH++ {
			hStart := outH*g.stride - g.padding
			for outW := 0; outW < g.wOut; outW++ {
				wStart := outW*g.stride - g.padding

				for c := 0; c < g.cIn; c++ {
					chanOff := c * g.inChanVol
					for kd := 0; kd < g.kd; kd++ {
						d := dStart + kd
						for kh := 0; kh < g.kh; kh++ {
							h := hStart + kh
							for kw := 0; kw < g.kw; kw++ {
								w := wStart + kw
								if d >= 0 && d < g.d && h >= 0 && h < g.h && w >= 0 && w < g.w {
									col[bufIdx] = in[chanOff+(d*g.h+h)*g.w+w]
								} else {
									col[bufIdx] = 0
								}
								bufIdx++
							}
						}
					}
				}
			}
		}
	}
}
