package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/parallel"
	"github.com/drift-ml/drift/internal/tensor"
)

// AvgPool3D performs volumetric average pooling with per-axis kernel
// and stride, given in D, H, W order. A kernel of [1, 2, 2] with the
// same stride halves height and width while keeping every frame.
func (cpu *CPUBackend) AvgPool3D(input *tensor.RawTensor, kernel, stride [3]int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("avgpool3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}

	n, c := inputShape[0], inputShape[1]
	d, h, w := inputShape[2], inputShape[3], inputShape[4]
	dOut := (d-kernel[0])/stride[0] + 1
	hOut := (h-kernel[1])/stride[1] + 1
	wOut := (w-kernel[2])/stride[2] + 1
	if dOut <= 0 || hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("avgpool3d: invalid output dimensions %dx%dx%d", dOut, hOut, wOut))
	}

	output := newResult("avgpool3d", tensor.Shape{n, c, dOut, hOut, wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		avgPool3dForward(output.AsFloat32(), input.AsFloat32(), n, c, d, h, w, dOut, hOut, wOut, kernel, stride, cpu.pool)
	case tensor.Float64:
		avgPool3dForward(output.AsFloat64(), input.AsFloat64(), n, c, d, h, w, dOut, hOut, wOut, kernel, stride, cpu.pool)
	default:
		panic(fmt.Sprintf("avgpool3d: unsupported dtype %s", input.DType()))
	}

	return output
}

func avgPool3dForward[T ~float32 | ~float64](outputData, inputData []T, n, c, d, h, w, dOut, hOut, wOut int, kernel, stride [3]int, pool parallel.Config) {
	inChanVol := d * h * w
	outChanVol := dOut * hOut * wOut
	windowSize := T(kernel[0] * kernel[1] * kernel[2])

	parallel.ForBatch(n, c, func(batch, chn int) {
		in := inputData[(batch*c+chn)*inChanVol : (batch*c+chn+1)*inChanVol]
		out := outputData[(batch*c+chn)*outChanVol : (batch*c+chn+1)*outChanVol]

		outIdx := 0
		for outD := 0; outD < dOut; outD++ {
			dStart := outD * stride[0]
			for outH := 0; outH < hOut; outH++ {
				hStart := outH * stride[1]
				for outW := 0; outW < wOut; outW++ {
					wStart := outW * stride[2]

					var sum T
					for kd := 0; kd < kernel[0]; kd++ {
						for kh := 0; kh < kernel[1]; kh++ {
							rowOff := ((dStart+kd)*h + hStart + kh) * w
							for kw := 0; kw < kernel[2]; kw++ {
								sum += in[rowOff+wStart+kw]
							}
						}
					}
					out[outIdx] = sum / windowSize
					outIdx++
				}
			}
		}
	}, pool)
}

// UpsampleNearest3D repeats every element scales[axis] times along the
// three spatial axes, in D, H, W order.
func (cpu *CPUBackend) UpsampleNearest3D(x *tensor.RawTensor, scales [3]int) *tensor.RawTensor {
	inputShape := x.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("upsample_nearest3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}

	n, c := inputShape[0], inputShape[1]
	d, h, w := inputShape[2], inputShape[3], inputShape[4]
	outShape := tensor.Shape{n, c, d * scales[0], h * scales[1], w * scales[2]}
	output := newResult("upsample_nearest3d", outShape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		upsampleNearest3d(output.AsFloat32(), x.AsFloat32(), n*c, d, h, w, scales, cpu.pool)
	case tensor.Float64:
		upsampleNearest3d(output.AsFloat64(), x.AsFloat64(), n*c, d, h, w, scales, cpu.pool)
	case tensor.Uint8:
		upsampleNearest3d(output.AsUint8(), x.AsUint8(), n*c, d, h, w, scales, cpu.pool)
	default:
		panic(fmt.Sprintf("upsample_nearest3d: unsupported dtype %s", x.DType()))
	}

	return output
}

func upsampleNearest3d[T element](outputData, inputData []T, planes, d, h, w int, scales [3]int, pool parallel.Config) {
	dOut, hOut, wOut := d*scales[0], h*scales[1], w*scales[2]
	inChanVol := d * h * w
	outChanVol := dOut * hOut * wOut

	parallel.For(planes, func(p int) {
		in := inputData[p*inChanVol : (p+1)*inChanVol]
		out := outputData[p*outChanVol : (p+1)*outChanVol]

		outIdx := 0
		for outD := 0; outD < dOut; outD++ {
			srcD := outD / scales[0]
			for outH := 0; outH < hOut; outH++ {
				srcRow := (srcD*h + outH/scales[1]) * w
				for outW := 0; outW < wOut; outW++ {
					out[outIdx] = in[srcRow+outW/scales[2]]
					outIdx++
				}
			}
		}
	}, pool)
}
