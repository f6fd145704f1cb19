package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Pad3D zero-pads the three spatial axes of a [N, C, D, H, W] tensor.
// pads holds (before, after) pairs in axis order D, H, W. Decoder
// stages use this to grow an upsampled volume to its skip connection's
// size before concatenation.
func (cpu *CPUBackend) Pad3D(x *tensor.RawTensor, pads [6]int) *tensor.RawTensor {
	inputShape := x.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("pad3d: input must be 5D [N,C,D,H,W], got %dD", len(inputShape)))
	}
	for _, p := range pads {
		if p < 0 {
			panic(fmt.Sprintf("pad3d: negative padding %v not supported", pads))
		}
	}

	n, c := inputShape[0], inputShape[1]
	d, h, w := inputShape[2], inputShape[3], inputShape[4]
	outShape := tensor.Shape{n, c, d + pads[0] + pads[1], h + pads[2] + pads[3], w + pads[4] + pads[5]}
	output := newResult("pad3d", outShape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		padCopy(output.AsFloat32(), x.AsFloat32(), n*c, d, h, w, outShape[2], outShape[3], outShape[4], pads, false)
	case tensor.Float64:
		padCopy(output.AsFloat64(), x.AsFloat64(), n*c, d, h, w, outShape[2], outShape[3], outShape[4], pads, false)
	default:
		panic(fmt.Sprintf("pad3d: unsupported dtype %s", x.DType()))
	}

	return output
}

// Pad3DBackward slices the padded border off an output gradient,
// inverting Pad3D. The padded region contributed constants, so its
// gradient is discarded.
func (cpu *CPUBackend) Pad3DBackward(outputGrad *tensor.RawTensor, pads [6]int) *tensor.RawTensor {
	gradShape := outputGrad.Shape()
	if len(gradShape) != 5 {
		panic(fmt.Sprintf("pad3d_backward: gradient must be 5D [N,C,D,H,W], got %dD", len(gradShape)))
	}

	n, c := gradShape[0], gradShape[1]
	dOut, hOut, wOut := gradShape[2], gradShape[3], gradShape[4]
	d := dOut - pads[0] - pads[1]
	h := hOut - pads[2] - pads[3]
	w := wOut - pads[4] - pads[5]
	if d <= 0 || h <= 0 || w <= 0 {
		panic(fmt.Sprintf("pad3d_backward: pads %v exceed gradient shape %v", pads, gradShape))
	}

	inputGrad := newResult("pad3d_backward", tensor.Shape{n, c, d, h, w}, outputGrad.DType(), cpu.device)

	switch outputGrad.DType() {
	case tensor.Float32:
		padCopy(outputGrad.AsFloat32(), inputGrad.AsFloat32(), n*c, d, h, w, dOut, hOut, wOut, pads, true)
	case tensor.Float64:
		padCopy(outputGrad.AsFloat64(), inputGrad.AsFloat64(), n*c, d, h, w, dOut, hOut, wOut, pads, true)
	default:
		panic(fmt.Sprintf("pad3d_backward: unsupported dtype %s", outputGrad.DType()))
	}

	return inputGrad
}

// padCopy moves rows between an unpadded [planes, d, h, w] volume and
// its padded [planes, dOut, hOut, wOut] counterpart. With extract set
// the padded buffer is the source and the border is dropped.
func padCopy[T number](padded, unpadded []T, planes, d, h, w, dOut, hOut, wOut int, pads [6]int, extract bool) {
	inChanVol := d * h * w
	outChanVol := dOut * hOut * wOut

	for p := 0; p < planes; p++ {
		in := unpadded[p*inChanVol : (p+1)*inChanVol]
		out := padded[p*outChanVol : (p+1)*outChanVol]

		for dd := 0; dd < d; dd++ {
			for hh := 0; hh < h; hh++ {
				srcOff := (dd*h + hh) * w
				dstOff := ((dd+pads[0])*hOut+hh+pads[2])*wOut + pads[4]
				if extract {
					copy(in[srcOff:srcOff+w], out[dstOff:dstOff+w])
				} else {
					copy(out[dstOff:dstOff+w], in[srcOff:srcOff+w])
				}
			}
		}
	}
}
