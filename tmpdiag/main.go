package main

import (
	"fmt"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

func main() {
	backend := cpu.New()

	// Deterministic input [2, 2, 1, 2, 2]: values 0..15
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	x, err := tensor.FromSlice[float32](data, tensor.Shape{2, 2, 1, 2, 2}, backend)
	if err != nil {
		panic(err)
	}

	// Chained means over axes 0,2,3,4 (keepdim) -> want per-channel mean [1,2,1,1,1]
	mean := x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true).MeanDim(4, true)
	fmt.Println("mean shape:", mean.Shape(), "data:", mean.Raw().AsFloat32())
	// channel 0 elements: 0,1,2,3, 8,9,10,11 -> mean 5.5
	// channel 1 elements: 4,5,6,7, 12,13,14,15 -> mean 9.5

	centered := x.Sub(mean)
	fmt.Println("centered shape:", centered.Shape())
	fmt.Println("centered data:", centered.Raw().AsFloat32())
	// want: ch0: -5.5..-2.5, 2.5..5.5 ; ch1 same pattern

	variance := centered.Mul(centered).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true).MeanDim(4, true)
	fmt.Println("variance shape:", variance.Shape(), "data:", variance.Raw().AsFloat32())
	// want both channels: mean of {30.25,12.25,2.25,0.25,6.25,20.25,...} = (2*(30.25+20.25+12.25+6.25+2.25+0.25)... compute: per-channel values [-5.5,-4.5,-3.5,-2.5,2.5,3.5,4.5,5.5] squared avg = (30.25+20.25+12.25+6.25)*2/8 = 17.25

	norm := centered.Mul(variance.AddScalar(1e-5).Rsqrt())
	fmt.Println("normalized:", norm.Raw().AsFloat32())
	for c := 0; c < 2; c++ {
		var sum, sumSq float64
		out := norm.Raw().AsFloat32()
		for b := 0; b < 2; b++ {
			base := (b*2 + c) * 4
			for i := 0; i < 4; i++ {
				v := float64(out[base+i])
				sum += v
				sumSq += v * v
			}
		}
		m := sum / 8
		fmt.Printf("channel %d: mean=%.6f var=%.6f\n", c, m, sumSq/8-m*m)
	}
}
