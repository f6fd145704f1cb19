package cpu

import "github.com/drift-ml/drift/internal/tensor"

// broadcastStrides computes the strides for reading a tensor of shape
// src as if it had shape out. Dimensions that src lacks, or holds with
// size 1, get stride 0 so the same element is reused across that axis.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		if i < offset {
			strides[i] = 0
			continue
		}
		if src[i-offset] == 1 && out[i] != 1 {
			strides[i] = 0
		} else {
			strides[i] = srcStrides[i-offset]
		}
	}
	return strides
}

// flatIndex maps a flat output index to the flat input index it reads,
// given the output strides and the input's broadcast strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	inIdx := 0
	remaining := outIdx
	for dim := range outStrides {
		coord := remaining / outStrides[dim]
		remaining %= outStrides[dim]
		inIdx += coord * inStrides[dim]
	}
	return inIdx
}
