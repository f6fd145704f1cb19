package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Cast converts the tensor to a different data type. Same-dtype casts
// return the input untouched. Float to uint8 conversion truncates, so
// callers clamp to the target range first.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x
	}

	result := newResult("cast", x.Shape(), dtype, cpu.device)

	switch x.DType() {
	case tensor.Float32:
		castFrom(result, x.AsFloat32(), dtype)
	case tensor.Float64:
		castFrom(result, x.AsFloat64(), dtype)
	case tensor.Int64:
		castFrom(result, x.AsInt64(), dtype)
	case tensor.Uint8:
		castFrom(result, x.AsUint8(), dtype)
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %v", x.DType()))
	}

	return result
}

func castFrom[S element](result *tensor.RawTensor, src []S, toDtype tensor.DataType) {
	switch toDtype {
	case tensor.Float32:
		convertSlice(result.AsFloat32(), src)
	case tensor.Float64:
		convertSlice(result.AsFloat64(), src)
	case tensor.Int64:
		convertSlice(result.AsInt64(), src)
	case tensor.Uint8:
		convertSlice(result.AsUint8(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v", toDtype))
	}
}

func convertSlice[D, S element](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}
