package tensor

import (
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, oneValue[T](), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from a standard normal
// distribution using the shared math/rand source. Only float types are
// supported.
//
// Use RandnFrom with a seeded *rand.Rand when reproducibility matters,
// e.g. deterministic sampling runs.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	fillNormal(t, rand.NormFloat64)
	return t
}

// RandnFrom creates a standard-normal tensor drawing from the given
// random source. The same seed yields the same tensor, which keeps
// reverse diffusion runs reproducible.
func RandnFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	fillNormal(t, rng.NormFloat64)
	return t
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
// Only float types are supported.
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)

	var dummy T
	switch any(dummy).(type) {
	case float32:
		data := any(t.Data()).([]float32)
		for i := range data {
			data[i] = float32(rand.Float64()) //nolint:gosec // statistical use, not security
		}
	case float64:
		data := any(t.Data()).([]float64)
		for i := range data {
			data[i] = rand.Float64() //nolint:gosec // statistical use, not security
		}
	default:
		panic("Rand only supports float32 and float64 types")
	}
	return t
}

// fillNormal fills a float tensor from a normal sampler.
func fillNormal[T DType, B Backend](t *Tensor[T, B], norm func() float64) {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		data := any(t.Data()).([]float32)
		for i := range data {
			data[i] = float32(norm())
		}
	case float64:
		data := any(t.Data()).([]float64)
		for i := range data {
			data[i] = norm()
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
}

// oneValue returns the multiplicative identity for T.
func oneValue[T DType]() T {
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int64:
		one = int64(1)
	case uint8:
		one = uint8(1)
	default:
		panic("unsupported type")
	}
	return one.(T)
}
