package tensor

import (
	"fmt"
	"slices"
)

// Shape represents the dimensions of a tensor.
//
// A Shape of {16, 3, 8, 64, 64} describes a batch of 16 video clips with
// 3 channels, 8 frames and 64x64 pixels per frame. An empty Shape{}
// describes a scalar.
type Shape []int

// NumElements returns the total number of elements for this shape.
// A scalar shape has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension %d at axis %d: must be positive", dim, i)
		}
	}
	return nil
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return slices.Clone(s)
}

// ComputeStrides returns row-major strides for this shape.
//
// For shape [2, 3, 4] the strides are [12, 4, 1]: advancing one step
// along axis 0 skips 12 elements in the flat buffer.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

// BroadcastShapes computes the result shape of broadcasting a against b
// using NumPy alignment rules: shapes are right-aligned and each pair of
// dimensions must be equal or one of them must be 1.
//
// Returns the broadcast shape, whether any broadcasting is needed, and an
// error if the shapes are incompatible.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		dimA, dimB := 1, 1
		if i < len(a) {
			dimA = a[len(a)-1-i]
		}
		if i < len(b) {
			dimB = b[len(b)-1-i]
		}

		switch {
		case dimA == dimB:
			result[maxLen-1-i] = dimA
		case dimA == 1:
			result[maxLen-1-i] = dimB
			needsBroadcast = true
		case dimB == 1:
			result[maxLen-1-i] = dimA
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("cannot broadcast shapes %v and %v: dimension mismatch %d vs %d", a, b, dimA, dimB)
		}
	}

	return result, needsBroadcast, nil
}
