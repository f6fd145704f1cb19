// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensor operations for the Drift ML framework.
//
// # Overview
//
// Tensors are the fundamental data structure in Drift. This package provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - NumPy-style broadcasting
//   - Volumetric operations for video models (3D convolution, pooling, upsampling)
//   - Zero-copy operations where possible
//   - Device abstraction
//
// # Basic Usage
//
//	import (
//	    "github.com/drift-ml/drift/backend/cpu"
//	    "github.com/drift-ml/drift/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Create tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//
//	    // Tensor operations
//	    z := x.Add(y)
//	    result := x.MatMul(y.Transpose())
//	}
//
// # Supported Data Types
//
// The tensor package supports the following data types via the DType constraint:
//   - float32, float64 (floating-point)
//   - int64 (signed integers, used for indices and timesteps)
//   - uint8 (unsigned integers, useful for images and video frames)
//
// # Broadcasting
//
// Tensor operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)     // (3, 1)
//	b := tensor.Ones[float32](tensor.Shape{3, 4}, backend)      // (3, 4)
//	c := a.Add(b)                                                // (3, 4)
//
// # Video Tensors
//
// Video clips use the [N, C, F, H, W] layout: batch, channels, frames,
// height, width. The backend interface carries the volumetric kernels a
// video U-Net needs:
//
//	y := x.Conv3D(kernel, 1, 1)              // 3D convolution
//	y := x.MaxPool3D(2, 2)                   // 3D max pooling
//	y := x.UpsampleNearest3D([3]int{1, 2, 2}) // upscale H and W
//
// # Memory Management
//
// Tensors use zero-copy operations where possible. The underlying data is
// reference-counted and automatically freed when no longer needed.
//
// # Scalar and Math Operations
//
// Tensor[T, B] provides type-safe element-wise operations:
//
//	y := x.MulScalar(2.0)    // Multiply by scalar
//	y := x.AddScalar(1.0)    // Add scalar
//	y := x.Sqrt()            // Square root
//	y := x.Rsqrt()           // Reciprocal square root
//
// Type conversion:
//
//	i := x.Int64()           // Convert to int64
//	f := x.Float64()         // Convert to float64
//
// See method documentation for the full list of operations.
package tensor
