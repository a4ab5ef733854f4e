// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/mixture-ml/mixture/internal/tensor"
)

// Type aliases for the public API

// DType is a constraint for tensor data types.
// Supported types: float32, float64, int32, int64, bool.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only implemented device.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a generic type-safe tensor.
//
// T is the data type (float32, float64, int32, int64, bool).
// B is the backend implementation.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Element-wise addition
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Creation functions

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor filled with random values from the standard normal
// distribution N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// Rand creates a tensor filled with random values from the uniform
// distribution U(0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Rand[T, B](shape, b)
}

// Arange creates a 1D tensor with values from start to end (exclusive).
func Arange[T DType, B Backend](start, end T, b B) *Tensor[T, B] {
	return tensor.Arange[T, B](start, end, b)
}

// FromSlice creates a tensor from a Go slice.
//
// Example:
//
//	backend := cpu.New()
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New creates a tensor from a raw tensor.
//
// This is a low-level function. Most users should use creation functions
// like Zeros, Ones, or FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw creates a new raw tensor with the given shape, dtype, and device.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Cast converts a tensor to a different data type.
func Cast[U DType, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	return tensor.Cast[U, T, B](t)
}

// Embedding gathers rows of a [vocab, dim] weight table by integer index.
func Embedding[B Backend](weight *Tensor[float32, B], indices *Tensor[int32, B]) *Tensor[float32, B] {
	return tensor.Embedding(weight, indices)
}
