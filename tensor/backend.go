// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go kernels
//
// Example:
//
//	import (
//	    "github.com/mixture-ml/mixture/tensor"
//	    "github.com/mixture-ml/mixture/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend interface {
	// Element-wise binary operations (with NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Math operations (element-wise).
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor

	// Softmax along a dimension, stable against large-magnitude inputs.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Type conversion.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Embedding looks up rows of weight [V, H] by int32 indices.
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
