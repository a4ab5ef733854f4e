package tensor

// Typed wrappers over the Backend op surface.

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Add(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Sub(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Mul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Div(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// MatMul performs matrix multiplication: (M, K) @ (K, N) → (M, N).
//
// Example:
//
//	a := tensor.Randn[float32](Shape{3, 4}, backend)
//	b := tensor.Randn[float32](Shape{4, 5}, backend)
//	c := a.MatMul(b) // Shape: [3, 5]
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.MatMul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	result := t.backend.Reshape(t.raw, Shape(newShape))
	return New[T, B](result, t.backend)
}

// Transpose transposes the tensor by permuting its dimensions.
//
// If axes is empty, reverses all dimensions (for 2D, this is standard transpose).
// Otherwise, axes specifies the permutation.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	result := t.backend.Transpose(t.raw, axes...)
	return New[T, B](result, t.backend)
}

// T is a shortcut for 2D transpose (swaps rows and columns).
// Panics if the tensor is not 2D.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// Unsqueeze adds a dimension of size 1 at the specified position.
// Supports negative dim indexing.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	result := t.backend.Unsqueeze(t.raw, dim)
	return New[T, B](result, t.backend)
}

// Squeeze removes a dimension of size 1 at the specified position.
// Panics if the dimension size is not 1. Supports negative dim indexing.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	result := t.backend.Squeeze(t.raw, dim)
	return New[T, B](result, t.backend)
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (t *Tensor[T, B]) MulScalar(scalar T) *Tensor[T, B] {
	result := t.backend.MulScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// AddScalar adds a scalar value to each element of the tensor.
func (t *Tensor[T, B]) AddScalar(scalar T) *Tensor[T, B] {
	result := t.backend.AddScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// SubScalar subtracts a scalar value from each element of the tensor.
func (t *Tensor[T, B]) SubScalar(scalar T) *Tensor[T, B] {
	result := t.backend.SubScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// DivScalar divides each element of the tensor by a scalar value.
func (t *Tensor[T, B]) DivScalar(scalar T) *Tensor[T, B] {
	result := t.backend.DivScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// Exp computes the exponential (e^x) of each element.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	result := t.backend.Exp(t.raw)
	return New[T, B](result, t.backend)
}

// Log computes the natural logarithm (ln(x)) of each element.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	result := t.backend.Log(t.raw)
	return New[T, B](result, t.backend)
}

// Softmax computes softmax along the given dimension.
// The implementation subtracts the per-row maximum before exponentiating,
// so large-magnitude inputs do not overflow.
func (t *Tensor[T, B]) Softmax(dim int) *Tensor[T, B] {
	result := t.backend.Softmax(t.raw, dim)
	return New[T, B](result, t.backend)
}

// Sum computes the total sum of all elements (returns a scalar tensor).
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	result := t.backend.Sum(t.raw)
	return New[T, B](result, t.backend)
}

// SumDim sums elements along the specified dimension.
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	result := t.backend.SumDim(t.raw, dim, keepDim)
	return New[T, B](result, t.backend)
}

// MeanDim computes the mean of elements along the specified dimension.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	result := t.backend.MeanDim(t.raw, dim, keepDim)
	return New[T, B](result, t.backend)
}

// Argmax returns the index of the maximum value along a dimension.
// The reduced dimension is removed; the result has dtype int32.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int32, B] {
	result := t.backend.Argmax(t.raw, dim)
	return New[int32, B](result, t.backend)
}

// Cast converts a tensor to a different element type.
//
// Example:
//
//	mask := ... // *Tensor[bool, B]
//	counts := tensor.Cast[float32](mask).SumDim(0, false)
func Cast[U DType, T DType, B Backend](t *Tensor[T, B]) *Tensor[U, B] {
	var dummy U
	result := t.backend.Cast(t.raw, inferDataType(dummy))
	return New[U, B](result, t.backend)
}

// Embedding looks up rows of weight [V, H] by int32 token indices [...],
// producing a tensor of shape [..., H].
func Embedding[B Backend](weight *Tensor[float32, B], indices *Tensor[int32, B]) *Tensor[float32, B] {
	result := weight.backend.Embedding(weight.raw, indices.raw)
	return New[float32, B](result, weight.backend)
}
