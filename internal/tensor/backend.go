package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The op surface is deliberately small: it covers the needs of the layers
// in this framework (dense projections, softmax routing, embedding lookup,
// reductions for losses and utilization statistics). Activation kernels
// are optional backend capabilities discovered via interfaces in the nn
// package rather than required here.
type Backend interface {
	// Element-wise binary operations (with NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor

	// Softmax along a dimension, stable against large-magnitude inputs.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                            // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension
	Argmax(x *RawTensor, dim int) *RawTensor                // index of maximum value along dimension

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Embedding looks up rows of weight [V, H] by int32 indices.
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
