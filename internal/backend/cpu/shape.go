package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Reshape returns a tensor with the same data but different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}

	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
// With no axes given, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		transposeKernel(result.AsFloat32(), t.AsFloat32(), shape, newShape, axes)
	case tensor.Float64:
		transposeKernel(result.AsFloat64(), t.AsFloat64(), shape, newShape, axes)
	case tensor.Int32:
		transposeKernel(result.AsInt32(), t.AsInt32(), shape, newShape, axes)
	case tensor.Int64:
		transposeKernel(result.AsInt64(), t.AsInt64(), shape, newShape, axes)
	case tensor.Bool:
		transposeKernel(result.AsBool(), t.AsBool(), shape, newShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

func transposeKernel[T any](dst, src []T, oldShape, newShape tensor.Shape, axes []int) {
	oldStrides := oldShape.ComputeStrides()
	newStrides := newShape.ComputeStrides()

	idx := make([]int, len(newShape))
	for i := range dst {
		rem := i
		for d := range newShape {
			idx[d] = rem / newStrides[d]
			rem %= newStrides[d]
		}

		srcOffset := 0
		for d, ax := range axes {
			srcOffset += idx[d] * oldStrides[ax]
		}
		dst[i] = src[srcOffset]
	}
}

// Unsqueeze adds a dimension of size 1 at the specified position.
// Supports negative dim indexing.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor", dim, ndim))
	}

	newShape := make(tensor.Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return cpu.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the specified position.
// Supports negative dim indexing.
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("squeeze: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, expected 1", dim, shape[dim]))
	}

	newShape := make(tensor.Shape, 0, ndim-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)

	return cpu.Reshape(x, newShape)
}
