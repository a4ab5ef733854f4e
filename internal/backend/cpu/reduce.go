package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Sum computes the total sum of all elements in the tensor (scalar result).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var sum float32
		for _, v := range x.AsFloat32() {
			sum += v
		}
		result.AsFloat32()[0] = sum
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		result.AsFloat64()[0] = sum
	case tensor.Int32:
		var sum int32
		for _, v := range x.AsInt32() {
			sum += v
		}
		result.AsInt32()[0] = sum
	case tensor.Int64:
		var sum int64
		for _, v := range x.AsInt64() {
			sum += v
		}
		result.AsInt64()[0] = sum
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumDimKernel(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDimKernel(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// MeanDim computes the mean of tensor elements along the specified dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	sumResult := cpu.SumDim(x, dim, keepDim)

	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim = ndim + dim
	}
	divisor := float64(shape[dim])

	switch sumResult.DType() {
	case tensor.Float32:
		data := sumResult.AsFloat32()
		divisorF32 := float32(divisor)
		for i := range data {
			data[i] /= divisorF32
		}
	case tensor.Float64:
		data := sumResult.AsFloat64()
		for i := range data {
			data[i] /= divisor
		}
	default:
		panic(fmt.Sprintf("meandim: unsupported dtype %s", sumResult.DType()))
	}

	return sumResult
}

// sumDimKernel reduces along dim by accumulating every input element into
// the output position that drops the reduced coordinate.
func sumDimKernel[T ~float32 | ~float64](data, result []T, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	numElements := shape.NumElements()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for i := 0; i < numElements; i++ {
		outIdx := 0
		temp := i
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]

			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}

		result[outIdx] += data[i]
	}
}

// Argmax returns the index of the maximum value along a dimension.
// The reduced dimension is removed. The result has dtype int32; ties
// resolve to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("argmax: dimension %d out of range for %dD tensor", dim, ndim))
	}

	outShape := make(tensor.Shape, 0, ndim-1)
	for i := 0; i < ndim; i++ {
		if i != dim {
			outShape = append(outShape, shape[i])
		}
	}

	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		argmaxKernel(x.AsFloat32(), result.AsInt32(), shape, dim)
	case tensor.Float64:
		argmaxKernel(x.AsFloat64(), result.AsInt32(), shape, dim)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	return result
}

func argmaxKernel[T ~float32 | ~float64](src []T, dst []int32, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numRows := 1
	for i := range shape {
		if i != dim {
			numRows *= shape[i]
		}
	}

	for row := 0; row < numRows; row++ {
		base := 0
		rem := row
		for d := len(shape) - 1; d >= 0; d-- {
			if d == dim {
				continue
			}
			coord := rem % shape[d]
			rem /= shape[d]
			base += coord * strides[d]
		}

		best := int32(0)
		bestVal := src[base]
		for j := 1; j < dimSize; j++ {
			if v := src[base+j*dimStride]; v > bestVal {
				bestVal = v
				best = int32(j)
			}
		}

		// Output rows enumerate in the same order as the bases when the
		// reduced dimension is removed, because the remaining dimensions
		// keep their relative order.
		dst[rowOutIndex(row, shape, dim)] = best
	}
}

// rowOutIndex maps the row enumeration used by the reduction kernels onto
// the flat index of the dim-removed output tensor.
func rowOutIndex(row int, shape tensor.Shape, dim int) int {
	// Decompose row the same way the kernels do (last dim fastest,
	// skipping dim), then recompose over the output shape in order.
	ndim := len(shape)
	coords := make([]int, ndim)
	rem := row
	for d := ndim - 1; d >= 0; d-- {
		if d == dim {
			continue
		}
		coords[d] = rem % shape[d]
		rem /= shape[d]
	}

	out := 0
	for d := 0; d < ndim; d++ {
		if d == dim {
			continue
		}
		out = out*shape[d] + coords[d]
	}
	return out
}
