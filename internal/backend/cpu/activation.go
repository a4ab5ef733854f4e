package cpu

import (
	"fmt"
	"math"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in dimension.
//
// The per-row maximum is subtracted before exponentiating so the result is
// stable against large-magnitude inputs.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxKernel(result.AsFloat32(), x.AsFloat32(), shape, dim)
	case tensor.Float64:
		softmaxKernel(result.AsFloat64(), x.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxKernel[T ~float32 | ~float64](dst, src []T, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numRows := 1
	for i := range shape {
		if i != dim {
			numRows *= shape[i]
		}
	}

	// Iterate over every row (all index combinations with the softmax
	// dimension held out), then normalize along the dimension.
	for row := 0; row < numRows; row++ {
		// Base offset of this row in the flat buffer.
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

		maxVal := src[base]
		for j := 1; j < dimSize; j++ {
			if v := src[base+j*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for j := 0; j < dimSize; j++ {
			e := math.Exp(float64(src[base+j*dimStride] - maxVal))
			dst[base+j*dimStride] = T(e)
			sum += e
		}

		for j := 0; j < dimSize; j++ {
			dst[base+j*dimStride] = T(float64(dst[base+j*dimStride]) / sum)
		}
	}
}

// ReLU computes element-wise max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("relu: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}

// Sigmoid computes element-wise 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sigmoid: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(1.0 / (1.0 + math.Exp(float64(-v))))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = 1.0 / (1.0 + math.Exp(-v))
		}
	default:
		panic(fmt.Sprintf("sigmoid: unsupported dtype %s", x.DType()))
	}

	return result
}

// SiLU computes element-wise x * sigmoid(x).
func (cpu *CPUBackend) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("silu: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = v * float32(1.0/(1.0+math.Exp(float64(-v))))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = v / (1.0 + math.Exp(-v))
		}
	default:
		panic(fmt.Sprintf("silu: unsupported dtype %s", x.DType()))
	}

	return result
}
