package cpu

import (
	"fmt"
	"math"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Exp computes element-wise exponential: exp(x).
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("exp: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(math.Exp(float64(v)))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = math.Exp(v)
		}
	default:
		panic(fmt.Sprintf("exp: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// Log computes element-wise natural logarithm: ln(x).
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("log: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value at index %d: %f", i, v))
			}
			dst[i] = float32(math.Log(float64(v)))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value at index %d: %f", i, v))
			}
			dst[i] = math.Log(v)
		}
	default:
		panic(fmt.Sprintf("log: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}
