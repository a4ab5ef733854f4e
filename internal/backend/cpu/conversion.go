package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Cast converts a tensor to a different data type.
//
// Numeric casts go through float64; bool converts as false→0, true→1 and,
// in the other direction, nonzero→true.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result, err := tensor.NewRaw(x.Shape(), dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	vals := castToFloat64(x)
	switch dtype {
	case tensor.Float32:
		out := result.AsFloat32()
		for i, v := range vals {
			out[i] = float32(v)
		}
	case tensor.Float64:
		copy(result.AsFloat64(), vals)
	case tensor.Int32:
		out := result.AsInt32()
		for i, v := range vals {
			out[i] = int32(v)
		}
	case tensor.Int64:
		out := result.AsInt64()
		for i, v := range vals {
			out[i] = int64(v)
		}
	case tensor.Bool:
		out := result.AsBool()
		for i, v := range vals {
			out[i] = v != 0
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", dtype))
	}

	return result
}

func castToFloat64(x *tensor.RawTensor) []float64 {
	out := make([]float64, x.NumElements())
	switch x.DType() {
	case tensor.Float32:
		for i, v := range x.AsFloat32() {
			out[i] = float64(v)
		}
	case tensor.Float64:
		copy(out, x.AsFloat64())
	case tensor.Int32:
		for i, v := range x.AsInt32() {
			out[i] = float64(v)
		}
	case tensor.Int64:
		for i, v := range x.AsInt64() {
			out[i] = float64(v)
		}
	case tensor.Bool:
		for i, v := range x.AsBool() {
			if v {
				out[i] = 1
			}
		}
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}
	return out
}
