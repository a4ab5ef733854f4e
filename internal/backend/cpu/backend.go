// Package cpu implements the pure-Go CPU backend for the Mixture ML framework.
package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// CPUBackend implements tensor operations on CPU in pure Go.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, opAdd)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, opSub)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, opMul)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, opDiv)
}

// binaryOpKind selects the arithmetic performed by binaryOp.
type binaryOpKind int

const (
	opAdd binaryOpKind = iota
	opSub
	opMul
	opDiv
)

// binaryOp computes an element-wise binary operation with broadcasting,
// dispatching to a dtype-specific kernel.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, kind binaryOpKind) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		binaryKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, kind)
	case tensor.Float64:
		binaryKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, kind)
	case tensor.Int32:
		binaryKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, kind)
	case tensor.Int64:
		binaryKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, kind)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

// numeric covers the dtypes binary kernels operate on.
type numeric interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// binaryKernel evaluates the op over all output positions. The same-shape
// case avoids index arithmetic; the broadcast path maps each output index
// back into the (possibly smaller) operand shapes.
func binaryKernel[T numeric](dst, a, b []T, aShape, bShape, outShape tensor.Shape, kind binaryOpKind) {
	apply := func(x, y T) T {
		switch kind {
		case opAdd:
			return x + y
		case opSub:
			return x - y
		case opMul:
			return x * y
		case opDiv:
			return x / y
		default:
			panic("unknown binary op")
		}
	}

	if aShape.Equal(bShape) {
		for i := range dst {
			dst[i] = apply(a[i], b[i])
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	idx := make([]int, len(outShape))
	for i := range dst {
		rem := i
		for d := range outShape {
			idx[d] = rem / outStrides[d]
			rem %= outStrides[d]
		}
		dst[i] = apply(a[broadcastOffset(idx, outShape, aShape)], b[broadcastOffset(idx, outShape, bShape)])
	}
}

// broadcastOffset maps an output index to the flat offset inside an
// operand whose shape may be missing leading dimensions or hold 1s.
func broadcastOffset(outIdx []int, outShape, opShape tensor.Shape) int {
	strides := opShape.ComputeStrides()
	shift := len(outShape) - len(opShape)

	offset := 0
	for d := range opShape {
		coord := outIdx[d+shift]
		if opShape[d] == 1 {
			coord = 0
		}
		offset += coord * strides[d]
	}
	return offset
}
