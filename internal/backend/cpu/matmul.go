package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		matmulKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		matmulKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// matmulKernel performs naive matrix multiplication: C[i,j] = sum_k A[i,k] * B[k,j].
func matmulKernel[T ~float32 | ~float64](c, a, b []T, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum T
			for kIdx := 0; kIdx < k; kIdx++ {
				sum += a[i*k+kIdx] * b[kIdx*n+j]
			}
			c[i*n+j] = sum
		}
	}
}
