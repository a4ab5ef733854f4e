package cpu

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Embedding looks up rows of weight [V, H] by int32 indices of any shape,
// producing a tensor of shape indices.Shape() + [H].
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	if weight.DType() != tensor.Float32 {
		panic(fmt.Sprintf("embedding: weight must be float32, got %s", weight.DType()))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}
	if len(weight.Shape()) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [vocab, hidden], got %v", weight.Shape()))
	}

	vocab, hidden := weight.Shape()[0], weight.Shape()[1]

	outShape := append(indices.Shape().Clone(), hidden)
	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: %v", err))
	}

	w := weight.AsFloat32()
	idx := indices.AsInt32()
	dst := result.AsFloat32()

	for i, id := range idx {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", id, vocab))
		}
		copy(dst[i*hidden:(i+1)*hidden], w[int(id)*hidden:(int(id)+1)*hidden])
	}

	return result
}
