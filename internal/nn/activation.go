package nn

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Capability interfaces for activations. Backends advertise support by
// implementing the corresponding method; modules check at runtime.

// ReLUBackend is implemented by backends with a fused ReLU kernel.
type ReLUBackend interface {
	ReLU(x *tensor.RawTensor) *tensor.RawTensor
}

// SiLUBackend is implemented by backends with a fused SiLU kernel.
type SiLUBackend interface {
	SiLU(x *tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is implemented by backends with a fused sigmoid kernel.
type SigmoidBackend interface {
	Sigmoid(x *tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies the rectified linear unit element-wise: max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	rb, ok := any(backend).(ReLUBackend)
	if !ok {
		panic(fmt.Sprintf("nn: backend %s does not support ReLU", backend.Name()))
	}
	return tensor.New[float32](rb.ReLU(input.Raw()), backend)
}

func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// SiLU applies the sigmoid-weighted linear unit element-wise: x * sigmoid(x).
type SiLU[B tensor.Backend] struct{}

// NewSiLU creates a SiLU activation module.
func NewSiLU[B tensor.Backend]() *SiLU[B] { return &SiLU[B]{} }

func (s *SiLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	sb, ok := any(backend).(SiLUBackend)
	if !ok {
		panic(fmt.Sprintf("nn: backend %s does not support SiLU", backend.Name()))
	}
	return tensor.New[float32](sb.SiLU(input.Raw()), backend)
}

func (s *SiLU[B]) Parameters() []*Parameter[B] { return nil }
