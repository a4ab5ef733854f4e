package nn

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Parameter wraps a tensor holding trainable weights.
//
// Parameters track an optional gradient tensor of the same shape so an
// external optimizer can update them. Gradients are not computed by this
// package; callers populate them via SetGrad.
type Parameter[B tensor.Backend] struct {
	// Name identifies the parameter (e.g. "router.weight").
	Name string

	// Data holds the current parameter values.
	Data *tensor.Tensor[float32, B]

	// Grad holds the accumulated gradient, or nil if none has been set.
	Grad *tensor.Tensor[float32, B]
}

// NewParameter creates a named parameter wrapping the given tensor.
func NewParameter[B tensor.Backend](name string, data *tensor.Tensor[float32, B]) *Parameter[B] {
	if data == nil {
		panic("nn: NewParameter called with nil data tensor")
	}
	return &Parameter[B]{Name: name, Data: data}
}

// Shape returns the shape of the parameter data.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.Data.Shape()
}

// NumElements returns the number of scalar values in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.Data.NumElements()
}

// SetGrad stores a gradient for this parameter.
//
// The gradient shape must match the parameter shape.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) error {
	if grad != nil && !grad.Shape().Equal(p.Data.Shape()) {
		return fmt.Errorf("nn: gradient shape %v does not match parameter %q shape %v",
			grad.Shape(), p.Name, p.Data.Shape())
	}
	p.Grad = grad
	return nil
}

// ZeroGrad clears the stored gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.Grad = nil
}

func (p *Parameter[B]) String() string {
	return fmt.Sprintf("Parameter(%s, shape=%v)", p.Name, p.Data.Shape())
}
