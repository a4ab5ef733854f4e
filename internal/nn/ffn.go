package nn

import (
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// FFN is a two-layer position-wise feed-forward network:
//
//	y = W2 @ act(W1 @ x)
//
// Both projections are bias-free, matching the expert MLPs used in sparse
// Mixture-of-Experts layers.
type FFN[B tensor.Backend] struct {
	wi  *Linear[B]
	wo  *Linear[B]
	act Module[B]
}

// NewFFN creates a feed-forward network projecting hidden -> intermediate ->
// hidden with the given activation between the layers.
func NewFFN[B tensor.Backend](backend B, hidden, intermediate int, act Module[B], rng *rand.Rand) (*FFN[B], error) {
	wi, err := NewLinearNoBias(backend, hidden, intermediate, rng)
	if err != nil {
		return nil, err
	}
	wo, err := NewLinearNoBias(backend, intermediate, hidden, rng)
	if err != nil {
		return nil, err
	}
	if act == nil {
		act = NewReLU[B]()
	}
	return &FFN[B]{wi: wi, wo: wo, act: act}, nil
}

// NewFFNFromWeights creates a feed-forward network from existing projection
// weights. wi must be [hidden, intermediate] and wo [intermediate, hidden].
func NewFFNFromWeights[B tensor.Backend](wi, wo *tensor.Tensor[float32, B], act Module[B]) (*FFN[B], error) {
	in, err := NewLinearFromWeights(wi, nil)
	if err != nil {
		return nil, err
	}
	out, err := NewLinearFromWeights(wo, nil)
	if err != nil {
		return nil, err
	}
	if act == nil {
		act = NewReLU[B]()
	}
	return &FFN[B]{wi: in, wo: out, act: act}, nil
}

// Forward applies the feed-forward network to a 2D input [n, hidden].
func (f *FFN[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f.wo.Forward(f.act.Forward(f.wi.Forward(input)))
}

// Parameters returns the projection weights of both layers.
func (f *FFN[B]) Parameters() []*Parameter[B] {
	params := f.wi.Parameters()
	params = append(params, f.wo.Parameters()...)
	params = append(params, f.act.Parameters()...)
	return params
}
