package nn

import (
	"fmt"
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// Linear applies an affine transformation: y = x @ W (+ b).
//
// The weight is stored as [in_features, out_features] so the forward pass is
// a plain matrix multiply without transposition. The bias is optional;
// router projections and expert MLPs are typically bias-free.
type Linear[B tensor.Backend] struct {
	InFeatures  int
	OutFeatures int

	weight *Parameter[B]
	bias   *Parameter[B] // nil when the layer has no bias
}

// NewLinear creates a linear layer with Xavier-initialized weights and a
// zero-initialized bias.
func NewLinear[B tensor.Backend](backend B, inFeatures, outFeatures int, rng *rand.Rand) (*Linear[B], error) {
	l, err := NewLinearNoBias(backend, inFeatures, outFeatures, rng)
	if err != nil {
		return nil, err
	}
	bias := tensor.Zeros[float32](tensor.Shape{outFeatures}, backend)
	l.bias = NewParameter("linear.bias", bias)
	return l, nil
}

// NewLinearNoBias creates a linear layer without a bias term.
func NewLinearNoBias[B tensor.Backend](backend B, inFeatures, outFeatures int, rng *rand.Rand) (*Linear[B], error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("nn: linear dimensions must be positive, got in=%d out=%d", inFeatures, outFeatures)
	}
	if rng == nil {
		return nil, fmt.Errorf("nn: linear initialization requires a random source")
	}
	weight := XavierUniform(backend, inFeatures, outFeatures, rng)
	return &Linear[B]{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		weight:      NewParameter("linear.weight", weight),
	}, nil
}

// NewLinearFromWeights creates a linear layer from existing weight and bias
// tensors. The weight must have shape [in_features, out_features]; bias may
// be nil for a bias-free layer.
func NewLinearFromWeights[B tensor.Backend](weight, bias *tensor.Tensor[float32, B]) (*Linear[B], error) {
	ws := weight.Shape()
	if len(ws) != 2 {
		return nil, fmt.Errorf("nn: linear weight must be 2D, got shape %v", ws)
	}
	l := &Linear[B]{
		InFeatures:  ws[0],
		OutFeatures: ws[1],
		weight:      NewParameter("linear.weight", weight),
	}
	if bias != nil {
		bs := bias.Shape()
		if len(bs) != 1 || bs[0] != ws[1] {
			return nil, fmt.Errorf("nn: linear bias shape %v does not match out_features %d", bs, ws[1])
		}
		l.bias = NewParameter("linear.bias", bias)
	}
	return l, nil
}

// Forward computes y = x @ W (+ b) for a 2D input [n, in_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input.MatMul(l.weight.Data)
	if l.bias != nil {
		out = out.Add(l.bias.Data)
	}
	return out
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }

// Bias returns the bias parameter, or nil for a bias-free layer.
func (l *Linear[B]) Bias() *Parameter[B] { return l.bias }

// Parameters returns the trainable parameters of the layer.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	params := []*Parameter[B]{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}
