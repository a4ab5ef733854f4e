// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/mixture-ml/mixture/internal/nn"
	"github.com/mixture-ml/mixture/internal/tensor"
)

// Module is the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-initialized weights and a
// zero-initialized bias.
func NewLinear[B tensor.Backend](backend B, inFeatures, outFeatures int, rng *rand.Rand) (*Linear[B], error) {
	return nn.NewLinear(backend, inFeatures, outFeatures, rng)
}

// NewLinearNoBias creates a linear layer without a bias term.
func NewLinearNoBias[B tensor.Backend](backend B, inFeatures, outFeatures int, rng *rand.Rand) (*Linear[B], error) {
	return nn.NewLinearNoBias(backend, inFeatures, outFeatures, rng)
}

// NewLinearFromWeights creates a linear layer from existing tensors.
// The weight must be [in_features, out_features]; bias may be nil.
func NewLinearFromWeights[B tensor.Backend](weight, bias *tensor.Tensor[float32, B]) (*Linear[B], error) {
	return nn.NewLinearFromWeights(weight, bias)
}

// FFN is a two-layer position-wise feed-forward network.
type FFN[B tensor.Backend] = nn.FFN[B]

// NewFFN creates a bias-free hidden → intermediate → hidden feed-forward
// network with the given activation between the layers.
func NewFFN[B tensor.Backend](backend B, hidden, intermediate int, act Module[B], rng *rand.Rand) (*FFN[B], error) {
	return nn.NewFFN(backend, hidden, intermediate, act, rng)
}

// Embedding maps token ids to dense vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates an embedding table initialized from N(0, 0.02).
func NewEmbedding[B tensor.Backend](backend B, numEmbeddings, embeddingDim int, rng *rand.Rand) (*Embedding[B], error) {
	return nn.NewEmbedding(backend, numEmbeddings, embeddingDim, rng)
}

// Activations

// ReLU applies the rectified linear unit element-wise.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// SiLU applies the sigmoid-weighted linear unit element-wise.
type SiLU[B tensor.Backend] = nn.SiLU[B]

// NewSiLU creates a SiLU activation module.
func NewSiLU[B tensor.Backend]() *SiLU[B] { return nn.NewSiLU[B]() }
