// Package nn implements neural network modules for the Mixture ML framework.
//
// This package provides building blocks for constructing sparse
// Mixture-of-Experts models:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear, FFN, Embedding: Dense building blocks
//   - Router: Sparse expert routing (token-choice and expert-choice)
//   - SparseMoE: Expert feed-forward layer driven by a router
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/mixture-ml/mixture/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}
