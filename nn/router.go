// Copyright 2026 Mixture ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/mixture-ml/mixture/internal/nn"
	"github.com/mixture-ml/mixture/internal/tensor"
)

// Sparse Mixture-of-Experts routing

// RouterType selects the sparse routing strategy.
type RouterType = nn.RouterType

// Routing strategies.
const (
	TokensChooseExperts RouterType = nn.TokensChooseExperts
	ExpertsChooseTokens RouterType = nn.ExpertsChooseTokens
)

// RouterConfig holds the immutable configuration of a sparse router.
type RouterConfig = nn.RouterConfig

// RouteOptions carries the per-call routing mode (training flag, RNG).
type RouteOptions = nn.RouteOptions

// RouterOutput is the result of one routing forward pass: dispatch mask,
// combine array, and the auxiliary losses.
type RouterOutput[B tensor.Backend] = nn.RouterOutput[B]

// Router assigns tokens to experts under a per-expert capacity budget.
type Router[B tensor.Backend] = nn.Router[B]

// TokensChooseRouter implements top-k token-choice routing.
type TokensChooseRouter[B tensor.Backend] = nn.TokensChooseRouter[B]

// ExpertsChooseRouter implements expert-choice routing.
type ExpertsChooseRouter[B tensor.Backend] = nn.ExpertsChooseRouter[B]

// NewRouter creates a router of the configured type with a freshly
// initialized projection weight.
func NewRouter[B tensor.Backend](backend B, cfg RouterConfig, rng *rand.Rand) (Router[B], error) {
	return nn.NewRouter(backend, cfg, rng)
}

// NewRouterFromWeight creates a router around an existing projection weight
// of shape [hidden_dim, num_experts].
func NewRouterFromWeight[B tensor.Backend](cfg RouterConfig, weight *tensor.Tensor[float32, B]) (Router[B], error) {
	return nn.NewRouterFromWeight(cfg, weight)
}

// LoadBalancingLoss measures how unevenly tokens are spread across experts.
// A perfectly uniform assignment yields 1.0.
func LoadBalancingLoss[B tensor.Backend](routerProbs *tensor.Tensor[float32, B], expertIndices *tensor.Tensor[int32, B]) float32 {
	return nn.LoadBalancingLoss(routerProbs, expertIndices)
}

// RouterZLoss penalizes large-magnitude router logits: the mean over tokens
// of logsumexp(logits over experts)².
func RouterZLoss[B tensor.Backend](routerLogits *tensor.Tensor[float32, B]) float32 {
	return nn.RouterZLoss(routerLogits)
}

// SparseMoE is a sparse Mixture-of-Experts feed-forward layer.
type SparseMoE[B tensor.Backend] = nn.SparseMoE[B]

// NewSparseMoE creates a sparse MoE layer with freshly initialized router
// and expert weights.
func NewSparseMoE[B tensor.Backend](backend B, cfg RouterConfig, intermediate, expertCapacity int, rng *rand.Rand) (*SparseMoE[B], error) {
	return nn.NewSparseMoE(backend, cfg, intermediate, expertCapacity, rng)
}

// NewSparseMoEFromParts assembles a layer from an existing router and
// expert list.
func NewSparseMoEFromParts[B tensor.Backend](router Router[B], experts []*FFN[B], hiddenDim, expertCapacity int) (*SparseMoE[B], error) {
	return nn.NewSparseMoEFromParts(router, experts, hiddenDim, expertCapacity)
}
