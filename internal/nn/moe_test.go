package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixture-ml/mixture/internal/backend/cpu"
	"github.com/mixture-ml/mixture/internal/tensor"
)

func TestSparseMoE_SingleExpertMatchesFFN(t *testing.T) {
	backend := cpu.New()

	// With one expert and enough capacity for every token, the MoE output
	// is exactly the expert FFN applied to each token (combine weight 1).
	const hidden, intermediate, seq = 4, 8, 3

	wi := tensor.Randn[float32](tensor.Shape{hidden, intermediate}, backend)
	wo := tensor.Randn[float32](tensor.Shape{intermediate, hidden}, backend)
	ffn, err := NewFFNFromWeights(wi, wo, NewSiLU[cpuBackend]())
	require.NoError(t, err)

	routerWeight := tensor.Randn[float32](tensor.Shape{hidden, 1}, backend)
	router, err := NewRouterFromWeight(RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          hidden,
		NumExperts:         1,
		NumSelectedExperts: 1,
	}, routerWeight)
	require.NoError(t, err)

	moe, err := NewSparseMoEFromParts(router, []*FFN[cpuBackend]{ffn}, hidden, seq)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{2, seq, hidden}, backend)
	output, routed := moe.ForwardRouted(input, RouteOptions{})

	require.Equal(t, tensor.Shape{2, seq, hidden}, output.Shape())
	// Single expert: softmax over one logit is 1 and no token is dropped,
	// so every token has exactly one combine slot carrying the full weight.
	mask := routed.DispatchMask.Data()
	for i, w := range routed.CombineArray.Data() {
		if mask[i] {
			assert.InDelta(t, 1.0, w, 1e-6, "combine[%d]", i)
		} else {
			assert.Zero(t, w, "combine[%d]", i)
		}
	}
	var dispatched int
	for _, m := range mask {
		if m {
			dispatched++
		}
	}
	assert.Equal(t, 2*seq, dispatched)

	want := ffn.Forward(input.Reshape(2*seq, hidden)).Data()
	got := output.Data()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "output[%d]", i)
	}
}

func TestSparseMoE_DroppedTokenOutputsZero(t *testing.T) {
	backend := cpu.New()

	const hidden = 3

	wi := tensor.Randn[float32](tensor.Shape{hidden, 6}, backend)
	wo := tensor.Randn[float32](tensor.Shape{6, hidden}, backend)
	ffn, err := NewFFNFromWeights(wi, wo, NewSiLU[cpuBackend]())
	require.NoError(t, err)

	routerWeight := tensor.Randn[float32](tensor.Shape{hidden, 1}, backend)
	router, err := NewRouterFromWeight(RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          hidden,
		NumExperts:         1,
		NumSelectedExperts: 1,
	}, routerWeight)
	require.NoError(t, err)

	// Capacity 1 with two tokens: the second token overflows and must come
	// back as an all-zero row (the residual path handles it upstream).
	moe, err := NewSparseMoEFromParts(router, []*FFN[cpuBackend]{ffn}, hidden, 1)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{1, 2, hidden}, backend)
	output, routed := moe.ForwardRouted(input, RouteOptions{})

	dispatch := routed.DispatchMask.Data()
	require.Equal(t, []bool{true, false}, dispatch)

	data := output.Data()
	for h := 0; h < hidden; h++ {
		assert.NotZero(t, data[h], "routed token should get an expert output")
		assert.Zero(t, data[hidden+h], "dropped token must output zero")
	}
}

func TestSparseMoE_Construction(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(7))

	cfg := RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          4,
		NumExperts:         3,
		NumSelectedExperts: 1,
	}
	moe, err := NewSparseMoE(backend, cfg, 16, 2, rng)
	require.NoError(t, err)

	// Router weight plus two projections per expert.
	assert.Len(t, moe.Parameters(), 1+3*2)
	assert.Equal(t, 2, moe.ExpertCapacity())

	_, err = NewSparseMoE(backend, cfg, 0, 2, rng)
	assert.Error(t, err)
	_, err = NewSparseMoE(backend, cfg, 16, 0, rng)
	assert.Error(t, err)
}

func TestSparseMoE_ExpertsChooseForward(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(13))

	cfg := RouterConfig{
		Type:       ExpertsChooseTokens,
		HiddenDim:  5,
		NumExperts: 2,
	}
	moe, err := NewSparseMoE(backend, cfg, 10, 3, rng)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{2, 4, 5}, backend)
	output, routed := moe.ForwardRouted(input, RouteOptions{})

	require.Equal(t, tensor.Shape{2, 4, 5}, output.Shape())
	assert.Equal(t, float32(0), routed.AuxiliaryLoss)
	assert.Greater(t, routed.RouterZLoss, float32(0))
}
