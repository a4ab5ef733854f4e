package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixture-ml/mixture/internal/backend/cpu"
	"github.com/mixture-ml/mixture/internal/tensor"
)

type cpuBackend = *cpu.CPUBackend

func float32Tensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, cpuBackend] {
	t.Helper()
	ten, err := tensor.FromSlice[float32](data, shape, cpu.New())
	require.NoError(t, err)
	return ten
}

func int32Tensor(t *testing.T, data []int32, shape tensor.Shape) *tensor.Tensor[int32, cpuBackend] {
	t.Helper()
	ten, err := tensor.FromSlice[int32](data, shape, cpu.New())
	require.NoError(t, err)
	return ten
}

func TestLoadBalancingLoss_Reference(t *testing.T) {
	probs := float32Tensor(t, []float32{
		0.35490513, 0.60419905,
		0.4275843, 0.23061597,
		0.32985854, 0.43953657,
		0.25099766, 0.27730572,
		0.7678207, 0.71474564,
	}, tensor.Shape{5, 2})
	indices := int32Tensor(t, []int32{0, 1, 1, 0, 0}, tensor.Shape{5, 1})

	loss := LoadBalancingLoss(probs, indices)
	assert.InDelta(t, 0.8741045, loss, 1e-5)
}

func TestLoadBalancingLoss_UniformIsOne(t *testing.T) {
	// Uniform probabilities and a perfectly balanced assignment.
	probs := float32Tensor(t, []float32{
		0.25, 0.25, 0.25, 0.25,
		0.25, 0.25, 0.25, 0.25,
		0.25, 0.25, 0.25, 0.25,
		0.25, 0.25, 0.25, 0.25,
	}, tensor.Shape{4, 4})
	indices := int32Tensor(t, []int32{0, 1, 2, 3}, tensor.Shape{4, 1})

	loss := LoadBalancingLoss(probs, indices)
	assert.InDelta(t, 1.0, loss, 1e-6)
}

func TestLoadBalancingLoss_ExpertPermutationInvariant(t *testing.T) {
	// Relabeling experts (swap columns 0 and 1, swap index labels) must not
	// change the loss.
	probs := float32Tensor(t, []float32{
		0.35490513, 0.60419905,
		0.4275843, 0.23061597,
		0.32985854, 0.43953657,
		0.25099766, 0.27730572,
		0.7678207, 0.71474564,
	}, tensor.Shape{5, 2})
	indices := int32Tensor(t, []int32{0, 1, 1, 0, 0}, tensor.Shape{5, 1})

	swappedProbs := float32Tensor(t, []float32{
		0.60419905, 0.35490513,
		0.23061597, 0.4275843,
		0.43953657, 0.32985854,
		0.27730572, 0.25099766,
		0.71474564, 0.7678207,
	}, tensor.Shape{5, 2})
	swappedIndices := int32Tensor(t, []int32{1, 0, 0, 1, 1}, tensor.Shape{5, 1})

	assert.InDelta(t, LoadBalancingLoss(probs, indices), LoadBalancingLoss(swappedProbs, swappedIndices), 1e-7)
}

func TestRouterZLoss_Reference(t *testing.T) {
	logits := float32Tensor(t, []float32{
		-4.2124424, 3.891939, -3.6481273, 1.8849981,
		0.32625437, 2.918651, 0.84758997, -4.556842,
		-3.32062, 4.6977115, -0.15439987, 0.44086337,
		3.4467149, 4.3436565, -4.7224274, -4.264637,
		-2.224406, -2.5318158, -1.3832569, 1.1891162,
		-2.320062, -0.44705987, 4.289819, -0.00662684,

		0.99470854, -0.6992364, 0.25503993, 4.2952085,
		3.5937333, -3.2408535, -4.298278, 4.426601,
		0.7669008, 2.6588762, 2.4505413, 4.6051874,
		0.23330331, -3.0845237, 0.6262374, -2.9865491,
		0.7595146, -2.1099675, -4.155346, -2.8326452,
		2.3771453, 1.004138, -3.1781673, 0.7581556,
	}, tensor.Shape{2, 6, 4})

	loss := RouterZLoss(logits)
	assert.InDelta(t, 13.786719, loss, 1e-4)
}

// tokensChooseFixture builds the 2x3x4 token batch and [4,2] projection
// weight shared by the token-choice routing tests.
func tokensChooseFixture(t *testing.T) (*tensor.Tensor[float32, cpuBackend], Router[cpuBackend]) {
	t.Helper()
	input := float32Tensor(t, []float32{
		0.6433916, 0.18188512, 0.02240455, 0.563781,
		0.5526401, 0.0958724, 0.34253013, 0.03644359,
		0.08744538, 0.7909105, 0.35205448, 0.53364205,

		0.02900076, 0.4168595, 0.5802449, 0.91486526,
		0.27414513, 0.14991808, 0.9383501, 0.5209162,
		0.51207185, 0.90618336, 0.7309413, 0.95533276,
	}, tensor.Shape{2, 3, 4})
	weight := float32Tensor(t, []float32{
		0.02008116, 0.00620062,
		-0.00811031, -0.00031623,
		-0.03542127, 0.02703803,
		0.02335377, -0.02971946,
	}, tensor.Shape{4, 2})

	router, err := NewRouterFromWeight(RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          4,
		NumExperts:         2,
		NumSelectedExperts: 1,
	}, weight)
	require.NoError(t, err)
	return input, router
}

func TestTokensChooseRouter_Reference(t *testing.T) {
	input, router := tokensChooseFixture(t)
	out := router.Route(input, 1, RouteOptions{})

	require.Equal(t, tensor.Shape{2, 3, 2, 1}, out.DispatchMask.Shape())
	require.Equal(t, tensor.Shape{2, 3, 2, 1}, out.CombineArray.Shape())

	wantDispatch := []bool{
		true, false, // group 0, token 0 -> expert 0
		false, true, // token 1 -> expert 1
		false, false, // token 2 dropped for capacity

		true, false, // group 1, token 0 -> expert 0
		false, true, // token 1 -> expert 1
		false, false, // token 2 dropped
	}
	assert.Equal(t, wantDispatch, out.DispatchMask.Data())

	wantCombine := []float32{
		0.5090, 0,
		0, 0.5031,
		0, 0,

		0.5024, 0,
		0, 0.5071,
		0, 0,
	}
	combine := out.CombineArray.Data()
	require.Len(t, combine, len(wantCombine))
	for i := range wantCombine {
		assert.InDelta(t, wantCombine[i], combine[i], 1e-4, "combine[%d]", i)
	}

	assert.InDelta(t, 1.000308, out.AuxiliaryLoss, 1e-5)
	assert.InDelta(t, 0.4789799, out.RouterZLoss, 1e-5)
}

func TestExpertsChooseRouter_Reference(t *testing.T) {
	input := float32Tensor(t, []float32{
		0.6433916, 0.18188512, 0.02240455,
		0.563781, 0.5526401, 0.0958724,
		0.34253013, 0.03644359, 0.08744538,
		0.7909105, 0.35205448, 0.53364205,

		0.02900076, 0.4168595, 0.5802449,
		0.91486526, 0.27414513, 0.14991808,
		0.9383501, 0.5209162, 0.51207185,
		0.90618336, 0.7309413, 0.95533276,
	}, tensor.Shape{2, 4, 3})
	weight := float32Tensor(t, []float32{
		-0.00107201, 0.01544739,
		-0.0087319, 0.01314363,
		0.03530733, 0.03709853,
	}, tensor.Shape{3, 2})

	router, err := NewRouterFromWeight(RouterConfig{
		Type:       ExpertsChooseTokens,
		HiddenDim:  3,
		NumExperts: 2,
	}, weight)
	require.NoError(t, err)

	out := router.Route(input, 2, RouteOptions{})

	require.Equal(t, tensor.Shape{2, 4, 2, 2}, out.DispatchMask.Shape())

	wantDispatch := []bool{
		// group 0
		false, true, false, false, // token 0: expert 0 slot 1
		false, false, false, true, // token 1: expert 1 slot 1
		true, false, false, false, // token 2: expert 0 slot 0
		false, false, true, false, // token 3: expert 1 slot 0
		// group 1
		true, false, false, false, // token 0: expert 0 slot 0
		false, true, false, false, // token 1: expert 0 slot 1
		false, false, false, true, // token 2: expert 1 slot 1
		false, false, true, false, // token 3: expert 1 slot 0
	}
	assert.Equal(t, wantDispatch, out.DispatchMask.Data())

	wantCombine := []float32{
		0, 0.4963, 0, 0,
		0, 0, 0, 0.5054,
		0.4983, 0, 0, 0,
		0, 0, 0.5054, 0,

		0.4973, 0, 0, 0,
		0, 0.4947, 0, 0,
		0, 0, 0, 0.5070,
		0, 0, 0.5082, 0,
	}
	combine := out.CombineArray.Data()
	require.Len(t, combine, len(wantCombine))
	for i := range wantCombine {
		assert.InDelta(t, wantCombine[i], combine[i], 1e-4, "combine[%d]", i)
	}

	assert.Equal(t, float32(0), out.AuxiliaryLoss)
	assert.InDelta(t, 0.507016, out.RouterZLoss, 1e-5)
}

func TestRouters_CombineZeroWhereNotDispatched(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	input := tensor.Randn[float32](tensor.Shape{2, 8, 6}, cpu.New())

	for _, routerType := range []RouterType{TokensChooseExperts, ExpertsChooseTokens} {
		router, err := NewRouter(cpu.New(), RouterConfig{
			Type:               routerType,
			HiddenDim:          6,
			NumExperts:         4,
			NumSelectedExperts: 2,
		}, rng)
		require.NoError(t, err)

		out := router.Route(input, 3, RouteOptions{})
		dispatch := out.DispatchMask.Data()
		combine := out.CombineArray.Data()
		for i := range dispatch {
			if !dispatch[i] {
				assert.Zero(t, combine[i], "%s: combine[%d] nonzero without dispatch", routerType, i)
			} else {
				assert.Greater(t, combine[i], float32(0), "%s: dispatched slot has no weight", routerType)
			}
		}
	}
}

func TestTokensChooseRouter_PerTokenSelectionBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	router, err := NewRouter(cpu.New(), RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          5,
		NumExperts:         4,
		NumSelectedExperts: 2,
	}, rng)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{3, 7, 5}, cpu.New())
	out := router.Route(input, 2, RouteOptions{})

	dispatch := out.DispatchMask.Data()
	slotsPerToken := 4 * 2
	for token := 0; token < 3*7; token++ {
		selected := 0
		for i := 0; i < slotsPerToken; i++ {
			if dispatch[token*slotsPerToken+i] {
				selected++
			}
		}
		assert.LessOrEqual(t, selected, 2, "token %d dispatched to too many experts", token)
	}
}

func TestExpertsChooseRouter_PerExpertCapacityBound(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	router, err := NewRouter(cpu.New(), RouterConfig{
		Type:       ExpertsChooseTokens,
		HiddenDim:  5,
		NumExperts: 3,
	}, rng)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{2, 9, 5}, cpu.New())
	out := router.Route(input, 4, RouteOptions{})

	// Sum the dispatch mask over capacity slots and tokens per expert.
	counts := tensor.Cast[float32](out.DispatchMask).SumDim(3, false).SumDim(1, false)
	require.Equal(t, tensor.Shape{2, 3}, counts.Shape())
	for i, c := range counts.Data() {
		assert.LessOrEqual(t, c, float32(4), "expert column %d over capacity", i)
	}
}

func TestExpertsChooseRouter_CapacityBeyondSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	router, err := NewRouter(cpu.New(), RouterConfig{
		Type:       ExpertsChooseTokens,
		HiddenDim:  4,
		NumExperts: 2,
	}, rng)
	require.NoError(t, err)

	// Capacity 5 with only 3 tokens: each expert fills 3 slots, the rest
	// stay empty.
	input := tensor.Randn[float32](tensor.Shape{1, 3, 4}, cpu.New())
	out := router.Route(input, 5, RouteOptions{})

	counts := tensor.Cast[float32](out.DispatchMask).SumDim(3, false).SumDim(1, false)
	for _, c := range counts.Data() {
		assert.Equal(t, float32(3), c)
	}
}

func TestRouter_InferenceIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	router, err := NewRouter(cpu.New(), RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          6,
		NumExperts:         3,
		NumSelectedExperts: 1,
		JitterNoise:        0.01,
	}, rng)
	require.NoError(t, err)

	input := tensor.Randn[float32](tensor.Shape{2, 5, 6}, cpu.New())

	// Training=false disables jitter, so repeated calls are bit-identical.
	first := router.Route(input, 2, RouteOptions{})
	second := router.Route(input, 2, RouteOptions{})

	assert.Equal(t, first.DispatchMask.Data(), second.DispatchMask.Data())
	assert.Equal(t, first.CombineArray.Data(), second.CombineArray.Data())
	assert.Equal(t, first.AuxiliaryLoss, second.AuxiliaryLoss)
	assert.Equal(t, first.RouterZLoss, second.RouterZLoss)
}

func TestTokensChooseRouter_BatchPrioritizedRouting(t *testing.T) {
	// With an identity-like projection, token 1 scores higher on expert 0
	// than token 0. Under capacity 1, sequence order gives the slot to
	// token 0; batch-prioritized routing gives it to token 1.
	weightData := []float32{1, 0, 0, 1}
	inputData := []float32{
		0.5, 0.0, // token 0, modest preference for expert 0
		2.0, 0.0, // token 1, strong preference for expert 0
	}

	for _, tc := range []struct {
		name      string
		bpr       bool
		wantToken int
	}{
		{name: "sequence order", bpr: false, wantToken: 0},
		{name: "batch prioritized", bpr: true, wantToken: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			weight := float32Tensor(t, weightData, tensor.Shape{2, 2})
			router, err := NewRouterFromWeight(RouterConfig{
				Type:                    TokensChooseExperts,
				HiddenDim:               2,
				NumExperts:              2,
				NumSelectedExperts:      1,
				BatchPrioritizedRouting: tc.bpr,
			}, weight)
			require.NoError(t, err)

			input := float32Tensor(t, inputData, tensor.Shape{1, 2, 2})
			out := router.Route(input, 1, RouteOptions{})

			dispatch := out.DispatchMask.Data()
			// Layout [1, 2, 2, 1]: token t, expert e at index t*2+e.
			assert.True(t, dispatch[tc.wantToken*2+0], "expected token %d in expert 0", tc.wantToken)
			assert.False(t, dispatch[(1-tc.wantToken)*2+0], "expected token %d dropped", 1-tc.wantToken)
		})
	}
}

func TestTokensChooseRouter_TieBreakKeepsLowerIndex(t *testing.T) {
	// Identical tokens produce identical probabilities; the stable ordering
	// must give the capacity slot to the earlier token, with or without
	// batch-prioritized routing.
	for _, bpr := range []bool{false, true} {
		weight := float32Tensor(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2})
		router, err := NewRouterFromWeight(RouterConfig{
			Type:                    TokensChooseExperts,
			HiddenDim:               2,
			NumExperts:              2,
			NumSelectedExperts:      1,
			BatchPrioritizedRouting: bpr,
		}, weight)
		require.NoError(t, err)

		input := float32Tensor(t, []float32{
			1.0, 0.0,
			1.0, 0.0,
		}, tensor.Shape{1, 2, 2})
		out := router.Route(input, 1, RouteOptions{})

		dispatch := out.DispatchMask.Data()
		assert.True(t, dispatch[0], "bpr=%v: token 0 should hold the slot", bpr)
		assert.False(t, dispatch[2], "bpr=%v: token 1 should be dropped", bpr)
	}
}

func TestRouterConfig_Validate(t *testing.T) {
	valid := RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          8,
		NumExperts:         4,
		NumSelectedExperts: 2,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*RouterConfig)
	}{
		{"unknown type", func(c *RouterConfig) { c.Type = "best_effort" }},
		{"zero hidden dim", func(c *RouterConfig) { c.HiddenDim = 0 }},
		{"zero experts", func(c *RouterConfig) { c.NumExperts = 0 }},
		{"zero selected", func(c *RouterConfig) { c.NumSelectedExperts = 0 }},
		{"selected exceeds experts", func(c *RouterConfig) { c.NumSelectedExperts = 5 }},
		{"negative jitter", func(c *RouterConfig) { c.JitterNoise = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRouter_Preconditions(t *testing.T) {
	input, router := tokensChooseFixture(t)

	assert.Panics(t, func() {
		router.Route(input, 0, RouteOptions{})
	}, "non-positive capacity must panic")

	wrongHidden := tensor.Randn[float32](tensor.Shape{2, 3, 5}, cpu.New())
	assert.Panics(t, func() {
		router.Route(wrongHidden, 1, RouteOptions{})
	}, "hidden dim mismatch must panic")

	jittery, err := NewRouterFromWeight(RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          4,
		NumExperts:         2,
		NumSelectedExperts: 1,
		JitterNoise:        0.1,
	}, float32Tensor(t, make([]float32, 8), tensor.Shape{4, 2}))
	require.NoError(t, err)
	assert.Panics(t, func() {
		jittery.Route(input, 1, RouteOptions{Training: true})
	}, "training jitter without an RNG must panic")
}

func TestRouter_JitterPerturbsRouting(t *testing.T) {
	input, _ := tokensChooseFixture(t)
	weight := float32Tensor(t, []float32{
		0.02008116, 0.00620062,
		-0.00811031, -0.00031623,
		-0.03542127, 0.02703803,
		0.02335377, -0.02971946,
	}, tensor.Shape{4, 2})
	router, err := NewRouterFromWeight(RouterConfig{
		Type:               TokensChooseExperts,
		HiddenDim:          4,
		NumExperts:         2,
		NumSelectedExperts: 1,
		JitterNoise:        0.5,
	}, weight)
	require.NoError(t, err)

	clean := router.Route(input, 1, RouteOptions{})
	noisy := router.Route(input, 1, RouteOptions{Training: true, RNG: rand.New(rand.NewSource(1))})

	// Jitter moves the combine weights; the output still satisfies the
	// dispatch/combine contract.
	assert.NotEqual(t, clean.CombineArray.Data(), noisy.CombineArray.Data())
	dispatch := noisy.DispatchMask.Data()
	for i, w := range noisy.CombineArray.Data() {
		if !dispatch[i] {
			assert.Zero(t, w)
		}
	}
}
