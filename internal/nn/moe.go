package nn

import (
	"fmt"
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// SparseMoE is a sparse Mixture-of-Experts feed-forward layer: a router
// plus NumExperts independent expert FFNs. Each forward pass routes tokens
// to experts under the capacity budget, runs every expert on its dispatched
// tokens, and gathers the weighted expert outputs back into token order.
//
// Tokens dropped for capacity contribute a zero output row, so the caller's
// residual connection carries them through unchanged.
type SparseMoE[B tensor.Backend] struct {
	router         Router[B]
	experts        []*FFN[B]
	expertCapacity int
	hiddenDim      int
	numExperts     int
}

// NewSparseMoE creates a sparse MoE layer with freshly initialized router
// and expert weights. Each expert is a bias-free hidden → intermediate →
// hidden FFN with a SiLU activation.
func NewSparseMoE[B tensor.Backend](backend B, cfg RouterConfig, intermediate, expertCapacity int, rng *rand.Rand) (*SparseMoE[B], error) {
	router, err := NewRouter(backend, cfg, rng)
	if err != nil {
		return nil, err
	}
	if intermediate <= 0 {
		return nil, fmt.Errorf("nn: intermediate dim must be positive, got %d", intermediate)
	}
	if expertCapacity <= 0 {
		return nil, fmt.Errorf("nn: expert capacity must be positive, got %d", expertCapacity)
	}
	experts := make([]*FFN[B], cfg.NumExperts)
	for i := range experts {
		experts[i], err = NewFFN(backend, cfg.HiddenDim, intermediate, NewSiLU[B](), rng)
		if err != nil {
			return nil, err
		}
	}
	return &SparseMoE[B]{
		router:         router,
		experts:        experts,
		expertCapacity: expertCapacity,
		hiddenDim:      cfg.HiddenDim,
		numExperts:     cfg.NumExperts,
	}, nil
}

// NewSparseMoEFromParts assembles a layer from an existing router and
// expert list, for callers that manage their own weights.
func NewSparseMoEFromParts[B tensor.Backend](router Router[B], experts []*FFN[B], hiddenDim, expertCapacity int) (*SparseMoE[B], error) {
	if router == nil || len(experts) == 0 {
		return nil, fmt.Errorf("nn: sparse MoE requires a router and at least one expert")
	}
	if expertCapacity <= 0 {
		return nil, fmt.Errorf("nn: expert capacity must be positive, got %d", expertCapacity)
	}
	return &SparseMoE[B]{
		router:         router,
		experts:        experts,
		expertCapacity: expertCapacity,
		hiddenDim:      hiddenDim,
		numExperts:     len(experts),
	}, nil
}

// Router returns the layer's router.
func (m *SparseMoE[B]) Router() Router[B] { return m.router }

// ExpertCapacity returns the per-expert capacity budget.
func (m *SparseMoE[B]) ExpertCapacity() int { return m.expertCapacity }

// ForwardRouted runs the full route/dispatch/expert/combine pass and
// returns the layer output [batch, seq, hidden] along with the routing
// result carrying the auxiliary losses.
func (m *SparseMoE[B]) ForwardRouted(input *tensor.Tensor[float32, B], opts RouteOptions) (*tensor.Tensor[float32, B], RouterOutput[B]) {
	routed := m.router.Route(input, m.expertCapacity, opts)

	shape := input.Shape()
	batch, seq, hidden := shape[0], shape[1], shape[2]
	capacity := m.expertCapacity

	inData := input.Data()
	dispatch := routed.DispatchMask.Data()
	combine := routed.CombineArray.Data()
	output := make([]float32, batch*seq*hidden)

	// One [batch*capacity, hidden] buffer per expert; empty slots stay
	// zero and the combine gather ignores them.
	for e, expert := range m.experts {
		buf := make([]float32, batch*capacity*hidden)
		occupied := false
		for g := 0; g < batch; g++ {
			for t := 0; t < seq; t++ {
				for c := 0; c < capacity; c++ {
					if !dispatch[((g*seq+t)*m.numExperts+e)*capacity+c] {
						continue
					}
					occupied = true
					copy(buf[(g*capacity+c)*hidden:(g*capacity+c+1)*hidden],
						inData[(g*seq+t)*hidden:(g*seq+t+1)*hidden])
				}
			}
		}
		if !occupied {
			continue
		}
		bufT, err := tensor.FromSlice(buf, tensor.Shape{batch * capacity, hidden}, input.Backend())
		if err != nil {
			panic(err)
		}
		expertOut := expert.Forward(bufT).Data()
		for g := 0; g < batch; g++ {
			for t := 0; t < seq; t++ {
				for c := 0; c < capacity; c++ {
					w := combine[((g*seq+t)*m.numExperts+e)*capacity+c]
					if w == 0 {
						continue
					}
					outRow := output[(g*seq+t)*hidden : (g*seq+t+1)*hidden]
					expRow := expertOut[(g*capacity+c)*hidden : (g*capacity+c+1)*hidden]
					for h := 0; h < hidden; h++ {
						outRow[h] += w * expRow[h]
					}
				}
			}
		}
	}

	outT, err := tensor.FromSlice(output, tensor.Shape{batch, seq, hidden}, input.Backend())
	if err != nil {
		panic(err)
	}
	return outT, routed
}

// Forward runs an inference-mode pass, discarding the routing losses.
func (m *SparseMoE[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardRouted(input, RouteOptions{})
	return out
}

// Parameters returns the router weight followed by every expert's weights.
func (m *SparseMoE[B]) Parameters() []*Parameter[B] {
	params := m.router.Parameters()
	for _, e := range m.experts {
		params = append(params, e.Parameters()...)
	}
	return params
}
