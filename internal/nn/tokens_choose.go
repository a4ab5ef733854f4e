package nn

import (
	"sort"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// TokensChooseRouter implements top-k token-choice routing: every token
// picks its NumSelectedExperts highest-probability experts and requests a
// capacity slot from each. When an expert is oversubscribed the
// lowest-priority requests are dropped.
type TokensChooseRouter[B tensor.Backend] struct {
	routerBase[B]
}

// Route assigns each token to its top-k experts under the capacity budget.
//
// Slot priority follows original sequence order, or routing probability
// descending when BatchPrioritizedRouting is configured; equal
// probabilities keep the lower original index first. First-choice requests
// across all tokens are served before any second-choice request.
func (r *TokensChooseRouter[B]) Route(tokens *tensor.Tensor[float32, B], expertCapacity int, opts RouteOptions) RouterOutput[B] {
	checkCapacity(expertCapacity)
	logits, probs := r.score(tokens, opts)

	shape := tokens.Shape()
	batch, seq := shape[0], shape[1]
	numExperts := r.cfg.NumExperts
	k := r.cfg.NumSelectedExperts

	probsData := probs.Data()
	topExpert := make([]int32, batch*seq*k)
	topGate := make([]float32, batch*seq*k)

	// Top-k selection per token; ties resolve to the lower expert index.
	taken := make([]bool, numExperts)
	for t := 0; t < batch*seq; t++ {
		row := probsData[t*numExperts : (t+1)*numExperts]
		for e := range taken {
			taken[e] = false
		}
		for c := 0; c < k; c++ {
			best := -1
			for e := 0; e < numExperts; e++ {
				if taken[e] {
					continue
				}
				if best < 0 || row[e] > row[best] {
					best = e
				}
			}
			taken[best] = true
			topExpert[t*k+c] = int32(best)
			topGate[t*k+c] = row[best]
		}
	}

	var assignments []slotAssignment
	count := make([]int, numExperts)
	order := make([]int, seq)
	for g := 0; g < batch; g++ {
		for i := range order {
			order[i] = i
		}
		if r.cfg.BatchPrioritizedRouting {
			gate := topGate[g*seq*k : (g+1)*seq*k]
			sort.SliceStable(order, func(a, b int) bool {
				return gate[order[a]*k] > gate[order[b]*k]
			})
		}
		for e := range count {
			count[e] = 0
		}
		// All first choices are served before any second choice.
		for c := 0; c < k; c++ {
			for _, t := range order {
				idx := (g*seq+t)*k + c
				expert := int(topExpert[idx])
				slot := count[expert]
				count[expert]++
				if slot < expertCapacity {
					assignments = append(assignments, slotAssignment{
						group:  g,
						token:  t,
						expert: expert,
						slot:   slot,
						weight: topGate[idx],
					})
				}
			}
		}
	}

	dispatch, combine := buildDispatchCombine(tokens.Backend(), batch, seq, numExperts, expertCapacity, assignments)

	indices, err := tensor.FromSlice(topExpert, tensor.Shape{batch, seq, k}, tokens.Backend())
	if err != nil {
		panic(err)
	}
	return RouterOutput[B]{
		DispatchMask:  dispatch,
		CombineArray:  combine,
		AuxiliaryLoss: LoadBalancingLoss(probs, indices),
		RouterZLoss:   RouterZLoss(logits),
	}
}
