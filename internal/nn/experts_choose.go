package nn

import (
	"sort"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// ExpertsChooseRouter inverts the selection direction: each expert ranks
// every token in its group by affinity and takes the top expertCapacity of
// them. A token may be served by zero, one, or several experts; no
// per-token cap applies.
//
// Expert-choice routing is balanced by construction (every expert fills its
// capacity whenever enough tokens exist), so the auxiliary loss is zero.
type ExpertsChooseRouter[B tensor.Backend] struct {
	routerBase[B]
}

// Route fills each expert's capacity slots with its highest-affinity
// tokens. Equal affinities keep the lower token index first; when
// expertCapacity exceeds the sequence length the surplus slots stay empty.
func (r *ExpertsChooseRouter[B]) Route(tokens *tensor.Tensor[float32, B], expertCapacity int, opts RouteOptions) RouterOutput[B] {
	checkCapacity(expertCapacity)
	logits, probs := r.score(tokens, opts)

	shape := tokens.Shape()
	batch, seq := shape[0], shape[1]
	numExperts := r.cfg.NumExperts

	probsData := probs.Data()
	var assignments []slotAssignment
	ranked := make([]int, seq)
	for g := 0; g < batch; g++ {
		for e := 0; e < numExperts; e++ {
			for i := range ranked {
				ranked[i] = i
			}
			sort.SliceStable(ranked, func(a, b int) bool {
				pa := probsData[(g*seq+ranked[a])*numExperts+e]
				pb := probsData[(g*seq+ranked[b])*numExperts+e]
				return pa > pb
			})
			slots := min(expertCapacity, seq)
			for slot := 0; slot < slots; slot++ {
				t := ranked[slot]
				assignments = append(assignments, slotAssignment{
					group:  g,
					token:  t,
					expert: e,
					slot:   slot,
					weight: probsData[(g*seq+t)*numExperts+e],
				})
			}
		}
	}

	dispatch, combine := buildDispatchCombine(tokens.Backend(), batch, seq, numExperts, expertCapacity, assignments)

	return RouterOutput[B]{
		DispatchMask:  dispatch,
		CombineArray:  combine,
		AuxiliaryLoss: 0,
		RouterZLoss:   RouterZLoss(logits),
	}
}
