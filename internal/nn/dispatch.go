package nn

import (
	"fmt"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// slotAssignment records one token occupying one capacity slot of one
// expert, weighted by its routing probability.
type slotAssignment struct {
	group  int
	token  int
	expert int
	slot   int
	weight float32
}

// buildDispatchCombine converts slot assignments into the dispatch mask and
// combine array, both shaped [batch, seq, experts, capacity].
//
// Positions without an assignment stay false/zero, so capacity-dropped
// tokens produce all-zero rows and bypass expert computation entirely.
func buildDispatchCombine[B tensor.Backend](backend B, batch, seq, numExperts, capacity int, assignments []slotAssignment) (*tensor.Tensor[bool, B], *tensor.Tensor[float32, B]) {
	shape := tensor.Shape{batch, seq, numExperts, capacity}
	dispatch := make([]bool, shape.NumElements())
	combine := make([]float32, shape.NumElements())
	for _, a := range assignments {
		if a.slot < 0 || a.slot >= capacity {
			panic(fmt.Sprintf("nn: capacity slot %d out of range [0, %d)", a.slot, capacity))
		}
		idx := ((a.group*seq+a.token)*numExperts+a.expert)*capacity + a.slot
		dispatch[idx] = true
		combine[idx] = a.weight
	}
	dispatchT, err := tensor.FromSlice(dispatch, shape.Clone(), backend)
	if err != nil {
		panic(err)
	}
	combineT, err := tensor.FromSlice(combine, shape.Clone(), backend)
	if err != nil {
		panic(err)
	}
	return dispatchT, combineT
}
