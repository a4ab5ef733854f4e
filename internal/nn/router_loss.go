package nn

import (
	"fmt"
	"math"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// LoadBalancingLoss measures how unevenly tokens are spread across experts.
//
// routerProbs holds soft probabilities with the expert axis last, shape
// [tokens, experts] or [groups, tokens, experts]. expertIndices holds the
// discrete assignment, shape [tokens, k] or [groups, tokens, k] (or without
// the trailing k axis for single-expert assignment).
//
// Per group and expert the loss multiplies the fraction of tokens routed to
// the expert by the mean probability mass it received, averages over groups
// and experts, and scales by numExperts². A perfectly uniform assignment
// yields 1.0; larger values signal imbalance.
func LoadBalancingLoss[B tensor.Backend](routerProbs *tensor.Tensor[float32, B], expertIndices *tensor.Tensor[int32, B]) float32 {
	ps := routerProbs.Shape()
	if len(ps) != 2 && len(ps) != 3 {
		panic(fmt.Sprintf("nn: router probs must be 2D or 3D with experts last, got shape %v", ps))
	}
	numExperts := ps[len(ps)-1]
	groups, tokensPerGroup := 1, ps[0]
	if len(ps) == 3 {
		groups, tokensPerGroup = ps[0], ps[1]
	}

	is := expertIndices.Shape()
	selected := 1
	switch len(is) {
	case len(ps) - 1:
	case len(ps):
		selected = is[len(is)-1]
	default:
		panic(fmt.Sprintf("nn: expert indices shape %v does not match probs shape %v", is, ps))
	}
	if is[0] != ps[0] || (len(ps) == 3 && is[1] != ps[1]) {
		panic(fmt.Sprintf("nn: expert indices shape %v does not match probs shape %v", is, ps))
	}

	probs := routerProbs.Data()
	indices := expertIndices.Data()

	var loss float64
	mask := make([]bool, numExperts)
	fraction := make([]float64, numExperts)
	meanProb := make([]float64, numExperts)
	for g := 0; g < groups; g++ {
		for e := range fraction {
			fraction[e], meanProb[e] = 0, 0
		}
		for t := 0; t < tokensPerGroup; t++ {
			row := g*tokensPerGroup + t
			for e := range mask {
				mask[e] = false
			}
			for k := 0; k < selected; k++ {
				idx := int(indices[row*selected+k])
				if idx < 0 || idx >= numExperts {
					panic(fmt.Sprintf("nn: expert index %d out of range [0, %d)", idx, numExperts))
				}
				mask[idx] = true
			}
			for e := 0; e < numExperts; e++ {
				if mask[e] {
					fraction[e]++
				}
				meanProb[e] += float64(probs[row*numExperts+e])
			}
		}
		for e := 0; e < numExperts; e++ {
			loss += fraction[e] / float64(tokensPerGroup) * (meanProb[e] / float64(tokensPerGroup))
		}
	}
	loss = loss / float64(groups*numExperts) * float64(numExperts*numExperts)
	return float32(loss)
}

// RouterZLoss penalizes large-magnitude router logits.
//
// routerLogits has the expert axis last, shape [tokens, experts] or
// [groups, tokens, experts]. The loss is the mean over tokens of
// logsumexp(logits over experts)².
func RouterZLoss[B tensor.Backend](routerLogits *tensor.Tensor[float32, B]) float32 {
	ls := routerLogits.Shape()
	if len(ls) != 2 && len(ls) != 3 {
		panic(fmt.Sprintf("nn: router logits must be 2D or 3D with experts last, got shape %v", ls))
	}
	numExperts := ls[len(ls)-1]
	numTokens := ls.NumElements() / numExperts

	logits := routerLogits.Data()
	var loss float64
	for t := 0; t < numTokens; t++ {
		row := logits[t*numExperts : (t+1)*numExperts]
		maxVal := float64(row[0])
		for _, v := range row[1:] {
			if float64(v) > maxVal {
				maxVal = float64(v)
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v) - maxVal)
		}
		logZ := maxVal + math.Log(sumExp)
		loss += logZ * logZ
	}
	return float32(loss / float64(numTokens))
}
