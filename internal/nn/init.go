package nn

import (
	"math"
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// XavierUniform initializes a [fanIn, fanOut] weight tensor with values drawn
// uniformly from [-limit, limit] where limit = sqrt(6 / (fanIn + fanOut)).
func XavierUniform[B tensor.Backend](backend B, fanIn, fanOut int, rng *rand.Rand) *tensor.Tensor[float32, B] {
	limit := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	data := make([]float32, fanIn*fanOut)
	for i := range data {
		data[i] = (rng.Float32()*2 - 1) * limit
	}
	t, err := tensor.FromSlice(data, tensor.Shape{fanIn, fanOut}, backend)
	if err != nil {
		panic(err)
	}
	return t
}

// NormalInit initializes a weight tensor with values drawn from a normal
// distribution with the given mean and standard deviation.
func NormalInit[B tensor.Backend](backend B, shape tensor.Shape, mean, std float32, rng *rand.Rand) *tensor.Tensor[float32, B] {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(rng.NormFloat64())*std + mean
	}
	t, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		panic(err)
	}
	return t
}
