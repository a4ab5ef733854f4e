package cpu_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mixture-ml/mixture/internal/backend/cpu"
	"github.com/mixture-ml/mixture/internal/tensor"
)

func TestSoftmax_RowsSumToOne(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	sm := x.Softmax(1)

	data := sm.Data()
	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			v := data[row*3+col]
			assert.Greater(t, v, float32(0))
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "row %d", row)
	}
}

func TestSoftmax_StableForLargeLogits(t *testing.T) {
	// Without max subtraction exp(1000) overflows to +Inf and the result
	// is NaN.
	x := fromSlice(t, []float32{1000, 1001, 1002}, tensor.Shape{1, 3})
	data := x.Softmax(1).Data()

	var sum float64
	for _, v := range data {
		assert.False(t, math.IsNaN(float64(v)))
		assert.False(t, math.IsInf(float64(v), 0))
		sum += float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestSoftmax_MiddleDimension(t *testing.T) {
	// Softmax over dim 1 of [1,2,2]: columns normalize independently.
	x := fromSlice(t, []float32{0, 0, 0, 0}, tensor.Shape{1, 2, 2})
	data := x.Softmax(1).Data()
	for _, v := range data {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

func TestReLU(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5})

	out := backend.ReLU(x.Raw()).AsFloat32()
	assert.Equal(t, []float32{0, 0, 0, 0.5, 2}, out)
}

func TestSigmoidAndSiLU(t *testing.T) {
	backend := cpu.New()
	x := fromSlice(t, []float32{-1, 0, 1}, tensor.Shape{3})

	sig := backend.Sigmoid(x.Raw()).AsFloat32()
	silu := backend.SiLU(x.Raw()).AsFloat32()
	for i, v := range []float32{-1, 0, 1} {
		want := 1.0 / (1.0 + math.Exp(-float64(v)))
		assert.InDelta(t, want, sig[i], 1e-6)
		assert.InDelta(t, float64(v)*want, silu[i], 1e-6)
	}
}

func TestExpLog(t *testing.T) {
	x := fromSlice(t, []float32{0, 1, 2}, tensor.Shape{3})
	exp := x.Exp().Data()
	for i, v := range []float64{1, math.E, math.E * math.E} {
		assert.InDelta(t, v, exp[i], 1e-5)
	}

	y := fromSlice(t, []float32{1, math.E, 10}, tensor.Shape{3})
	log := y.Log().Data()
	assert.InDelta(t, 0, log[0], 1e-6)
	assert.InDelta(t, 1, log[1], 1e-6)
	assert.InDelta(t, math.Log(10), log[2], 1e-6)
}
