package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mixture-ml/mixture/internal/tensor"
)

func TestSum(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	total := x.Sum()
	assert.Equal(t, tensor.Shape{}, total.Shape())
	assert.Equal(t, float32(21), total.Item())

	xi := fromSlice(t, []int32{1, 2, 3}, tensor.Shape{3})
	assert.Equal(t, int32(6), xi.Sum().Item())
}

func TestSumDim(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	rows := x.SumDim(1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float32{6, 15}, rows.Data())

	cols := x.SumDim(0, false)
	assert.Equal(t, tensor.Shape{3}, cols.Shape())
	assert.Equal(t, []float32{5, 7, 9}, cols.Data())

	kept := x.SumDim(1, true)
	assert.Equal(t, tensor.Shape{2, 1}, kept.Shape())
}

func TestMeanDim(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	mean := x.MeanDim(1, false)
	assert.Equal(t, []float32{2, 5}, mean.Data())
}

func TestArgmax(t *testing.T) {
	x := fromSlice(t, []float32{
		0.1, 0.7, 0.2,
		0.9, 0.05, 0.05,
	}, tensor.Shape{2, 3})

	idx := x.Argmax(1)
	assert.Equal(t, tensor.Shape{2}, idx.Shape())
	assert.Equal(t, []int32{1, 0}, idx.Data())
}

func TestArgmax_TiesPickLowestIndex(t *testing.T) {
	x := fromSlice(t, []float32{0.5, 0.5, 0.3}, tensor.Shape{1, 3})
	assert.Equal(t, []int32{0}, x.Argmax(1).Data())
}

func TestArgmax_MiddleDimension(t *testing.T) {
	// [2,2,2]: argmax over dim 1 compares across the middle axis.
	x := fromSlice(t, []float32{
		1, 8,
		5, 2,

		3, 3,
		7, 9,
	}, tensor.Shape{2, 2, 2})

	idx := x.Argmax(1)
	assert.Equal(t, tensor.Shape{2, 2}, idx.Shape())
	assert.Equal(t, []int32{1, 0, 1, 1}, idx.Data())
}
