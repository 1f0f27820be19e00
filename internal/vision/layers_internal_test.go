package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvForward_Padding(t *testing.T) {
	x := NewTensor(1, 3, 3)
	for i := range x.Data {
		x.Data[i] = float32(i + 1)
	}
	c := &conv{
		weights: []float32{1, 1, 1, 1, 1, 1, 1, 1, 1},
		bias:    []float32{0.5},
		outC:    1,
		inC:     1,
		k:       3,
		stride:  1,
		padding: 1,
	}

	out, err := c.forward(context.Background(), x)
	require.NoError(t, err)

	// 3x3 box sums over 1..9 with zero padding.
	want := []float32{12, 21, 16, 27, 45, 33, 24, 39, 28}
	for i := range want {
		want[i] += 0.5
	}
	assert.Equal(t, want, out.Data)
}

func TestConvForward_Stride(t *testing.T) {
	x := NewTensor(2, 4, 4)
	for i := range x.Data {
		x.Data[i] = 1
	}
	c := &conv{
		weights: []float32{2, 3},
		bias:    []float32{0},
		outC:    1,
		inC:     2,
		k:       1,
		stride:  2,
		padding: 0,
	}

	out, err := c.forward(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, 2, out.H)
	assert.Equal(t, 2, out.W)
	assert.Equal(t, []float32{5, 5, 5, 5}, out.Data)

	_, err = c.forward(context.Background(), NewTensor(3, 4, 4))
	assert.Error(t, err)
}

func TestConvForward_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &conv{weights: []float32{1}, bias: []float32{0}, outC: 1, inC: 1, k: 1, stride: 1}
	_, err := c.forward(ctx, NewTensor(1, 2, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchNormFolding(t *testing.T) {
	params := map[string]*Param{
		"c.weight":       {Shape: []int{1, 1, 1, 1}, Data: []float32{2}},
		"b.weight":       {Shape: []int{1}, Data: []float32{3}},
		"b.bias":         {Shape: []int{1}, Data: []float32{1}},
		"b.running_mean": {Shape: []int{1}, Data: []float32{4}},
		"b.running_var":  {Shape: []int{1}, Data: []float32{1 - bnEpsilon}},
	}
	c, err := loadConvBN(weightSet{params: params}, "c", "b", 1, 1, 1, 1, 0)
	require.NoError(t, err)

	x := NewTensor(1, 1, 1)
	x.Data[0] = 5
	out, err := c.forward(context.Background(), x)
	require.NoError(t, err)

	// bn(conv(5)) = 3*(10-4)/1 + 1
	assert.InDelta(t, 19, out.Data[0], 1e-4)
}

func TestMaxPoolAndAverage(t *testing.T) {
	x := NewTensor(1, 4, 4)
	for i := range x.Data {
		x.Data[i] = float32(i)
	}

	p := maxPool(x, 3, 2, 1)
	assert.Equal(t, []float32{5, 7, 13, 15}, p.Data)
	assert.Equal(t, []float32{7.5}, globalAvgPool(x))
}

func TestArgmaxFirstWins(t *testing.T) {
	assert.Equal(t, 1, argmax([]float32{0, 2, 2, 1}))
}
