package vision

import (
	"fmt"
	"slices"
)

// Tensor is a single-image feature map in CHW layout.
type Tensor struct {
	C, H, W int
	Data    []float32
}

// NewTensor allocates a zeroed C×H×W tensor.
func NewTensor(c, h, w int) *Tensor {
	return &Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

// At returns the value at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.H+y)*t.W+x]
}

// Channel returns the plane of channel c.
func (t *Tensor) Channel(c int) []float32 {
	n := t.H * t.W
	return t.Data[c*n : (c+1)*n]
}

// Param is a named weight tensor with an arbitrary shape.
type Param struct {
	Shape []int
	Data  []float32
}

// NewParam allocates a zeroed parameter of the given shape.
func NewParam(shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{Shape: shape, Data: make([]float32, n)}
}

func (p *Param) expect(name string, shape ...int) error {
	if !slices.Equal(p.Shape, shape) {
		return fmt.Errorf("%s: shape %v, want %v", name, p.Shape, shape)
	}
	return nil
}
