package vision

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// bnEpsilon matches torch.nn.BatchNorm2d's default eps.
const bnEpsilon = 1e-5

// batchNorm holds eval-mode batch norm statistics.
type batchNorm struct {
	weight, bias, mean, variance []float32
}

func loadBatchNorm(w weightSet, name string, channels int) (batchNorm, error) {
	var bn batchNorm
	fields := []struct {
		suffix string
		dst    *[]float32
	}{
		{".weight", &bn.weight},
		{".bias", &bn.bias},
		{".running_mean", &bn.mean},
		{".running_var", &bn.variance},
	}
	for _, f := range fields {
		p, err := w.get(name+f.suffix, channels)
		if err != nil {
			return bn, err
		}
		*f.dst = p.Data
	}
	return bn, nil
}

// conv is a bias-free Conv2d with the following BatchNorm folded into its
// weights and a per-channel bias.
type conv struct {
	weights         []float32
	bias            []float32
	outC, inC, k    int
	stride, padding int
}

func loadConvBN(w weightSet, convName, bnName string, inC, outC, k, stride, padding int) (*conv, error) {
	kernel, err := w.get(convName+".weight", outC, inC, k, k)
	if err != nil {
		return nil, err
	}
	bn, err := loadBatchNorm(w, bnName, outC)
	if err != nil {
		return nil, err
	}

	c := &conv{
		weights: make([]float32, len(kernel.Data)),
		bias:    make([]float32, outC),
		outC:    outC,
		inC:     inC,
		k:       k,
		stride:  stride,
		padding: padding,
	}
	per := inC * k * k
	for oc := 0; oc < outC; oc++ {
		scale := bn.weight[oc] / float32(math.Sqrt(float64(bn.variance[oc])+bnEpsilon))
		for i := 0; i < per; i++ {
			c.weights[oc*per+i] = kernel.Data[oc*per+i] * scale
		}
		c.bias[oc] = bn.bias[oc] - bn.mean[oc]*scale
	}
	return c, nil
}

// outputSpan returns the output positions [lo, hi] whose input position
// o*stride+off falls inside [0, in).
func outputSpan(off, stride, in, out int) (int, int) {
	lo := 0
	if off < 0 {
		lo = (-off + stride - 1) / stride
	}
	last := in - 1 - off
	if last < 0 {
		return 0, -1
	}
	hi := last / stride
	if hi > out-1 {
		hi = out - 1
	}
	return lo, hi
}

// forward computes the convolution, one goroutine per output channel.
func (c *conv) forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	if x.C != c.inC {
		return nil, fmt.Errorf("conv expects %d channels, got %d", c.inC, x.C)
	}
	outH := (x.H+2*c.padding-c.k)/c.stride + 1
	outW := (x.W+2*c.padding-c.k)/c.stride + 1
	out := NewTensor(c.outC, outH, outW)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for oc := 0; oc < c.outC; oc++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := out.Channel(oc)
			for i := range dst {
				dst[i] = c.bias[oc]
			}
			for ic := 0; ic < c.inC; ic++ {
				src := x.Channel(ic)
				for ky := 0; ky < c.k; ky++ {
					yLo, yHi := outputSpan(ky-c.padding, c.stride, x.H, outH)
					for kx := 0; kx < c.k; kx++ {
						wv := c.weights[((oc*c.inC+ic)*c.k+ky)*c.k+kx]
						if wv == 0 {
							continue
						}
						xLo, xHi := outputSpan(kx-c.padding, c.stride, x.W, outW)
						for oy := yLo; oy <= yHi; oy++ {
							row := src[(oy*c.stride+ky-c.padding)*x.W:]
							drow := dst[oy*outW:]
							ix := xLo*c.stride + kx - c.padding
							for ox := xLo; ox <= xHi; ox++ {
								drow[ox] += wv * row[ix]
								ix += c.stride
							}
						}
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func relu(x *Tensor) {
	for i, v := range x.Data {
		if v < 0 {
			x.Data[i] = 0
		}
	}
}

func addInPlace(dst, src *Tensor) error {
	if dst.C != src.C || dst.H != src.H || dst.W != src.W {
		return fmt.Errorf("residual shape %dx%dx%d does not match %dx%dx%d", src.C, src.H, src.W, dst.C, dst.H, dst.W)
	}
	for i, v := range src.Data {
		dst.Data[i] += v
	}
	return nil
}

// maxPool is a k×k max pool with implicit -Inf padding.
func maxPool(x *Tensor, k, stride, padding int) *Tensor {
	outH := (x.H+2*padding-k)/stride + 1
	outW := (x.W+2*padding-k)/stride + 1
	out := NewTensor(x.C, outH, outW)

	for c := 0; c < x.C; c++ {
		src := x.Channel(c)
		dst := out.Channel(c)
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := float32(math.Inf(-1))
				for ky := 0; ky < k; ky++ {
					iy := oy*stride + ky - padding
					if iy < 0 || iy >= x.H {
						continue
					}
					for kx := 0; kx < k; kx++ {
						ix := ox*stride + kx - padding
						if ix < 0 || ix >= x.W {
							continue
						}
						if v := src[iy*x.W+ix]; v > best {
							best = v
						}
					}
				}
				dst[oy*outW+ox] = best
			}
		}
	}
	return out
}

func globalAvgPool(x *Tensor) []float32 {
	out := make([]float32, x.C)
	n := float64(x.H * x.W)
	for c := 0; c < x.C; c++ {
		var sum float64
		for _, v := range x.Channel(c) {
			sum += float64(v)
		}
		out[c] = float32(sum / n)
	}
	return out
}

// linear is a fully connected layer with weight shape [out, in].
type linear struct {
	weights []float32
	bias    []float32
	in, out int
}

func (l *linear) forward(x []float32) ([]float32, error) {
	if len(x) != l.in {
		return nil, fmt.Errorf("linear expects %d inputs, got %d", l.in, len(x))
	}
	y := make([]float32, l.out)
	for o := 0; o < l.out; o++ {
		sum := l.bias[o]
		row := l.weights[o*l.in : (o+1)*l.in]
		for i, v := range x {
			sum += row[i] * v
		}
		y[o] = sum
	}
	return y, nil
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index of the largest value.
func argmax(xs []float32) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
