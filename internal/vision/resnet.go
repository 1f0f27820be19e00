package vision

import (
	"context"
	"fmt"
)

// Architecture describes a bottleneck ResNet with a Dropout+Linear head.
type Architecture struct {
	Name string
	// Blocks is the number of bottleneck blocks in layer1..layer4.
	Blocks [4]int
	// Width is the stem output width; layer i uses Width<<i planes.
	Width int
	// HeadIndex is the position of the Linear layer inside the fc Sequential.
	HeadIndex int
}

// bottleneckExpansion is the channel expansion of a bottleneck block.
const bottleneckExpansion = 4

// ResNet50 is torchvision's resnet50 with fc replaced by
// Sequential(Dropout, Linear).
var ResNet50 = Architecture{
	Name:      "resnet50",
	Blocks:    [4]int{3, 4, 6, 3},
	Width:     64,
	HeadIndex: 1,
}

// Features is the width of the pooled feature vector fed to the head.
func (a Architecture) Features() int {
	return (a.Width << 3) * bottleneckExpansion
}

// weightSet resolves parameter names under a key prefix.
type weightSet struct {
	params map[string]*Param
	prefix string
}

func (w weightSet) get(name string, shape ...int) (*Param, error) {
	key := w.prefix + name
	p, ok := w.params[key]
	if !ok {
		return nil, fmt.Errorf("missing weight %s", key)
	}
	if err := p.expect(key, shape...); err != nil {
		return nil, err
	}
	return p, nil
}

type bottleneck struct {
	conv1, conv2, conv3 *conv
	downsample          *conv
}

func (b *bottleneck) forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	out, err := b.conv1.forward(ctx, x)
	if err != nil {
		return nil, err
	}
	relu(out)
	if out, err = b.conv2.forward(ctx, out); err != nil {
		return nil, err
	}
	relu(out)
	if out, err = b.conv3.forward(ctx, out); err != nil {
		return nil, err
	}

	identity := x
	if b.downsample != nil {
		if identity, err = b.downsample.forward(ctx, x); err != nil {
			return nil, err
		}
	}
	if err := addInPlace(out, identity); err != nil {
		return nil, err
	}
	relu(out)
	return out, nil
}

// Network is a loaded, inference-only ResNet.
type Network struct {
	arch   Architecture
	stem   *conv
	layers [4][]*bottleneck
	head   *linear
}

// BuildNetwork assembles a network from state-dict weights. Every tensor is
// shape-checked, and the head must have exactly NumLabels outputs.
func BuildNetwork(arch Architecture, params map[string]*Param, prefix string) (*Network, error) {
	w := weightSet{params: params, prefix: prefix}
	n := &Network{arch: arch}

	var err error
	n.stem, err = loadConvBN(w, "conv1", "bn1", 3, arch.Width, 7, 2, 3)
	if err != nil {
		return nil, err
	}

	inC := arch.Width
	for li := 0; li < 4; li++ {
		planes := arch.Width << li
		stride := 2
		if li == 0 {
			stride = 1
		}
		for bi := 0; bi < arch.Blocks[li]; bi++ {
			name := fmt.Sprintf("layer%d.%d.", li+1, bi)
			s := 1
			if bi == 0 {
				s = stride
			}
			b, err := loadBottleneck(w, name, inC, planes, s)
			if err != nil {
				return nil, err
			}
			n.layers[li] = append(n.layers[li], b)
			inC = planes * bottleneckExpansion
		}
	}

	headName := fmt.Sprintf("fc.%d.", arch.HeadIndex)
	weight, err := w.get(headName+"weight", NumLabels, inC)
	if err != nil {
		return nil, err
	}
	bias, err := w.get(headName+"bias", NumLabels)
	if err != nil {
		return nil, err
	}
	n.head = &linear{weights: weight.Data, bias: bias.Data, in: inC, out: NumLabels}
	return n, nil
}

func loadBottleneck(w weightSet, name string, inC, planes, stride int) (*bottleneck, error) {
	outC := planes * bottleneckExpansion
	b := &bottleneck{}

	var err error
	if b.conv1, err = loadConvBN(w, name+"conv1", name+"bn1", inC, planes, 1, 1, 0); err != nil {
		return nil, err
	}
	if b.conv2, err = loadConvBN(w, name+"conv2", name+"bn2", planes, planes, 3, stride, 1); err != nil {
		return nil, err
	}
	if b.conv3, err = loadConvBN(w, name+"conv3", name+"bn3", planes, outC, 1, 1, 0); err != nil {
		return nil, err
	}
	if stride != 1 || inC != outC {
		if b.downsample, err = loadConvBN(w, name+"downsample.0", name+"downsample.1", inC, outC, 1, stride, 0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Forward runs one image through the network and returns the head logits.
// Dropout is the identity at inference and is skipped.
func (n *Network) Forward(ctx context.Context, x *Tensor) ([]float32, error) {
	out, err := n.stem.forward(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("stem: %w", err)
	}
	relu(out)
	out = maxPool(out, 3, 2, 1)

	for li, blocks := range n.layers {
		for bi, b := range blocks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if out, err = b.forward(ctx, out); err != nil {
				return nil, fmt.Errorf("layer%d.%d: %w", li+1, bi, err)
			}
		}
	}

	return n.head.forward(globalAvgPool(out))
}

// Architecture returns the layout the network was built with.
func (n *Network) Architecture() Architecture {
	return n.arch
}
