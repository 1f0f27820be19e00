package vision_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/vision"
)

var tinyArch = vision.Architecture{
	Name:      "tiny",
	Blocks:    [4]int{1, 1, 1, 1},
	Width:     4,
	HeadIndex: 1,
}

func tinyTransform() *vision.TransformConfig {
	cfg := vision.DefaultTransformConfig()
	cfg.Size = 32
	return &cfg
}

// buildWeights creates a state dict for arch with identity batch norms and
// small random convolutions.
func buildWeights(arch vision.Architecture, prefix string, numLabels int, seed int64) map[string]*vision.Param {
	rng := rand.New(rand.NewSource(seed))
	params := make(map[string]*vision.Param)

	randomParam := func(name string, shape ...int) {
		p := vision.NewParam(shape...)
		for i := range p.Data {
			p.Data[i] = float32(rng.NormFloat64() * 0.1)
		}
		params[prefix+name] = p
	}
	batchNorm := func(name string, channels int) {
		w := vision.NewParam(channels)
		v := vision.NewParam(channels)
		for i := 0; i < channels; i++ {
			w.Data[i] = 1
			v.Data[i] = 1
		}
		params[prefix+name+".weight"] = w
		params[prefix+name+".bias"] = vision.NewParam(channels)
		params[prefix+name+".running_mean"] = vision.NewParam(channels)
		params[prefix+name+".running_var"] = v
	}

	randomParam("conv1.weight", arch.Width, 3, 7, 7)
	batchNorm("bn1", arch.Width)

	inC := arch.Width
	for li := 0; li < 4; li++ {
		planes := arch.Width << li
		outC := planes * 4
		for bi := 0; bi < arch.Blocks[li]; bi++ {
			name := fmt.Sprintf("layer%d.%d.", li+1, bi)
			randomParam(name+"conv1.weight", planes, inC, 1, 1)
			batchNorm(name+"bn1", planes)
			randomParam(name+"conv2.weight", planes, planes, 3, 3)
			batchNorm(name+"bn2", planes)
			randomParam(name+"conv3.weight", outC, planes, 1, 1)
			batchNorm(name+"bn3", outC)
			if bi == 0 {
				randomParam(name+"downsample.0.weight", outC, inC, 1, 1)
				batchNorm(name+"downsample.1", outC)
			}
			inC = outC
		}
	}

	randomParam(fmt.Sprintf("fc.%d.weight", arch.HeadIndex), numLabels, inC)
	randomParam(fmt.Sprintf("fc.%d.bias", arch.HeadIndex), numLabels)
	return params
}

func writeWeights(t *testing.T, params map[string]*vision.Param) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saved_model.safetensors")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encodeWeights(f, params))
	require.NoError(t, f.Close())
	return path
}

// encodeWeights writes params as an F32 safetensors file, the format the
// training export produces.
func encodeWeights(w io.Writer, params map[string]*vision.Param) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	type entry struct {
		DType       string   `json:"dtype"`
		Shape       []int    `json:"shape"`
		DataOffsets [2]int64 `json:"data_offsets"`
	}
	header := make(map[string]entry, len(params))
	var data bytes.Buffer
	for _, name := range names {
		start := int64(data.Len())
		for _, v := range params[name].Data {
			_ = binary.Write(&data, binary.LittleEndian, math.Float32bits(v))
		}
		header[name] = entry{DType: "F32", Shape: params[name].Shape, DataOffsets: [2]int64{start, int64(data.Len())}}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return err
	}
	_, err = w.Write(rawSafetensors(string(hdr), data.Bytes()))
	return err
}

func noiseImage(seed int64, w, h int) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}
