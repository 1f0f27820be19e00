package vision_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/vision"
)

func solidImage(c color.Color, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestTransform_Shape(t *testing.T) {
	x := vision.Transform(noiseImage(1, 300, 120))

	assert.Equal(t, 3, x.C)
	assert.Equal(t, vision.DefaultInputSize, x.H)
	assert.Equal(t, vision.DefaultInputSize, x.W)
	assert.Len(t, x.Data, 3*224*224)
}

func TestTransform_Normalizes(t *testing.T) {
	cfg := vision.DefaultTransformConfig()
	cfg.Size = 16
	x := cfg.Apply(solidImage(color.NRGBA{R: 255, G: 0, B: 51, A: 255}, 40, 25))

	want := [3]float32{
		(1 - 0.485) / 0.229,
		(0 - 0.456) / 0.224,
		(0.2 - 0.406) / 0.225,
	}
	for ch := 0; ch < 3; ch++ {
		for _, v := range x.Channel(ch) {
			assert.InDelta(t, want[ch], v, 0.02, "channel %d", ch)
		}
	}
}

func TestTransform_DropsAlphaKeepsColour(t *testing.T) {
	cfg := vision.DefaultTransformConfig()
	cfg.Size = 8
	transparent := cfg.Apply(solidImage(color.NRGBA{R: 200, G: 100, B: 50, A: 0}, 10, 10))
	solid := cfg.Apply(solidImage(color.NRGBA{R: 200, G: 100, B: 50, A: 255}, 10, 10))

	assert.InDeltaSlice(t, solid.Data, transparent.Data, 1e-5)
}

func TestTransform_Deterministic(t *testing.T) {
	img := noiseImage(9, 64, 48)
	assert.Equal(t, vision.Transform(img).Data, vision.Transform(img).Data)
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noiseImage(2, 12, 7)))

	img, format, err := vision.DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())
}

func TestDecodeImage_Rejects(t *testing.T) {
	_, _, err := vision.DecodeImage(strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, vision.ErrUndecodableImage)

	_, _, err = vision.DecodeImage(bytes.NewReader(nil))
	assert.ErrorIs(t, err, vision.ErrUndecodableImage)
}

// pngDeclaring encodes a 1×1 PNG and rewrites its IHDR to claim w×h.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()

	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeImage_RejectsOversizedDimensions(t *testing.T) {
	data := pngDeclaring(t, 20_000, 20_000)
	require.Less(t, len(data), 1024)

	_, _, err := vision.DecodeImage(bytes.NewReader(data))
	assert.ErrorIs(t, err, vision.ErrUndecodableImage)
	assert.Contains(t, err.Error(), "20000x20000")
}

func TestDecodeImage_AcceptsLargeButBoundedImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2000, 1500))))

	img, format, err := vision.DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 2000, 1500), img.Bounds())
}
