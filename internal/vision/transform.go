package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	// Registered decoders for DecodeImage.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUndecodableImage is returned when an upload is not a supported image.
var ErrUndecodableImage = errors.New("undecodable image")

// DefaultInputSize is the square side the deployed weights expect.
const DefaultInputSize = 224

// ImageNet channel statistics used when the backbone was pre-trained.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// TransformConfig controls image preprocessing.
type TransformConfig struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// DefaultTransformConfig returns the inference preprocessing.
func DefaultTransformConfig() TransformConfig {
	return TransformConfig{Size: DefaultInputSize, Mean: ImageNetMean, Std: ImageNetStd}
}

// Transform preprocesses img with DefaultTransformConfig.
func Transform(img image.Image) *Tensor {
	return DefaultTransformConfig().Apply(img)
}

// Apply converts img to RGB, resizes it bilinearly to Size×Size, scales
// to [0,1] and normalizes each channel. The result is 3×Size×Size.
func (c TransformConfig) Apply(img image.Image) *Tensor {
	size := c.Size
	if size <= 0 {
		size = DefaultInputSize
	}

	resized := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), opaque(img), img.Bounds(), draw.Src, nil)

	t := NewTensor(3, size, size)
	plane := size * size
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			for ch := 0; ch < 3; ch++ {
				v := float32(px[ch]) / 255
				t.Data[ch*plane+y*size+x] = (v - c.Mean[ch]) / c.Std[ch]
			}
		}
	}
	return t
}

// opaque drops the alpha channel while keeping the stored colour, the
// way an RGB conversion discards transparency.
func opaque(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// MaxImagePixels caps the decoded size of an upload. Compressed formats
// can declare far more pixels than their byte size suggests.
const MaxImagePixels = 40_000_000

// DecodeImage decodes a JPEG, PNG, GIF, BMP, TIFF or WebP image. The header
// is checked against MaxImagePixels before any pixel data is decoded.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodableImage, cfg.Width, cfg.Height, MaxImagePixels)
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrUndecodableImage)
	}
	return img, format, nil
}
