package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding

	_ "golang.org/x/image/bmp"  // register BMP decoding
	_ "golang.org/x/image/tiff" // register TIFF decoding
	_ "golang.org/x/image/webp" // register WebP decoding

	"golang.org/x/image/draw"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/resilience"
)

// DefaultInputSize is the side length, in pixels, expected by the disease
// model.
const DefaultInputSize = 224

// DefaultMaxPixels caps the declared width times height of an upload. The
// decoder allocates the full raster before resizing.
const DefaultMaxPixels = 40_000_000

// Tensor is a batch of RGB images indexed [batch][y][x][channel].
type Tensor [][][][]float32

// PreprocessConfig configures a Preprocessor.
type PreprocessConfig struct {
	// Size is the square input side. Default: DefaultInputSize
	Size int

	// Scale multiplies each 8-bit channel value. Default: 1/255
	Scale float32

	// MaxPixels rejects images declaring more pixels. Default: DefaultMaxPixels
	MaxPixels int64

	// Bulkhead bounds concurrent decode and resize work. Nil runs unbounded.
	Bulkhead *resilience.Bulkhead
}

// Preprocessor turns uploaded image bytes into a model input tensor.
type Preprocessor struct {
	size      int
	scale     float32
	maxPixels int64
	bulkhead  *resilience.Bulkhead
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	if cfg.Size <= 0 {
		cfg.Size = DefaultInputSize
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1.0 / 255
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Preprocessor{size: cfg.Size, scale: cfg.Scale, maxPixels: cfg.MaxPixels, bulkhead: cfg.Bulkhead}
}

// Size returns the square input side.
func (p *Preprocessor) Size() int { return p.size }

// Tensor decodes data and returns a [1][size][size][3] tensor. Undecodable
// bytes yield a bad upload fault.
func (p *Preprocessor) Tensor(ctx context.Context, data []byte) (Tensor, error) {
	var out Tensor
	run := func(context.Context) error {
		img, err := DecodeLimited(data, p.maxPixels)
		if err != nil {
			return err
		}
		out = Tensor{p.pixels(p.resize(img))}
		return nil
	}
	if p.bulkhead == nil {
		return out, run(ctx)
	}
	if err := p.bulkhead.Execute(ctx, run); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode decodes a JPEG, PNG, GIF, BMP, TIFF or WebP image of at most
// DefaultMaxPixels pixels.
func Decode(data []byte) (image.Image, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited is Decode with a pixel ceiling. The header is checked before
// any pixel data is read.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, error) {
	const op = "inference.decode"
	if len(data) == 0 {
		return nil, fault.BadUpload(op, "Empty image file", nil)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fault.BadUpload(op, "Invalid image file", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fault.BadUpload(op, "Image dimensions too large",
			fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fault.BadUpload(op, "Invalid image file", err)
	}
	return img, nil
}

// ErrImageTooLarge marks an image whose declared size exceeds the ceiling.
var ErrImageTooLarge = errors.New("inference: image dimensions too large")

func (p *Preprocessor) resize(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// pixels drops the alpha channel and scales the rest.
func (p *Preprocessor) pixels(img *image.RGBA) [][][]float32 {
	rows := make([][][]float32, p.size)
	for y := range rows {
		row := make([][]float32, p.size)
		for x := range row {
			i := img.PixOffset(x, y)
			row[x] = []float32{
				float32(img.Pix[i]) * p.scale,
				float32(img.Pix[i+1]) * p.scale,
				float32(img.Pix[i+2]) * p.scale,
			}
		}
		rows[y] = row
	}
	return rows
}
