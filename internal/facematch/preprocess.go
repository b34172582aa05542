package facematch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

// MaxPixels caps the decoded size of an input image. Compressed formats can
// describe far more pixels than their byte size suggests.
const MaxPixels = 50_000_000

// ErrImageTooLarge is returned for images whose header exceeds MaxPixels.
var ErrImageTooLarge = errors.New("image too large")

// Preprocess decodes data and bounds its longer edge to maxDimension. The
// header is checked against MaxPixels before any pixels are decoded.
func Preprocess(data []byte, maxDimension int) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image header: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return NewImage(Downscale(src, maxDimension))
}

// NewImage wraps already decoded pixels.
func NewImage(pixels image.Image) (*Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pixels, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &Image{pixels: pixels, jpeg: buf.Bytes()}, nil
}

// Downscale shrinks src so its longer edge is at most maxDimension, keeping
// the aspect ratio. Images already within bounds are returned unchanged.
func Downscale(src image.Image, maxDimension int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := max(width, height)
	if maxDimension <= 0 || longest <= maxDimension {
		return src
	}

	scale := float64(maxDimension) / float64(longest)
	newWidth := max(1, int(math.Round(float64(width)*scale)))
	newHeight := max(1, int(math.Round(float64(height)*scale)))

	// CatmullRom is too slow past a 4x reduction.
	var scaler draw.Scaler = draw.CatmullRom
	if longest > 4*maxDimension {
		scaler = draw.ApproxBiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	scaler.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
