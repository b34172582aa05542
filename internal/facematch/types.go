// Package facematch decides whether two photographs show the same person.
//
// Detection and embedding are delegated to a Locator and an Embedder; the
// package owns image acquisition, preprocessing, the single-face selection
// rule and the fixed-threshold Euclidean decision.
package facematch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// ErrNoEmbedding is returned by an Embedder that ran successfully but could
// not produce a vector for the given region.
var ErrNoEmbedding = errors.New("no embedding for region")

// Region is a face bounding box in pixel coordinates of the preprocessed image.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromRect converts an image rectangle into a Region.
func RegionFromRect(r image.Rectangle) Region {
	r = r.Canon()
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Embedding is a fixed-length identity vector for one detected face.
type Embedding []float64

// Image is a decoded, preprocessed picture together with its JPEG encoding,
// so backends that work on bytes do not have to re-encode it.
type Image struct {
	pixels image.Image
	jpeg   []byte
}

// Pixels returns the decoded image.
func (i *Image) Pixels() image.Image { return i.pixels }

// JPEG returns the JPEG encoding of the preprocessed image.
func (i *Image) JPEG() []byte { return i.jpeg }

// Bounds returns the pixel bounds of the preprocessed image.
func (i *Image) Bounds() image.Rectangle { return i.pixels.Bounds() }

// Locator finds candidate face regions. The first region is treated as the
// most relevant one.
type Locator interface {
	Locate(ctx context.Context, img *Image) ([]Region, error)
}

// Embedder computes the identity vector for one located region.
type Embedder interface {
	Embed(ctx context.Context, img *Image, region Region) (Embedding, error)
}

// ImageOpener resolves an image reference to its bytes.
type ImageOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FileOpener opens references as filesystem paths, relative to Root when set.
type FileOpener struct {
	Root string
}

// Open implements ImageOpener.
func (o FileOpener) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path := ref
	if o.Root != "" {
		path = filepath.Join(o.Root, ref)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return os.Open(path)
}
