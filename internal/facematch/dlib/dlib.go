//go:build dlib

// Package dlib runs face location and embedding in-process with dlib's HOG
// detector and 128-d ResNet descriptors. It needs cgo and the dlib models:
// shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat in the models directory.
package dlib

import (
	"context"
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/example/student-portal/internal/facematch"
)

const minOverlap = 0.5

// Engine implements facematch.Locator and facematch.Embedder. The underlying
// recognizer is not safe for concurrent use, so calls are serialised.
type Engine struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewEngine loads the models found in modelsDir.
func NewEngine(modelsDir string) (*Engine, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &Engine{rec: rec}, nil
}

// Close releases the recognizer.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}

func (e *Engine) recognize(ctx context.Context, img *facematch.Image) ([]face.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil {
		return nil, fmt.Errorf("dlib engine closed")
	}
	faces, err := e.rec.Recognize(img.JPEG())
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	return faces, nil
}

// Locate returns the HOG detections in detector order.
func (e *Engine) Locate(ctx context.Context, img *facematch.Image) ([]facematch.Region, error) {
	faces, err := e.recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	regions := make([]facematch.Region, len(faces))
	for i, f := range faces {
		regions[i] = facematch.RegionFromRect(f.Rectangle)
	}
	return regions, nil
}

// Embed returns the descriptor of the detection that overlaps region.
func (e *Engine) Embed(ctx context.Context, img *facematch.Image, region facematch.Region) (facematch.Embedding, error) {
	faces, err := e.recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	regions := make([]facematch.Region, len(faces))
	for i, f := range faces {
		regions[i] = facematch.RegionFromRect(f.Rectangle)
	}
	idx := facematch.BestOverlap(region, regions, minOverlap)
	if idx < 0 {
		return nil, facematch.ErrNoEmbedding
	}

	descriptor := faces[idx].Descriptor
	out := make(facematch.Embedding, len(descriptor))
	for i, v := range descriptor {
		out[i] = float64(v)
	}
	return out, nil
}

var (
	_ facematch.Locator  = (*Engine)(nil)
	_ facematch.Embedder = (*Engine)(nil)
)
