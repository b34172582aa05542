package deepface

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/student-portal/internal/facematch"
)

// minOverlap is how closely a represent result must line up with a located
// region to be taken as its embedding.
const minOverlap = 0.5

// Engine implements facematch.Locator and facematch.Embedder.
type Engine struct {
	client *Client
}

// NewEngine creates a DeepFace backed engine.
func NewEngine(config Config, logger *zap.Logger) *Engine {
	return &Engine{client: NewClient(config, logger)}
}

// Locate returns the facial areas DeepFace found. With enforce_detection off
// DeepFace reports the whole frame with zero confidence when it finds
// nothing; those entries are dropped.
func (e *Engine) Locate(ctx context.Context, img *facematch.Image) ([]facematch.Region, error) {
	resp, err := e.client.represent(ctx, img.JPEG())
	if err != nil {
		return nil, fmt.Errorf("locate faces: %w", err)
	}

	regions := make([]facematch.Region, 0, len(resp.Results))
	for _, result := range faces(resp) {
		regions = append(regions, toRegion(result.FacialArea))
	}
	return regions, nil
}

// Embed returns the embedding of the represent result overlapping region.
func (e *Engine) Embed(ctx context.Context, img *facematch.Image, region facematch.Region) (facematch.Embedding, error) {
	resp, err := e.client.represent(ctx, img.JPEG())
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}

	results := faces(resp)
	areas := make([]facematch.Region, len(results))
	for i, result := range results {
		areas[i] = toRegion(result.FacialArea)
	}
	idx := facematch.BestOverlap(region, areas, minOverlap)
	if idx < 0 || len(results[idx].Embedding) == 0 {
		return nil, facematch.ErrNoEmbedding
	}
	return facematch.Embedding(results[idx].Embedding), nil
}

func faces(resp *representResponse) []representResult {
	out := make([]representResult, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.FaceConfidence != nil && *result.FaceConfidence <= 0 {
			continue
		}
		if result.FacialArea.W <= 0 || result.FacialArea.H <= 0 {
			continue
		}
		out = append(out, result)
	}
	return out
}

func toRegion(area facialArea) facematch.Region {
	return facematch.Region{X: area.X, Y: area.Y, Width: area.W, Height: area.H}
}

var (
	_ facematch.Locator  = (*Engine)(nil)
	_ facematch.Embedder = (*Engine)(nil)
)
