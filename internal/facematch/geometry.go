package facematch

import (
	"fmt"
	"math"
)

// EuclideanDistance returns the L2 distance between two embeddings of equal length.
func EuclideanDistance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty embedding")
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// IoU is the intersection over union of two regions.
func IoU(a, b Region) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	i := float64(inter.Dx() * inter.Dy())
	union := float64(a.Width*a.Height+b.Width*b.Height) - i
	if union <= 0 {
		return 0
	}
	return i / union
}

// BestOverlap returns the index of the candidate overlapping target the most,
// or -1 when none reaches minIoU.
func BestOverlap(target Region, candidates []Region, minIoU float64) int {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := IoU(target, c)
		if score >= minIoU && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
