package vision

import (
	"context"
	"image"
	"math"
)

// HeuristicEngine labels photos from global pixel statistics. It is
// the default backend: always available, deterministic, and cheap
// enough to run inline in the tagging stage.
type HeuristicEngine struct{}

// NewHeuristicEngine returns the statistics-based engine.
func NewHeuristicEngine() *HeuristicEngine {
	return &HeuristicEngine{}
}

// Name identifies the backend.
func (e *HeuristicEngine) Name() string {
	return "heuristic"
}

// stats holds per-image aggregates sampled on a coarse grid.
type stats struct {
	meanLuma   float64 // 0..1
	meanSat    float64 // 0..1
	lumaStddev float64
}

const sampleGrid = 64

func computeStats(img image.Image) stats {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return stats{}
	}

	stepX := max(1, w/sampleGrid)
	stepY := max(1, h/sampleGrid)

	var sumLuma, sumLumaSq, sumSat float64
	var n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			rf := float64(r) / 65535
			gf := float64(g) / 65535
			bf := float64(b) / 65535

			luma := 0.299*rf + 0.587*gf + 0.114*bf
			maxC := math.Max(rf, math.Max(gf, bf))
			minC := math.Min(rf, math.Min(gf, bf))
			sat := 0.0
			if maxC > 0 {
				sat = (maxC - minC) / maxC
			}

			sumLuma += luma
			sumLumaSq += luma * luma
			sumSat += sat
			n++
		}
	}
	if n == 0 {
		return stats{}
	}

	mean := sumLuma / n
	variance := sumLumaSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return stats{
		meanLuma:   mean,
		meanSat:    sumSat / n,
		lumaStddev: math.Sqrt(variance),
	}
}

// Classify derives labels from brightness, saturation, contrast, and
// aspect ratio. Confidences scale with how far the statistic sits from
// its decision boundary.
func (e *HeuristicEngine) Classify(ctx context.Context, img image.Image) ([]Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := computeStats(img)
	var labels []Label

	switch {
	case s.meanLuma < 0.25:
		labels = append(labels, Label{Name: "low-light", Confidence: clamp01(1 - s.meanLuma/0.25)})
	case s.meanLuma > 0.75:
		labels = append(labels, Label{Name: "bright", Confidence: clamp01((s.meanLuma - 0.75) / 0.25)})
	}

	if s.meanSat < 0.08 {
		labels = append(labels, Label{Name: "monochrome", Confidence: clamp01(1 - s.meanSat/0.08)})
	} else if s.meanSat > 0.45 {
		labels = append(labels, Label{Name: "vivid", Confidence: clamp01((s.meanSat - 0.45) / 0.3)})
	}

	if s.lumaStddev > 0.28 {
		labels = append(labels, Label{Name: "high-contrast", Confidence: clamp01((s.lumaStddev - 0.28) / 0.15)})
	}

	bounds := img.Bounds()
	if bounds.Dx() > 0 && bounds.Dy() > 0 {
		ratio := float64(bounds.Dx()) / float64(bounds.Dy())
		if ratio >= 2.0 {
			labels = append(labels, Label{Name: "panorama", Confidence: clamp01((ratio - 2.0) / 1.0)})
		}
	}

	return labels, nil
}

// Detect finds at most one subject: a centered region whose local
// contrast clearly exceeds the frame average. Good enough to drive
// the portrait rule; a learned detector replaces this wholesale.
func (e *HeuristicEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := computeStats(img)
	if full.lumaStddev == 0 {
		return nil, nil
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 4 || h < 4 {
		return nil, nil
	}

	// Central crop covering the middle third of each axis.
	crop := image.Rect(
		bounds.Min.X+w/3, bounds.Min.Y+h/3,
		bounds.Min.X+2*w/3, bounds.Min.Y+2*h/3,
	)
	center := computeStats(cropView{img, crop})

	// A subject shows up as markedly higher detail in the center.
	ratio := center.lumaStddev / full.lumaStddev
	if ratio < 1.15 {
		return nil, nil
	}

	return []Detection{{
		Label:      "subject",
		Confidence: clamp01((ratio - 1.15) / 0.85),
		Box:        Box{X: 1.0 / 3, Y: 1.0 / 3, W: 1.0 / 3, H: 1.0 / 3},
	}}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// cropView restricts an image to a sub-rectangle without copying.
type cropView struct {
	image.Image
	rect image.Rectangle
}

func (c cropView) Bounds() image.Rectangle {
	return c.rect
}
