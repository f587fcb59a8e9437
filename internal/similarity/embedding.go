// Package similarity derives compact embedding vectors from photo
// pixels and ranks photos by cosine similarity.
package similarity

import (
	"image"
	"math"
)

const (
	// BinsPerChannel is the histogram resolution per color channel.
	BinsPerChannel = 16
	// Dimensions is the embedding vector length (R, G, B histograms
	// concatenated).
	Dimensions = 3 * BinsPerChannel

	normFloor = 1e-6
)

// ComputeEmbedding builds a color-distribution embedding: a 16-bin
// histogram per RGB channel, concatenated and L2-normalized. Crude
// next to a learned model, but it ranks by palette well enough to
// surface visually related shots, and it needs no external runtime.
func ComputeEmbedding(img image.Image) []float32 {
	vec := make([]float32, Dimensions)
	bounds := img.Bounds()

	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return vec
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			vec[bin(r)]++
			vec[BinsPerChannel+bin(g)]++
			vec[2*BinsPerChannel+bin(b)]++
		}
	}

	Normalize(vec)
	return vec
}

// bin maps a 16-bit channel sample to one of BinsPerChannel buckets.
func bin(v uint32) int {
	return int((v >> 8) / (256 / BinsPerChannel))
}

// Normalize scales a vector to unit L2 length in place. Vectors whose
// norm is below a small floor are left untouched to avoid dividing by
// (almost) zero.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < normFloor {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// Cosine computes the cosine similarity of two equal-length vectors.
// Returns 0 when either vector is (near) zero, so degenerate vectors
// rank below any real match.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA < normFloor || normB < normFloor {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
