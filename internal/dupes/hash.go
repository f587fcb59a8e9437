// Package dupes computes 64-bit difference hashes for photos and
// groups near-duplicates without comparing every pair.
package dupes

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultThreshold is the Hamming distance at or below which two
// hashes are considered near-duplicates.
const DefaultThreshold = 8

// MaxThreshold caps caller-supplied thresholds.
const MaxThreshold = 20

// ComputeDHash computes a 64-bit difference hash. The image is scaled
// to a 9x8 grayscale grid and each bit records whether a pixel is
// brighter than its right-hand neighbor, so the hash survives resizing
// and re-encoding while staying sensitive to structure.
func ComputeDHash(img image.Image) uint64 {
	gray := grayGrid(img, 9, 8)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// HammingDistance computes the number of differing bits between two
// 64-bit hashes.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar returns true if two hashes are within the given threshold.
func Similar(a, b uint64, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}

// grayGrid scales an image to width x height and converts it to
// grayscale values indexed [x][y].
func grayGrid(img image.Image, width, height int) [][]float64 {
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}
