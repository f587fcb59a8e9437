package dupes

import (
	"image"
	"image/color"
	"testing"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xDEADBEEF, 0xDEADBEEF, 0},
		{"one bit", 0x0, 0x1, 1},
		{"all bits", 0x0, ^uint64(0), 64},
		{"high bit", 0x0, 1 << 63, 1},
		{"mixed", 0b1010, 0b0101, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HammingDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// Distance is symmetric.
			if got := HammingDistance(tt.b, tt.a); got != tt.want {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	if !Similar(0x0, 0xFF, 8) {
		t.Error("hashes at distance 8 should be similar at threshold 8")
	}
	if Similar(0x0, 0x1FF, 8) {
		t.Error("hashes at distance 9 should not be similar at threshold 8")
	}
}

// horizontalGradient brightens left to right, so every pixel is darker
// than its right neighbor and all difference bits are zero.
func horizontalGradient(reversed bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, 90, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 90; x++ {
			v := uint8(x * 255 / 89)
			if reversed {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestComputeDHashGradients(t *testing.T) {
	if got := ComputeDHash(horizontalGradient(false)); got != 0 {
		t.Errorf("increasing gradient hash = %x, want 0", got)
	}
	if got := ComputeDHash(horizontalGradient(true)); got != ^uint64(0) {
		t.Errorf("decreasing gradient hash = %x, want all ones", got)
	}
}

func TestComputeDHashDeterministic(t *testing.T) {
	img := horizontalGradient(false)
	first := ComputeDHash(img)
	for i := 0; i < 3; i++ {
		if got := ComputeDHash(img); got != first {
			t.Fatalf("hash changed between runs: %x vs %x", got, first)
		}
	}
}

func TestComputeDHashScaleInvariant(t *testing.T) {
	small := image.NewGray(image.Rect(0, 0, 45, 40))
	large := image.NewGray(image.Rect(0, 0, 900, 800))
	for y := 0; y < 40; y++ {
		for x := 0; x < 45; x++ {
			small.SetGray(x, y, color.Gray{Y: uint8(x * 255 / 44)})
		}
	}
	for y := 0; y < 800; y++ {
		for x := 0; x < 900; x++ {
			large.SetGray(x, y, color.Gray{Y: uint8(x * 255 / 899)})
		}
	}

	// Same structure at different resolutions should land within a
	// small distance of each other.
	d := HammingDistance(ComputeDHash(small), ComputeDHash(large))
	if d > 4 {
		t.Errorf("distance between scales = %d, want <= 4", d)
	}
}
