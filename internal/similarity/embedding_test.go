package similarity

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Errorf("normalized vector has norm %v, want 1", math.Sqrt(sum))
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	Normalize(vec)
	for i, v := range vec {
		if v != 0 {
			t.Errorf("zero vector changed at index %d: %v", i, v)
		}
	}
}

func solidImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestComputeEmbeddingProperties(t *testing.T) {
	vec := ComputeEmbedding(solidImage(color.RGBA{R: 255, A: 255}))
	if len(vec) != Dimensions {
		t.Fatalf("embedding length = %d, want %d", len(vec), Dimensions)
	}

	var sum float64
	for _, v := range vec {
		if v < 0 {
			t.Errorf("negative histogram entry: %v", v)
		}
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("embedding norm = %v, want 1", math.Sqrt(sum))
	}
}

func TestComputeEmbeddingDiscriminates(t *testing.T) {
	red := ComputeEmbedding(solidImage(color.RGBA{R: 255, A: 255}))
	red2 := ComputeEmbedding(solidImage(color.RGBA{R: 250, A: 255}))
	blue := ComputeEmbedding(solidImage(color.RGBA{B: 255, A: 255}))

	same := Cosine(red, red2)
	diff := Cosine(red, blue)
	if same <= diff {
		t.Errorf("similar colors score %v, different colors %v; want similar > different", same, diff)
	}
}

func TestComputeEmbeddingEmptyImage(t *testing.T) {
	vec := ComputeEmbedding(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if len(vec) != Dimensions {
		t.Fatalf("embedding length = %d, want %d", len(vec), Dimensions)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("empty image should produce a zero vector")
		}
	}
}
