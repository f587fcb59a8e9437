package vision

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func solid(c color.RGBA, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func hasLabel(labels []Label, name string) bool {
	for _, l := range labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

func TestHeuristicClassify(t *testing.T) {
	engine := NewHeuristicEngine()
	ctx := context.Background()

	tests := []struct {
		name      string
		img       image.Image
		wantLabel string
	}{
		{"dark frame", solid(color.RGBA{R: 10, G: 10, B: 10, A: 255}, 64, 64), "low-light"},
		{"bright frame", solid(color.RGBA{R: 240, G: 240, B: 240, A: 255}, 64, 64), "bright"},
		{"gray frame", solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}, 64, 64), "monochrome"},
		{"saturated frame", solid(color.RGBA{R: 255, G: 0, B: 0, A: 255}, 64, 64), "vivid"},
		{"wide frame", solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}, 300, 100), "panorama"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := engine.Classify(ctx, tt.img)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if !hasLabel(labels, tt.wantLabel) {
				t.Errorf("labels %+v missing %q", labels, tt.wantLabel)
			}
			for _, l := range labels {
				if l.Confidence < 0 || l.Confidence > 1 {
					t.Errorf("confidence out of range: %+v", l)
				}
			}
		})
	}
}

func TestHeuristicClassifyCancelled(t *testing.T) {
	engine := NewHeuristicEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Classify(ctx, solid(color.RGBA{A: 255}, 8, 8)); err == nil {
		t.Error("Classify with cancelled context should fail")
	}
}

func TestHeuristicDetectFlatImage(t *testing.T) {
	engine := NewHeuristicEngine()
	detections, err := engine.Detect(context.Background(), solid(color.RGBA{R: 128, G: 128, B: 128, A: 255}, 64, 64))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("flat image produced detections: %+v", detections)
	}
}

func TestHeuristicDetectCenteredSubject(t *testing.T) {
	// Flat background with a high-contrast checkerboard in the middle
	// third should register as a subject.
	img := image.NewRGBA(image.Rect(0, 0, 90, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 90; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	for y := 30; y < 60; y++ {
		for x := 30; x < 60; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}

	engine := NewHeuristicEngine()
	detections, err := engine.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(detections))
	}
	if detections[0].Label != "subject" {
		t.Errorf("label = %q, want subject", detections[0].Label)
	}
}
