package vision

import "testing"

func TestFilterLabels(t *testing.T) {
	labels := []Label{
		{Name: "vivid", Confidence: 0.9},
		{Name: "noise", Confidence: 0.1},
		{Name: "bright", Confidence: 0.5},
	}

	kept := FilterLabels(labels, 0.5)
	if len(kept) != 2 {
		t.Fatalf("got %d labels, want 2", len(kept))
	}
	if kept[0].Name != "vivid" || kept[1].Name != "bright" {
		t.Errorf("wrong labels kept: %+v", kept)
	}
}

func TestFilterLabelsEmpty(t *testing.T) {
	if kept := FilterLabels(nil, 0.5); len(kept) != 0 {
		t.Errorf("got %d labels for nil input", len(kept))
	}
}

func TestPortraitRule(t *testing.T) {
	rule := DefaultPortraitRule()

	centered := Detection{Label: "subject", Confidence: 0.8, Box: Box{X: 0.35, Y: 0.3, W: 0.3, H: 0.4}}
	tiny := Detection{Label: "subject", Confidence: 0.8, Box: Box{X: 0.45, Y: 0.45, W: 0.1, H: 0.1}}
	corner := Detection{Label: "subject", Confidence: 0.8, Box: Box{X: 0.0, Y: 0.0, W: 0.3, H: 0.3}}

	tests := []struct {
		name       string
		detections []Detection
		want       bool
	}{
		{"no detections", nil, false},
		{"centered dominant subject", []Detection{centered}, true},
		{"subject too small", []Detection{tiny}, false},
		{"subject off in a corner", []Detection{corner}, false},
		{"busy frame", []Detection{centered, centered, centered}, false},
		{"two subjects, one dominant", []Detection{centered, tiny}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Matches(tt.detections); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestBoxGeometry(t *testing.T) {
	b := Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	cx, cy := b.Center()
	if cx != 0.5 || cy != 0.5 {
		t.Errorf("Center() = (%v, %v), want (0.5, 0.5)", cx, cy)
	}
	if b.Area() != 0.25 {
		t.Errorf("Area() = %v, want 0.25", b.Area())
	}
}
