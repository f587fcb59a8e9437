package vision

import "math"

// FilterLabels drops labels below the confidence threshold. Order is
// preserved.
func FilterLabels(labels []Label, minConfidence float64) []Label {
	kept := labels[:0:0]
	for _, l := range labels {
		if l.Confidence >= minConfidence {
			kept = append(kept, l)
		}
	}
	return kept
}

// PortraitRule decides whether a photo reads as a portrait from the
// geometry of its subject detections.
type PortraitRule struct {
	// MinAreaRatio is the smallest subject area (fraction of image)
	// that counts as a dominant subject.
	MinAreaRatio float64
	// MaxCenterOffset is how far the subject center may sit from the
	// image center, as a fraction of the image diagonal half.
	MaxCenterOffset float64
	// MaxSubjects is the most detections the frame may contain; busy
	// frames are not portraits.
	MaxSubjects int
}

// DefaultPortraitRule matches a single dominant, roughly centered
// subject.
func DefaultPortraitRule() PortraitRule {
	return PortraitRule{
		MinAreaRatio:    0.08,
		MaxCenterOffset: 0.35,
		MaxSubjects:     2,
	}
}

// Matches returns true when the detections describe a portrait
// composition under this rule.
func (r PortraitRule) Matches(detections []Detection) bool {
	if len(detections) == 0 || len(detections) > r.MaxSubjects {
		return false
	}

	// Judge by the largest subject.
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Box.Area() > best.Box.Area() {
			best = d
		}
	}

	if best.Box.Area() < r.MinAreaRatio {
		return false
	}

	cx, cy := best.Box.Center()
	offset := math.Hypot(cx-0.5, cy-0.5) / math.Hypot(0.5, 0.5)
	return offset <= r.MaxCenterOffset
}
