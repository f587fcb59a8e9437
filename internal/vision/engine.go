// Package vision produces content labels and subject detections for
// imported photos. The Engine interface hides the backend; the bundled
// implementation is a pixel-statistics heuristic that needs no model
// files, and a learned backend can be dropped in behind the same
// interface.
package vision

import (
	"context"
	"errors"
	"image"

	"photo-catalog/internal/logging"
)

// Label is a content tag with a confidence in [0, 1].
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Box is a normalized bounding box; coordinates are fractions of the
// image dimensions.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the box center point.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the box area as a fraction of the image area.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Detection is a located subject.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Options select the inference backend.
type Options struct {
	// Accelerated requests a hardware inference runtime. When none can
	// be initialized the CPU engine is used instead; that fallback is
	// silent unless acceleration was explicitly asked for.
	Accelerated bool
}

// NewEngine returns the best available engine for the given options,
// falling back to the CPU heuristic backend when accelerated
// initialization fails.
func NewEngine(opts Options) Engine {
	eng, err := newAcceleratedEngine()
	if err == nil {
		return eng
	}
	if opts.Accelerated {
		logging.Warn("Accelerated inference requested but unavailable, using CPU engine: %v", err)
	} else {
		logging.Debug("Using CPU inference engine: %v", err)
	}
	return NewHeuristicEngine()
}

// newAcceleratedEngine probes for a hardware inference runtime. This
// build links none, so selection always lands on the CPU engine; the
// probe keeps backend choice and fallback logging in one place for
// when a runtime is added.
func newAcceleratedEngine() (Engine, error) {
	return nil, errors.New("no accelerated inference runtime linked")
}

// Engine analyzes decoded images. Implementations are not required to
// be safe for concurrent use; the tagging stage serializes calls.
type Engine interface {
	// Classify returns content labels for an image.
	Classify(ctx context.Context, img image.Image) ([]Label, error)
	// Detect returns located subjects in an image.
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	// Name identifies the backend for logs and status output.
	Name() string
}
