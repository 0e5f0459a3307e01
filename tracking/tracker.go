// Package tracking owns the single-object tracker lifecycle: asynchronous
// initialization on a background worker, the hand-off to the capture loop,
// and the Idle/Tracking/Lost state machine with drift rejection.
package tracking

import (
	"image"
	"math"
)

// Tracker is a single-object visual tracker. gocv.Tracker satisfies
// Tracker[gocv.Mat].
type Tracker[F any] interface {
	Init(frame F, box image.Rectangle) bool
	Update(frame F) (image.Rectangle, bool)
	Close() error
}

// Scorer is implemented by trackers that expose a confidence for their
// latest update.
type Scorer interface {
	Confidence() float64
}

// Factory creates a fresh, uninitialized tracker.
type Factory[F any] func() (Tracker[F], error)

// confidenceOf returns the tracker's confidence, or +Inf when it has none so
// that the confidence half of the drift veto never fires.
func confidenceOf[F any](t Tracker[F]) float64 {
	if s, ok := t.(Scorer); ok {
		return s.Confidence()
	}
	return math.Inf(1)
}

// State is the tracking state.
type State int

const (
	Idle State = iota
	Tracking
	Lost
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}
