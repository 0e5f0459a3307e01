package tracking

import "image"

// IoU returns the intersection-over-union of two rectangles. Empty or
// degenerate input yields 0.
func IoU(a, b image.Rectangle) float64 {
	inter := area(a.Intersect(b))
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Drifted reports whether a nominally successful update should be treated
// as a failure: the candidate barely overlaps the last good box and the
// tracker is not confident.
func Drifted(lastGood, candidate image.Rectangle, confidence, iouThreshold, confThreshold float64) bool {
	return IoU(lastGood, candidate) < iouThreshold && confidence < confThreshold
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
