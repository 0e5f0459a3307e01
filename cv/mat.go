// Package cv adapts OpenCV (through gocv) to the frame-generic pipeline:
// capture, preprocessing, motion estimation, warping and trackers.
package cv

import (
	"gocv.io/x/gocv"

	"steadytrack/frame"
)

// MatOps is the ownership contract for gocv.Mat frames.
func MatOps() frame.Ops[gocv.Mat] {
	return frame.Ops[gocv.Mat]{
		Clone: func(m gocv.Mat) gocv.Mat { return m.Clone() },
		Release: func(m gocv.Mat) {
			m.Close()
		},
	}
}
