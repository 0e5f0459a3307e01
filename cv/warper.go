package cv

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"steadytrack/stabilizer"
)

// Warper applies a perspective transform, keeping the frame size.
type Warper struct{}

func (Warper) Warp(src gocv.Mat, t stabilizer.Transform) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("warp: empty frame")
	}
	m := matFromTransform(t)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, m, image.Pt(src.Cols(), src.Rows()))
	if dst.Empty() {
		dst.Close()
		return gocv.NewMat(), errors.New("warp: empty result")
	}
	return dst, nil
}
