package utils

import (
	"image"
)

// SelectionRect returns a width x height rectangle centred on center and
// shifted so it stays inside bounds. An empty bounds disables the shift.
func SelectionRect(center image.Point, width, height int, bounds image.Rectangle) image.Rectangle {
	if !bounds.Empty() {
		if width > bounds.Dx() {
			width = bounds.Dx()
		}
		if height > bounds.Dy() {
			height = bounds.Dy()
		}
	}

	halfWidth := width / 2
	halfHeight := height / 2
	rect := image.Rect(
		center.X-halfWidth,
		center.Y-halfHeight,
		center.X-halfWidth+width,
		center.Y-halfHeight+height,
	)
	if bounds.Empty() {
		return rect
	}

	// Shift back inside the frame rather than cropping, so the box keeps
	// its requested size.
	if rect.Min.X < bounds.Min.X {
		rect = rect.Add(image.Pt(bounds.Min.X-rect.Min.X, 0))
	}
	if rect.Min.Y < bounds.Min.Y {
		rect = rect.Add(image.Pt(0, bounds.Min.Y-rect.Min.Y))
	}
	if rect.Max.X > bounds.Max.X {
		rect = rect.Add(image.Pt(bounds.Max.X-rect.Max.X, 0))
	}
	if rect.Max.Y > bounds.Max.Y {
		rect = rect.Add(image.Pt(0, bounds.Max.Y-rect.Max.Y))
	}
	return rect
}

// ClampPoint limits p to bounds. An empty bounds returns p unchanged.
func ClampPoint(p image.Point, bounds image.Rectangle) image.Point {
	if bounds.Empty() {
		return p
	}
	if p.X < bounds.Min.X {
		p.X = bounds.Min.X
	}
	if p.Y < bounds.Min.Y {
		p.Y = bounds.Min.Y
	}
	if p.X >= bounds.Max.X {
		p.X = bounds.Max.X - 1
	}
	if p.Y >= bounds.Max.Y {
		p.Y = bounds.Max.Y - 1
	}
	return p
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
