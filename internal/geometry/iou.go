// Package geometry holds the axis-aligned box math used for matching detections.
package geometry

import "math"

// BoundingBox is an axis-aligned rectangle with (X1,Y1) top-left and (X2,Y2) bottom-right.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// FromCenter expands a center/size box into corners. Negative sizes are clamped to zero.
func FromCenter(x, y, width, height float64) BoundingBox {
	halfW := math.Max(width, 0) / 2
	halfH := math.Max(height, 0) / 2
	return BoundingBox{
		X1: x - halfW,
		Y1: y - halfH,
		X2: x + halfW,
		Y2: y + halfH,
	}
}

// Width returns the box width, never negative.
func (b BoundingBox) Width() float64 {
	return math.Max(b.X2-b.X1, 0)
}

// Height returns the box height, never negative.
func (b BoundingBox) Height() float64 {
	return math.Max(b.Y2-b.Y1, 0)
}

// Area returns Width*Height.
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// IOU returns the intersection over union of a and b in [0,1].
// Disjoint boxes and an empty union both yield 0.
func IOU(a, b BoundingBox) float64 {
	interW := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	interH := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if interW <= 0 || interH <= 0 {
		return 0
	}

	inter := interW * interH
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
