package comic

import (
	"image"
	"math"
)

// Transform maps source image coordinates into a destination cell that the
// source covers completely (center crop, aspect preserved).
type Transform struct {
	Src    image.Point
	Dst    image.Point
	Scale  float64
	Offset image.Point // Cropped pixels on the left/top, in destination units
}

// Cover computes the cover-fit transform of src into dst.
func Cover(src, dst image.Point) Transform {
	t := Transform{Src: src, Dst: dst, Scale: 1}
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return t
	}
	t.Scale = math.Max(float64(dst.X)/float64(src.X), float64(dst.Y)/float64(src.Y))
	t.Offset = image.Point{
		X: int(math.Round((float64(src.X)*t.Scale - float64(dst.X)) / 2)),
		Y: int(math.Round((float64(src.Y)*t.Scale - float64(dst.Y)) / 2)),
	}
	return t
}

// Point maps a source point into destination coordinates.
func (t Transform) Point(p image.Point) image.Point {
	return image.Point{
		X: int(math.Round(float64(p.X)*t.Scale)) - t.Offset.X,
		Y: int(math.Round(float64(p.Y)*t.Scale)) - t.Offset.Y,
	}
}

// Rect maps a source rectangle into the destination and clips it to the
// destination bounds. The boolean is false when nothing remains visible.
func (t Transform) Rect(r image.Rectangle) (image.Rectangle, bool) {
	out := image.Rectangle{Min: t.Point(r.Min), Max: t.Point(r.Max)}
	out = out.Intersect(image.Rectangle{Max: t.Dst})
	return out, !out.Empty()
}

// Visible returns the part of the source that ends up inside the destination.
func (t Transform) Visible() image.Rectangle {
	if t.Scale <= 0 {
		return image.Rectangle{Max: t.Src}
	}
	minX := int(math.Round(float64(t.Offset.X) / t.Scale))
	minY := int(math.Round(float64(t.Offset.Y) / t.Scale))
	maxX := int(math.Round(float64(t.Offset.X+t.Dst.X) / t.Scale))
	maxY := int(math.Round(float64(t.Offset.Y+t.Dst.Y) / t.Scale))
	return image.Rect(minX, minY, maxX, maxY).Intersect(image.Rectangle{Max: t.Src})
}
