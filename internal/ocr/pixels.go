package ocr

import "image"

// NormalizeRect converts a pixel rectangle on a width x height page into a
// normalized bounding box, clamped to the page.
func NormalizeRect(r image.Rectangle, width, height int) BoundingBox {
	if width <= 0 || height <= 0 {
		return BoundingBox{}
	}
	r = r.Canon().Intersect(image.Rect(0, 0, width, height))
	w, h := float64(width), float64(height)
	return BoundingBox{
		Left:   float64(r.Min.X) / w,
		Top:    float64(r.Min.Y) / h,
		Width:  float64(r.Dx()) / w,
		Height: float64(r.Dy()) / h,
	}
}

// BoxPolygon returns the four corners of a box clockwise from top-left.
func BoxPolygon(b BoundingBox) []Point {
	return []Point{
		{X: b.Left, Y: b.Top},
		{X: b.Right(), Y: b.Top},
		{X: b.Right(), Y: b.Bottom()},
		{X: b.Left, Y: b.Bottom()},
	}
}

// GeometryFromRect builds the geometry of a pixel rectangle.
func GeometryFromRect(r image.Rectangle, width, height int) Geometry {
	box := NormalizeRect(r, width, height)
	return Geometry{BoundingBox: box, Polygon: BoxPolygon(box)}
}
