/**
 * Bounding box primitives
 *
 * All coordinates are page pixels with a top-left origin. Raw engine output
 * does not satisfy the page-bounds invariant; coordinate repair does.
 */

package geometry

import "math"

// Box represents coordinates of a region in page-pixel space.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the box center point.
func (b Box) Center() (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Area returns the box area in square pixels.
func (b Box) Area() int {
	return b.Width * b.Height
}

// AspectRatio returns the long-side over short-side ratio; boxes with a zero
// side report +Inf so callers filter them out.
func (b Box) AspectRatio() float64 {
	w, h := float64(b.Width), float64(b.Height)
	if w <= 0 || h <= 0 {
		return math.Inf(1)
	}
	if w > h {
		return w / h
	}
	return h / w
}

// CenterDistance returns the euclidean distance between two box centers.
func CenterDistance(a, b Box) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}

// AreaSimilarity returns min(area)/max(area) in [0,1].
func AreaSimilarity(a, b Box) float64 {
	aa, ba := float64(a.Area()), float64(b.Area())
	if aa <= 0 || ba <= 0 {
		return 0
	}
	if aa < ba {
		return aa / ba
	}
	return ba / aa
}

// Scale rescales the box by factor f, rounding to the nearest pixel. Used to
// map detector-resolution coordinates into the reference page-pixel space.
func (b Box) Scale(f float64) Box {
	return Box{
		X:      int(math.Round(float64(b.X) * f)),
		Y:      int(math.Round(float64(b.Y) * f)),
		Width:  int(math.Round(float64(b.Width) * f)),
		Height: int(math.Round(float64(b.Height) * f)),
	}
}

// Normalized returns [x0,y0,x1,y1] in 0-1 page-relative coordinates.
func (b Box) Normalized(pageW, pageH int) [4]float64 {
	if pageW <= 0 || pageH <= 0 {
		return [4]float64{}
	}
	return [4]float64{
		float64(b.X) / float64(pageW),
		float64(b.Y) / float64(pageH),
		float64(b.X+b.Width) / float64(pageW),
		float64(b.Y+b.Height) / float64(pageH),
	}
}

// Expand grows the box by margin on every side.
func (b Box) Expand(margin int) Box {
	return Box{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}

// Clip constrains the box to [0,pageW]x[0,pageH]. The result never has
// negative origin or size; a fully out-of-range box collapses to a 1x1 box
// on the nearest page edge so downstream code stays total.
func (b Box) Clip(pageW, pageH int) Box {
	x0, y0 := b.X, b.Y
	x1, y1 := b.X+b.Width, b.Y+b.Height

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > pageW {
		x1 = pageW
	}
	if y1 > pageH {
		y1 = pageH
	}
	if x0 > pageW-1 {
		x0 = pageW - 1
	}
	if y0 > pageH-1 {
		y0 = pageH - 1
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// InBounds reports whether the box satisfies the page-bounds invariant.
func (b Box) InBounds(pageW, pageH int) bool {
	return b.X >= 0 && b.Y >= 0 &&
		b.Width > 0 && b.Height > 0 &&
		b.X+b.Width <= pageW && b.Y+b.Height <= pageH
}
