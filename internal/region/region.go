// Package region provides pixel-space rectangle primitives for the detection pipeline
package region

import "image"

// Rect is an axis-aligned rectangle in frame pixel coordinates.
// Zero or negative width/height means the rectangle covers no pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FromImage converts a stdlib image.Rectangle.
func FromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// ToImage converts to a stdlib image.Rectangle.
func (r Rect) ToImage() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the covered pixel count, zero for empty rectangles.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Inflate grows the rectangle by eps pixels on every side.
func (r Rect) Inflate(eps int) Rect {
	return Rect{X: r.X - eps, Y: r.Y - eps, Width: r.Width + 2*eps, Height: r.Height + 2*eps}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := min(r.X, o.X)
	y0 := min(r.Y, o.Y)
	x1 := max(r.X+r.Width, o.X+o.Width)
	y1 := max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Clip constrains the rectangle to a w by h frame. The result may be empty.
func (r Rect) Clip(w, h int) Rect {
	x0 := max(r.X, 0)
	y0 := max(r.Y, 0)
	x1 := min(r.X+r.Width, w)
	y1 := min(r.Y+r.Height, h)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// MergeAdjacent repeatedly unions rectangles that overlap once both are
// inflated by eps pixels, until no pair merges. The input slice is left
// unmodified.
func MergeAdjacent(rects []Rect, eps int) []Rect {
	if len(rects) <= 1 {
		return rects
	}

	cur := make([]Rect, len(rects))
	copy(cur, rects)

	for {
		merged := false
		used := make([]bool, len(cur))
		next := make([]Rect, 0, len(cur))

		for i := range cur {
			if used[i] {
				continue
			}
			acc := cur[i]
			for j := i + 1; j < len(cur); j++ {
				if used[j] {
					continue
				}
				if acc.Inflate(eps).Intersects(cur[j].Inflate(eps)) {
					acc = acc.Union(cur[j])
					used[j] = true
					merged = true
				}
			}
			next = append(next, acc)
		}

		cur = next
		if !merged {
			return cur
		}
	}
}

// FilterMinArea drops rectangles whose area is below minArea.
func FilterMinArea(rects []Rect, minArea int) []Rect {
	if minArea <= 0 {
		return rects
	}
	out := rects[:0:0]
	for _, r := range rects {
		if r.Area() >= minArea {
			out = append(out, r)
		}
	}
	return out
}
