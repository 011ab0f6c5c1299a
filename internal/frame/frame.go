// Package frame defines the boundary between capture sources and the
// detection engine: an immutable pixel view plus optional richer
// capabilities a source may provide.
package frame

import (
	"context"
	"image"

	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Frame is an immutable view of one captured screen image.
//
// Pixels returns packed RGB bytes (3 per pixel, row-major, stride = width*3)
// for the requested window, which must lie inside the frame. The returned
// slice is read-only from the caller's perspective. Pixels is the only
// operation that may block.
type Frame interface {
	Width() int
	Height() int
	Pixels(ctx context.Context, r region.Rect) ([]byte, error)
}

// Grayscaler is an optional capability: the frame can hand out a
// single-channel luminance plane directly. Histogram and edge comparison
// use it opportunistically and degrade to sampling without it.
type Grayscaler interface {
	Grayscale(ctx context.Context) ([]byte, error)
}

// Cloner is an optional capability for sources that reuse buffers.
type Cloner interface {
	Clone() Frame
}

// Imager is an optional capability exposing the backing image, used for
// perceptual hashing and region crops outside the detection core.
type Imager interface {
	Image() *image.RGBA
}

// Bounds returns the frame's full extent.
func Bounds(f Frame) region.Rect {
	return region.Rect{Width: f.Width(), Height: f.Height()}
}
