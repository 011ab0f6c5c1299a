package frame

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// ITU-R BT.601 luminance weights.
const (
	lumaRed   = 0.299
	lumaGreen = 0.587
	lumaBlue  = 0.114
)

// Buffer is an in-memory Frame backed by a packed RGB byte slice.
type Buffer struct {
	width  int
	height int
	pix    []byte
}

// NewBuffer wraps packed RGB bytes as a frame. len(pix) must be w*h*3.
func NewBuffer(w, h int, pix []byte) (*Buffer, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Newf(errors.InvalidArgument, "invalid frame size %dx%d", w, h)
	}
	if len(pix) != w*h*3 {
		return nil, errors.Newf(errors.InvalidArgument, "pixel buffer length %d, want %d", len(pix), w*h*3)
	}
	return &Buffer{width: w, height: h, pix: pix}, nil
}

// FromImage converts any image into a Buffer. The image is cloned, so the
// buffer stays valid if the source is reused.
func FromImage(img image.Image) *Buffer {
	n := imaging.Clone(img)
	w, h := n.Bounds().Dx(), n.Bounds().Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		src := n.Pix[y*n.Stride : y*n.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3+0] = src[x*4+0]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return &Buffer{width: w, height: h, pix: pix}
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Pixels returns packed RGB bytes for the given window. The full-frame
// window returns the backing slice without copying.
func (b *Buffer) Pixels(ctx context.Context, r region.Rect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Empty() || r.X < 0 || r.Y < 0 || r.X+r.Width > b.width || r.Y+r.Height > b.height {
		return nil, errors.Newf(errors.OutOfRange, "window %dx%d@(%d,%d) outside %dx%d frame",
			r.Width, r.Height, r.X, r.Y, b.width, b.height)
	}
	if r.X == 0 && r.Y == 0 && r.Width == b.width && r.Height == b.height {
		return b.pix, nil
	}
	out := make([]byte, r.Width*r.Height*3)
	for row := 0; row < r.Height; row++ {
		src := ((r.Y+row)*b.width + r.X) * 3
		copy(out[row*r.Width*3:(row+1)*r.Width*3], b.pix[src:src+r.Width*3])
	}
	return out, nil
}

// Grayscale returns one BT.601 luminance byte per pixel.
func (b *Buffer) Grayscale(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, b.width*b.height)
	for i := range out {
		p := b.pix[i*3 : i*3+3]
		out[i] = byte(lumaRed*float64(p[0]) + lumaGreen*float64(p[1]) + lumaBlue*float64(p[2]))
	}
	return out, nil
}

// Clone returns an independent copy.
func (b *Buffer) Clone() Frame {
	pix := make([]byte, len(b.pix))
	copy(pix, b.pix)
	return &Buffer{width: b.width, height: b.height, pix: pix}
}

// Image renders the buffer as an opaque RGBA image.
func (b *Buffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for i := 0; i < b.width*b.height; i++ {
		img.Pix[i*4+0] = b.pix[i*3+0]
		img.Pix[i*4+1] = b.pix[i*3+1]
		img.Pix[i*4+2] = b.pix[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img
}
