package frame

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

func solidBuffer(t *testing.T, w, h int, r, g, b byte) *Buffer {
	t.Helper()
	pix := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[i*3+0] = r
		pix[i*3+1] = g
		pix[i*3+2] = b
	}
	buf, err := NewBuffer(w, h, pix)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func TestNewBufferValidation(t *testing.T) {
	if _, err := NewBuffer(10, 10, make([]byte, 10)); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("short buffer: err = %v, want InvalidArgument", err)
	}
	if _, err := NewBuffer(0, 10, nil); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("zero width: err = %v, want InvalidArgument", err)
	}
}

func TestPixelsWindow(t *testing.T) {
	buf := solidBuffer(t, 8, 8, 1, 2, 3)
	ctx := context.Background()

	full, err := buf.Pixels(ctx, Bounds(buf))
	if err != nil {
		t.Fatalf("full window: %v", err)
	}
	if len(full) != 8*8*3 {
		t.Errorf("full window length = %d", len(full))
	}

	sub, err := buf.Pixels(ctx, region.Rect{X: 2, Y: 3, Width: 4, Height: 2})
	if err != nil {
		t.Fatalf("sub window: %v", err)
	}
	if len(sub) != 4*2*3 {
		t.Errorf("sub window length = %d, want %d", len(sub), 4*2*3)
	}
	if sub[0] != 1 || sub[1] != 2 || sub[2] != 3 {
		t.Errorf("sub window pixel = %v", sub[:3])
	}

	if _, err := buf.Pixels(ctx, region.Rect{X: 5, Y: 5, Width: 10, Height: 10}); !errors.IsCode(err, errors.OutOfRange) {
		t.Errorf("out of bounds window: err = %v, want OutOfRange", err)
	}
}

func TestPixelsCancelled(t *testing.T) {
	buf := solidBuffer(t, 4, 4, 0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := buf.Pixels(ctx, Bounds(buf)); err == nil {
		t.Error("cancelled context should surface an error")
	}
}

func TestGrayscaleWeights(t *testing.T) {
	ctx := context.Background()

	white := solidBuffer(t, 2, 2, 255, 255, 255)
	lum, err := white.Grayscale(ctx)
	if err != nil {
		t.Fatalf("Grayscale: %v", err)
	}
	if len(lum) != 4 {
		t.Fatalf("luminance length = %d", len(lum))
	}
	if lum[0] < 254 {
		t.Errorf("white luminance = %d, want ~255", lum[0])
	}

	// pure green weighs 0.587
	green := solidBuffer(t, 1, 1, 0, 255, 0)
	lum, _ = green.Grayscale(ctx)
	if lum[0] < 148 || lum[0] > 151 {
		t.Errorf("green luminance = %d, want ~149", lum[0])
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 7, A: 255})
		}
	}

	buf := FromImage(img)
	if buf.Width() != 4 || buf.Height() != 4 {
		t.Fatalf("size = %dx%d", buf.Width(), buf.Height())
	}

	pix, err := buf.Pixels(context.Background(), region.Rect{X: 3, Y: 2, Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("Pixels: %v", err)
	}
	if pix[0] != 180 || pix[1] != 120 || pix[2] != 7 {
		t.Errorf("pixel at (3,2) = %v, want [180 120 7]", pix)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	buf := solidBuffer(t, 2, 2, 10, 20, 30)
	clone := buf.Clone().(*Buffer)

	buf.pix[0] = 99
	if clone.pix[0] == 99 {
		t.Error("clone shares backing storage with original")
	}
}

func TestImageRoundTrip(t *testing.T) {
	buf := solidBuffer(t, 3, 3, 50, 100, 150)
	img := buf.Image()

	r, g, b, a := img.At(1, 1).RGBA()
	if r>>8 != 50 || g>>8 != 100 || b>>8 != 150 || a>>8 != 255 {
		t.Errorf("Image pixel = %d,%d,%d,%d", r>>8, g>>8, b>>8, a>>8)
	}

	back := FromImage(img)
	pix, _ := back.Pixels(context.Background(), region.Rect{Width: 1, Height: 1})
	if pix[0] != 50 || pix[1] != 100 || pix[2] != 150 {
		t.Errorf("round trip pixel = %v", pix[:3])
	}
}
