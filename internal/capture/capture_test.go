package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

// fakeBackend feeds scripted bytes instead of running a screenshot tool.
type fakeBackend struct {
	data    []byte
	cleaned bool
}

func (f *fakeBackend) captureRaw() []byte { return f.data }
func (f *fakeBackend) cleanup()           { f.cleaned = true }

// encodePNG renders a small solid image as PNG bytes.
func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestCaptureDecodesFrame(t *testing.T) {
	fake := &fakeBackend{data: encodePNG(t, 8, 6, color.RGBA{R: 200, A: 255})}
	c := newBase(fake, "")

	f, changed := c.Capture()
	if !changed {
		t.Fatal("Capture() reported no change on first capture")
	}
	if f == nil || f.Width() != 8 || f.Height() != 6 {
		t.Fatalf("Capture() frame = %v, want 8x6", f)
	}
}

func TestCaptureHashGate(t *testing.T) {
	fake := &fakeBackend{data: encodePNG(t, 8, 8, color.RGBA{G: 100, A: 255})}
	c := newBase(fake, "")

	if _, changed := c.Capture(); !changed {
		t.Fatal("first Capture() gated, want change")
	}
	if f, changed := c.Capture(); changed || f != nil {
		t.Error("identical bytes passed the hash gate, want (nil, false)")
	}

	fake.data = encodePNG(t, 8, 8, color.RGBA{B: 100, A: 255})
	if _, changed := c.Capture(); !changed {
		t.Error("new bytes gated, want change")
	}
}

func TestCaptureAlwaysBypassesGate(t *testing.T) {
	fake := &fakeBackend{data: encodePNG(t, 4, 4, color.RGBA{A: 255})}
	c := newBase(fake, "")

	if f := c.CaptureAlways(); f == nil {
		t.Fatal("CaptureAlways() = nil, want frame")
	}
	if f := c.CaptureAlways(); f == nil {
		t.Error("repeated CaptureAlways() = nil, want frame despite identical bytes")
	}

	// The gate still learns the hash: a regular Capture sees no change.
	if f, changed := c.Capture(); changed || f != nil {
		t.Error("Capture() after CaptureAlways() passed the gate, want (nil, false)")
	}
}

func TestCaptureFailures(t *testing.T) {
	c := newBase(&fakeBackend{data: nil}, "")
	if f, changed := c.Capture(); f != nil || changed {
		t.Error("Capture() with failed backend, want (nil, false)")
	}

	c = newBase(&fakeBackend{data: []byte("not an image")}, "")
	if f, changed := c.Capture(); f != nil || changed {
		t.Error("Capture() with undecodable bytes, want (nil, false)")
	}
}

func TestCloseCleansUp(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "baketa-capture-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	fake := &fakeBackend{}
	c := newBase(fake, tmpDir)

	c.Close()

	if !fake.cleaned {
		t.Error("backend cleanup not called")
	}
	if _, err := os.Stat(tmpDir); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after Close")
	}
}
