// Package capture grabs screen captures and decodes them into frames
package capture

import (
	"bytes"
	"crypto/md5"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
)

// Capturer produces frames of the screen with cheap change pre-filtering.
type Capturer interface {
	// Capture returns the current frame, or (nil, false) when the raw
	// capture bytes hash identically to the previous capture.
	Capture() (*frame.Buffer, bool)
	// CaptureAlways returns the current frame regardless of the hash gate.
	CaptureAlways() *frame.Buffer
	Close()
}

// backend implements platform-specific raw capture
type backend interface {
	captureRaw() []byte
	cleanup()
}

// baseCapturer provides shared hash gating and decoding over a backend. The
// md5 of the leading 4KB is enough to skip re-decoding an unchanged screen
// without reading the whole capture.
type baseCapturer struct {
	backend
	lastHash [16]byte
	tempDir  string
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Capture() (*frame.Buffer, bool) {
	data := c.captureRaw()
	if data == nil {
		return nil, false
	}
	hash := md5.Sum(data[:min(len(data), 4096)])
	if hash == c.lastHash {
		return nil, false
	}
	c.lastHash = hash
	return decode(data)
}

func (c *baseCapturer) CaptureAlways() *frame.Buffer {
	data := c.captureRaw()
	if data == nil {
		return nil
	}
	c.lastHash = md5.Sum(data[:min(len(data), 4096)])
	buf, _ := decode(data)
	return buf
}

func (c *baseCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

func decode(data []byte) (*frame.Buffer, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Error("failed to decode capture", "error", err, "bytes", len(data))
		return nil, false
	}
	return frame.FromImage(img), true
}
