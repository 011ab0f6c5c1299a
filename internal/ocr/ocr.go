// Package ocr defines the contract between the monitor and whichever text
// recognition engine is plugged in. The monitor only crops and schedules;
// recognition itself lives behind Recognizer.
package ocr

import (
	"context"
	"image"

	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// TextBox is one recognized run of text and where it sits on screen.
type TextBox struct {
	Text       string      `json:"text"`
	Bounds     region.Rect `json:"bounds"`
	Confidence float64     `json:"confidence"`
}

// Recognizer extracts text from an image. Implementations are expected to be
// safe for concurrent use; the monitor may recognize several regions at once.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]TextBox, error)
}
