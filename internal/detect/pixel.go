package detect

import (
	"context"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
)

// Pixel scans every pixel of both frames. Highest fidelity, highest cost.
type Pixel struct{}

// NewPixel creates the full-scan strategy.
func NewPixel() *Pixel { return &Pixel{} }

func (a *Pixel) Kind() Kind { return KindPixel }

// Detect implements Algorithm.
func (a *Pixel) Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	if err := validateInput(prev, curr, s); err != nil {
		return nil, err
	}
	return guarded(KindPixel, curr, func() (*Result, error) {
		return a.detect(ctx, prev, curr, s)
	})
}

func (a *Pixel) detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	w, h := curr.Width(), curr.Height()
	prevPix, currPix, err := fetchFull(ctx, prev, curr)
	if err != nil {
		return nil, err
	}

	// Multi-scale pre-check: a coarse lattice can rule out change before the
	// full scan is paid for.
	if s.ScaleCount > 1 {
		coarse := latticeRatio(prevPix, currPix, w, h, CoarseScanStride, s.IgnoreLightingChanges)
		if coarse < s.Threshold {
			return &Result{ChangeRatio: coarse}, nil
		}
	}

	grid := make([]bool, w*h)
	changed, evaluated := 0, 0
	for y := 0; y < h; y++ {
		if ctx.Err() != nil {
			break
		}
		row := y * w
		for x := 0; x < w; x++ {
			if pixelChanged(prevPix, currPix, (row+x)*3, s.IgnoreLightingChanges) {
				grid[row+x] = true
				changed++
			}
		}
		evaluated += w
		if float64(changed) > float64(evaluated)*s.Threshold*PixelEarlyExitFactor {
			break
		}
	}

	ratio := 0.0
	if evaluated > 0 {
		ratio = float64(changed) / float64(evaluated)
	}
	res := &Result{HasSignificantChange: ratio > s.Threshold, ChangeRatio: ratio}
	if changed > 0 {
		res.ChangedRegions = componentRegions(grid, w, h, s)
	}
	return res, nil
}

// latticeRatio compares pixels on a sparse lattice, stride apart on both
// axes.
func latticeRatio(prevPix, currPix []byte, w, h, stride int, ignoreLighting bool) float64 {
	changed, evaluated := 0, 0
	for y := 0; y < h; y += stride {
		row := y * w
		for x := 0; x < w; x += stride {
			if pixelChanged(prevPix, currPix, (row+x)*3, ignoreLighting) {
				changed++
			}
			evaluated++
		}
	}
	if evaluated == 0 {
		return 0
	}
	return float64(changed) / float64(evaluated)
}
