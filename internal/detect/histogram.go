package detect

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Histogram compares global luminance distributions. It is the cheapest
// test and carries no position information, so it reports the full frame
// as changed unless the text-focus coarse pass localizes the change.
// Frames that cannot produce a luminance plane are compared through a
// sparse random probe instead.
type Histogram struct{}

// NewHistogram creates the global pre-filter strategy.
func NewHistogram() *Histogram { return &Histogram{} }

func (a *Histogram) Kind() Kind { return KindHistogram }

// Detect implements Algorithm.
func (a *Histogram) Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	if err := validateInput(prev, curr, s); err != nil {
		return nil, err
	}
	return guarded(KindHistogram, curr, func() (*Result, error) {
		return a.detect(ctx, prev, curr, s)
	})
}

func (a *Histogram) detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	w, h := curr.Width(), curr.Height()

	prevLum, currLum, ok, err := luminancePair(ctx, prev, curr)
	if err != nil {
		return nil, err
	}
	if !ok {
		ratio, err := sparseRatio(ctx, prev, curr, s)
		if err != nil {
			return nil, err
		}
		res := &Result{HasSignificantChange: ratio > s.Threshold, ChangeRatio: ratio}
		if res.HasSignificantChange {
			res.ChangedRegions = []region.Rect{frame.Bounds(curr)}
		}
		return res, nil
	}

	ratio := histogramDistance(prevLum, currLum)
	res := &Result{HasSignificantChange: ratio > s.Threshold, ChangeRatio: ratio}
	if !res.HasSignificantChange {
		return res, nil
	}

	if s.FocusOnTextRegions {
		res.ChangedRegions = coarseRegions(ctx, prevLum, currLum, w, h)
	} else {
		res.ChangedRegions = []region.Rect{frame.Bounds(curr)}
	}
	return res, nil
}

// luminancePair fetches both luminance planes when both frames expose the
// capability; ok is false when either frame cannot.
func luminancePair(ctx context.Context, prev, curr frame.Frame) (prevLum, currLum []byte, ok bool, err error) {
	pg, pok := prev.(frame.Grayscaler)
	cg, cok := curr.(frame.Grayscaler)
	if !pok || !cok {
		return nil, nil, false, nil
	}
	if prevLum, err = pg.Grayscale(ctx); err != nil {
		return nil, nil, false, err
	}
	if currLum, err = cg.Grayscale(ctx); err != nil {
		return nil, nil, false, err
	}
	return prevLum, currLum, true, nil
}

// histogramDistance is half the L1 distance between the two normalized
// luminance histograms, which lies in [0,1].
func histogramDistance(prevLum, currLum []byte) float64 {
	var hp, hc [HistogramBins]int
	for _, v := range prevLum {
		hp[v]++
	}
	for _, v := range currLum {
		hc[v]++
	}

	np, nc := float64(len(prevLum)), float64(len(currLum))
	dist := 0.0
	for i := 0; i < HistogramBins; i++ {
		dist += math.Abs(float64(hp[i])/np - float64(hc[i])/nc)
	}
	return dist / 2
}

// coarseRegions localizes change by comparing mean luminance over a coarse
// cell grid. Much rougher than the pixel pipeline, but the histogram
// strategy only needs approximate areas.
func coarseRegions(ctx context.Context, prevLum, currLum []byte, w, h int) []region.Rect {
	cols := (w + CoarseCellSize - 1) / CoarseCellSize
	rows := (h + CoarseCellSize - 1) / CoarseCellSize
	grid := make([]bool, cols*rows)

	for cy := 0; cy < rows; cy++ {
		if ctx.Err() != nil {
			break
		}
		for cx := 0; cx < cols; cx++ {
			x0, y0 := cx*CoarseCellSize, cy*CoarseCellSize
			cw := min(CoarseCellSize, w-x0)
			ch := min(CoarseCellSize, h-y0)

			sumP, sumC := 0, 0
			for dy := 0; dy < ch; dy++ {
				row := (y0+dy)*w + x0
				for dx := 0; dx < cw; dx++ {
					sumP += int(prevLum[row+dx])
					sumC += int(currLum[row+dx])
				}
			}
			n := cw * ch
			if abs(sumP/n-sumC/n) > CoarseMeanDelta {
				grid[cy*cols+cx] = true
			}
		}
	}

	return scaleRects(gridComponents(grid, cols, rows, 1), CoarseCellSize, w, h)
}

// sparseRatio compares a fixed-seed random scatter of single-pixel windows.
// The degraded path for frames without a luminance plane.
func sparseRatio(ctx context.Context, prev, curr frame.Frame, s Settings) (float64, error) {
	w, h := curr.Width(), curr.Height()
	rng := rand.New(rand.NewPCG(DefaultSamplingSeed, DefaultSamplingSeed>>1))

	changed, evaluated := 0, 0
	for i := 0; i < HistogramFallbackSamples; i++ {
		if ctx.Err() != nil {
			break
		}
		win := region.Rect{X: rng.IntN(w), Y: rng.IntN(h), Width: 1, Height: 1}
		pp, err := prev.Pixels(ctx, win)
		if err != nil {
			return 0, err
		}
		cp, err := curr.Pixels(ctx, win)
		if err != nil {
			return 0, err
		}
		if pixelChanged(pp, cp, 0, s.IgnoreLightingChanges) {
			changed++
		}
		evaluated++
	}

	if evaluated == 0 {
		return 0, nil
	}
	return float64(changed) / float64(evaluated), nil
}
