package detect

import (
	"context"
	"math/rand/v2"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Sampling probes a sparse set of points: a uniform lattice of
// SamplingDensity² cell centres plus, when text focus is on, extra
// pseudo-random points. Cheapest strategy that still yields regions.
//
// The random points come from a fixed-seed PCG stream, so two calls over
// the same frames probe the same points and return the same result.
type Sampling struct{}

// NewSampling creates the sparse-probe strategy.
func NewSampling() *Sampling { return &Sampling{} }

func (a *Sampling) Kind() Kind { return KindSampling }

// Detect implements Algorithm.
func (a *Sampling) Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	if err := validateInput(prev, curr, s); err != nil {
		return nil, err
	}
	return guarded(KindSampling, curr, func() (*Result, error) {
		return a.detect(ctx, prev, curr, s)
	})
}

func (a *Sampling) detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	w, h := curr.Width(), curr.Height()
	prevPix, currPix, err := fetchFull(ctx, prev, curr)
	if err != nil {
		return nil, err
	}

	cols := (w + s.BlockSize - 1) / s.BlockSize
	rows := (h + s.BlockSize - 1) / s.BlockSize
	cells := make([]bool, cols*rows)

	changed, evaluated := 0, 0
	probe := func(x, y int) (stop bool) {
		if pixelChanged(prevPix, currPix, (y*w+x)*3, s.IgnoreLightingChanges) {
			changed++
			cells[(y/s.BlockSize)*cols+x/s.BlockSize] = true
		}
		evaluated++
		return float64(changed) > float64(evaluated)*SamplingEarlyExitRatio
	}

	d := s.SamplingDensity
	done := false
	for gy := 0; gy < d && !done; gy++ {
		if ctx.Err() != nil {
			break
		}
		y := min((gy*2+1)*h/(2*d), h-1)
		for gx := 0; gx < d; gx++ {
			x := min((gx*2+1)*w/(2*d), w-1)
			if probe(x, y) {
				done = true
				break
			}
		}
	}

	if s.FocusOnTextRegions && !done {
		rng := rand.New(rand.NewPCG(DefaultSamplingSeed, DefaultSamplingSeed>>1))
		for i := 0; i < TextSampleFactor*d; i++ {
			if ctx.Err() != nil {
				break
			}
			if probe(rng.IntN(w), rng.IntN(h)) {
				break
			}
		}
	}

	ratio := 0.0
	if evaluated > 0 {
		ratio = float64(changed) / float64(evaluated)
	}
	res := &Result{HasSignificantChange: ratio > s.Threshold, ChangeRatio: ratio}
	if changed > 0 {
		groups := gridComponents(cells, cols, rows, MinSampledCells)
		res.ChangedRegions = region.MergeAdjacent(scaleRects(groups, s.BlockSize, w, h), 0)
	}
	return res, nil
}
