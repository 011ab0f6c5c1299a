package detect

import (
	"context"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Hybrid chains three strategies from cheapest to most precise. A lenient
// histogram pass screens out static frames, sampling confirms and localises
// the change, and an edge pass refines text regions. Later stages only run
// while earlier ones keep reporting change, so still screens cost one
// histogram comparison.
type Hybrid struct {
	histogram Algorithm
	sampling  Algorithm
	edge      Algorithm
}

// NewHybrid composes the cascade from its stages. Passing a shared *Edge
// lets the hybrid reuse its memoised edge maps.
func NewHybrid(histogram, sampling, edge Algorithm) *Hybrid {
	return &Hybrid{histogram: histogram, sampling: sampling, edge: edge}
}

func (a *Hybrid) Kind() Kind { return KindHybrid }

// Detect implements Algorithm.
func (a *Hybrid) Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	if err := validateInput(prev, curr, s); err != nil {
		return nil, err
	}
	return guarded(KindHybrid, curr, func() (*Result, error) {
		return a.detect(ctx, prev, curr, s)
	})
}

func (a *Hybrid) detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	// Stage 1: lenient screen. A histogram miss at a reduced threshold means
	// the frames are close enough to skip the per-pixel work entirely.
	screen := s
	screen.Threshold = s.Threshold * HybridHistogramFactor
	first, err := a.histogram.Detect(ctx, prev, curr, screen)
	if err != nil {
		return nil, err
	}
	if !first.HasSignificantChange {
		return first, nil
	}

	// Stage 2: sampling confirms at the caller's threshold and localises.
	second, err := a.sampling.Detect(ctx, prev, curr, s)
	if err != nil {
		return nil, err
	}
	if !second.HasSignificantChange {
		return second, nil
	}
	if !s.FocusOnTextRegions {
		return second, nil
	}

	// Stage 3: edge refinement, more sensitive than standalone edge runs.
	refine := s
	refine.EdgeChangeWeight = s.EdgeChangeWeight * HybridEdgeWeightFactor
	third, err := a.edge.Detect(ctx, prev, curr, refine)
	if err != nil {
		return nil, err
	}

	merged := append(append([]region.Rect{}, second.ChangedRegions...), third.ChangedRegions...)
	return &Result{
		HasSignificantChange:   second.HasSignificantChange || third.HasSignificantChange,
		ChangeRatio:            (second.ChangeRatio + third.ChangeRatio) / 2,
		ChangedRegions:         region.MergeAdjacent(merged, HybridMergeEps),
		DisappearedTextRegions: third.DisappearedTextRegions,
	}, nil
}
