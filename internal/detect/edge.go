package detect

import (
	"context"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Edge compares Sobel edge maps of the two frames. Text is edge-dense, so
// edge change is weighted by EdgeChangeWeight: the effective decision
// threshold is Threshold/EdgeChangeWeight, making heavier weights more
// sensitive. With text focus on it also reports regions where edge density
// collapsed, which signals text removal.
//
// Edge maps are memoised in a small LRU keyed by the luminance content, so
// the changed-region pass and the disappearance pass over the same frame
// pair pay for each Sobel convolution once.
type Edge struct {
	cache *lru.Cache[edgeKey, []bool]
}

type edgeKey struct {
	w, h int
	sum  uint64
}

// NewEdge creates the edge-comparison strategy.
func NewEdge() *Edge {
	cache, _ := lru.New[edgeKey, []bool](EdgeMapCacheSize)
	return &Edge{cache: cache}
}

func (a *Edge) Kind() Kind { return KindEdge }

// Detect implements Algorithm.
func (a *Edge) Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	if err := validateInput(prev, curr, s); err != nil {
		return nil, err
	}
	return guarded(KindEdge, curr, func() (*Result, error) {
		return a.detect(ctx, prev, curr, s)
	})
}

func (a *Edge) detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error) {
	w, h := curr.Width(), curr.Height()
	threshold := s.Threshold / s.EdgeChangeWeight

	prevLum, currLum, ok, err := luminancePair(ctx, prev, curr)
	if err != nil {
		return nil, err
	}
	if !ok {
		// No luminance plane means no edge map; degrade to the sparse probe.
		ratio, err := sparseRatio(ctx, prev, curr, s)
		if err != nil {
			return nil, err
		}
		res := &Result{HasSignificantChange: ratio > threshold, ChangeRatio: ratio}
		if res.HasSignificantChange {
			res.ChangedRegions = []region.Rect{frame.Bounds(curr)}
		}
		return res, nil
	}

	prevEdges := a.edgeMap(ctx, prevLum, w, h)
	currEdges := a.edgeMap(ctx, currLum, w, h)

	diff := make([]bool, w*h)
	changed, evaluated := 0, 0
	for y := 0; y < h; y++ {
		if ctx.Err() != nil {
			break
		}
		row := y * w
		for x := 0; x < w; x++ {
			if prevEdges[row+x] != currEdges[row+x] {
				diff[row+x] = true
				changed++
			}
		}
		evaluated += w
	}

	ratio := 0.0
	if evaluated > 0 {
		ratio = float64(changed) / float64(evaluated)
	}
	res := &Result{HasSignificantChange: ratio > threshold, ChangeRatio: ratio}
	if changed > 0 {
		res.ChangedRegions = componentRegions(diff, w, h, s)
	}
	if s.FocusOnTextRegions {
		res.DisappearedTextRegions = disappearedRegions(ctx, prevEdges, currEdges, w, h)
	}
	return res, nil
}

// edgeMap returns the Sobel edge map for a luminance plane, from cache when
// the same content was mapped recently. Maps from interrupted convolutions
// are never cached.
func (a *Edge) edgeMap(ctx context.Context, lum []byte, w, h int) []bool {
	hasher := fnv.New64a()
	_, _ = hasher.Write(lum)
	key := edgeKey{w: w, h: h, sum: hasher.Sum64()}

	if m, ok := a.cache.Get(key); ok {
		return m
	}
	m := sobelEdges(ctx, lum, w, h)
	if ctx.Err() == nil {
		a.cache.Add(key, m)
	}
	return m
}

// sobelEdges marks pixels whose |gx|+|gy| Sobel response exceeds the
// magnitude threshold. The one-pixel border is left unmarked.
func sobelEdges(ctx context.Context, lum []byte, w, h int) []bool {
	edges := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		if ctx.Err() != nil {
			break
		}
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := int(lum[i-w+1]) + 2*int(lum[i+1]) + int(lum[i+w+1]) -
				int(lum[i-w-1]) - 2*int(lum[i-1]) - int(lum[i+w-1])
			gy := int(lum[i+w-1]) + 2*int(lum[i+w]) + int(lum[i+w+1]) -
				int(lum[i-w-1]) - 2*int(lum[i-w]) - int(lum[i-w+1])
			if abs(gx)+abs(gy) > SobelMagnitudeThreshold {
				edges[i] = true
			}
		}
	}
	return edges
}

// disappearedRegions finds text-sized blocks whose edge density fell from a
// level indicating content to a fraction of it. These are reported raw:
// small vanished labels matter, so no minimum-area filter applies.
func disappearedRegions(ctx context.Context, prevEdges, currEdges []bool, w, h int) []region.Rect {
	cols := (w + TextBlockSize - 1) / TextBlockSize
	rows := (h + TextBlockSize - 1) / TextBlockSize
	grid := make([]bool, cols*rows)

	for cy := 0; cy < rows; cy++ {
		if ctx.Err() != nil {
			break
		}
		for cx := 0; cx < cols; cx++ {
			x0, y0 := cx*TextBlockSize, cy*TextBlockSize
			cw := min(TextBlockSize, w-x0)
			ch := min(TextBlockSize, h-y0)

			prevCount, currCount := 0, 0
			for dy := 0; dy < ch; dy++ {
				row := (y0+dy)*w + x0
				for dx := 0; dx < cw; dx++ {
					if prevEdges[row+dx] {
						prevCount++
					}
					if currEdges[row+dx] {
						currCount++
					}
				}
			}

			density := float64(prevCount) / float64(cw*ch)
			if density >= MinTextEdgeDensity && float64(currCount) <= float64(prevCount)*TextDensityDropRatio {
				grid[cy*cols+cx] = true
			}
		}
	}

	return scaleRects(gridComponents(grid, cols, rows, 1), TextBlockSize, w, h)
}
