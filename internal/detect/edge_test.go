package detect

import (
	"context"
	"testing"

	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// stripes paints a text-like pattern: 2px vertical bars alternating black
// and white inside the given area.
func stripes(t *testing.T, w, h int, bg byte, area region.Rect) *frame.Buffer {
	t.Helper()
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = bg
	}
	for y := area.Y; y < area.Y+area.Height; y++ {
		for x := area.X; x < area.X+area.Width; x++ {
			var c byte
			if ((x-area.X)/2)%2 == 1 {
				c = 255
			}
			off := (y*w + x) * 3
			pix[off], pix[off+1], pix[off+2] = c, c, c
		}
	}
	f, err := frame.NewBuffer(w, h, pix)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return f
}

func TestEdgeIdentical(t *testing.T) {
	f := stripes(t, 64, 64, 128, region.Rect{X: 16, Y: 16, Width: 32, Height: 32})
	s := DefaultSettings()
	s.Algorithm = KindEdge

	res, err := NewEdge().Detect(context.Background(), f, f, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if res.HasSignificantChange || res.ChangeRatio != 0 {
		t.Errorf("identical frames = %+v, want no change", res)
	}
}

func TestEdgeDetectsTextDisappearance(t *testing.T) {
	area := region.Rect{X: 32, Y: 32, Width: 32, Height: 32}
	prev := stripes(t, 96, 96, 128, area)
	curr := solid(t, 96, 96, 128)

	s := DefaultSettings()
	s.Algorithm = KindEdge
	s.FocusOnTextRegions = true

	res, err := NewEdge().Detect(context.Background(), prev, curr, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if !res.HasSignificantChange {
		t.Error("HasSignificantChange = false, want true")
	}
	if len(res.ChangedRegions) == 0 {
		t.Error("ChangedRegions empty, want the vanished pattern localized")
	}
	if len(res.DisappearedTextRegions) != 1 || res.DisappearedTextRegions[0] != area {
		t.Errorf("DisappearedTextRegions = %v, want [%+v]", res.DisappearedTextRegions, area)
	}
	checkResultBounds(t, res, 96, 96)
}

func TestEdgeNoFocusSkipsDisappearance(t *testing.T) {
	area := region.Rect{X: 32, Y: 32, Width: 32, Height: 32}
	prev := stripes(t, 96, 96, 128, area)
	curr := solid(t, 96, 96, 128)

	s := DefaultSettings()
	s.Algorithm = KindEdge
	s.FocusOnTextRegions = false

	res, err := NewEdge().Detect(context.Background(), prev, curr, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if len(res.DisappearedTextRegions) != 0 {
		t.Errorf("DisappearedTextRegions = %v, want none without text focus", res.DisappearedTextRegions)
	}
}

func TestEdgeAppearedTextNotDisappearance(t *testing.T) {
	// Text appearing is change, not disappearance.
	area := region.Rect{X: 32, Y: 32, Width: 32, Height: 32}
	prev := solid(t, 96, 96, 128)
	curr := stripes(t, 96, 96, 128, area)

	s := DefaultSettings()
	s.Algorithm = KindEdge

	res, err := NewEdge().Detect(context.Background(), prev, curr, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if !res.HasSignificantChange {
		t.Error("HasSignificantChange = false, want true")
	}
	if len(res.DisappearedTextRegions) != 0 {
		t.Errorf("DisappearedTextRegions = %v, want none when text appears", res.DisappearedTextRegions)
	}
}

func TestEdgeWeightScalesSensitivity(t *testing.T) {
	// The same small edge change flips from insignificant to significant as
	// the weight grows.
	area := region.Rect{X: 32, Y: 32, Width: 16, Height: 16}
	prev := solid(t, 128, 128, 128)
	curr := stripes(t, 128, 128, 128, area)

	s := DefaultSettings()
	s.Algorithm = KindEdge
	s.Threshold = 0.2
	s.EdgeChangeWeight = 1

	res, err := NewEdge().Detect(context.Background(), prev, curr, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if res.HasSignificantChange {
		t.Errorf("weight 1: significant at ratio %g, want not", res.ChangeRatio)
	}

	s.EdgeChangeWeight = 50
	res, err = NewEdge().Detect(context.Background(), prev, curr, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if !res.HasSignificantChange {
		t.Errorf("weight 50: not significant at ratio %g, want significant", res.ChangeRatio)
	}
}

func TestEdgeFallbackWithoutLuminance(t *testing.T) {
	base := solid(t, 64, 64, 0)
	inverted := solid(t, 64, 64, 255)
	s := DefaultSettings()
	s.Algorithm = KindEdge

	res, err := NewEdge().Detect(context.Background(), &plain{buf: base}, &plain{buf: base.Clone().(*frame.Buffer)}, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if res.HasSignificantChange || res.ChangeRatio != 0 {
		t.Errorf("fallback identical = %+v, want no change", res)
	}

	res, err = NewEdge().Detect(context.Background(), &plain{buf: base}, &plain{buf: inverted}, s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if !res.HasSignificantChange || res.ChangeRatio != 1 {
		t.Errorf("fallback full change = %+v, want ratio 1", res)
	}
	want := region.Rect{Width: 64, Height: 64}
	if len(res.ChangedRegions) != 1 || res.ChangedRegions[0] != want {
		t.Errorf("ChangedRegions = %v, want [%+v]", res.ChangedRegions, want)
	}
}

func TestEdgeMapMemoised(t *testing.T) {
	a := NewEdge()
	lum := make([]byte, 32*32)
	for i := range lum {
		lum[i] = byte(i % 251)
	}

	first := a.edgeMap(context.Background(), lum, 32, 32)
	second := a.edgeMap(context.Background(), lum, 32, 32)
	if &first[0] != &second[0] {
		t.Error("edgeMap recomputed for identical luminance content, want cache hit")
	}
}

func TestSobelEdgesMarksBoundary(t *testing.T) {
	// A hard vertical boundary produces edges along it, nowhere else.
	w, h := 16, 16
	lum := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 8; x < w; x++ {
			lum[y*w+x] = 255
		}
	}

	edges := sobelEdges(context.Background(), lum, w, h)
	if !edges[5*w+8] {
		t.Error("no edge at the boundary column")
	}
	if edges[5*w+2] {
		t.Error("edge in flat area")
	}
	for x := 0; x < w; x++ {
		if edges[x] || edges[(h-1)*w+x] {
			t.Error("edge marked on the frame border")
			break
		}
	}
}
