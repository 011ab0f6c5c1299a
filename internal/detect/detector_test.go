package detect

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/events"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// recorder captures published disappearance events.
type recorder struct {
	events []events.TextDisappearance
	err    error
}

func (r *recorder) Publish(ctx context.Context, e events.TextDisappearance) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func newTestDetector(t *testing.T, s Settings) *Detector {
	t.Helper()
	d, err := NewDetector(s, nil, 0)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestDetectorThresholdRoundTrip(t *testing.T) {
	d := newTestDetector(t, DefaultSettings())

	if err := d.SetThreshold(1.5); !errors.IsCode(err, errors.OutOfRange) {
		t.Errorf("SetThreshold(1.5) = %v, want OutOfRange", err)
	}
	if err := d.SetThreshold(0.5); err != nil {
		t.Errorf("SetThreshold(0.5) = %v, want nil", err)
	}
	if got := d.Settings().Threshold; got != 0.5 {
		t.Errorf("Settings().Threshold = %g, want 0.5", got)
	}
}

func TestDetectorRejectsInvalidSettings(t *testing.T) {
	bad := DefaultSettings()
	bad.SamplingDensity = 0
	if _, err := NewDetector(bad, nil, 0); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("NewDetector(bad) = %v, want InvalidArgument", err)
	}

	d := newTestDetector(t, DefaultSettings())
	if err := d.ApplySettings(bad); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("ApplySettings(bad) = %v, want InvalidArgument", err)
	}
}

func TestDetectorDimensionMismatch(t *testing.T) {
	d := newTestDetector(t, DefaultSettings())
	prev := solid(t, 64, 64, 0)
	curr := solid(t, 32, 48, 0)

	has, err := d.HasSignificantChange(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("HasSignificantChange() error: %v", err)
	}
	if !has {
		t.Error("HasSignificantChange = false for resized frame, want true")
	}

	regions, err := d.DetectChangedRegions(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("DetectChangedRegions() error: %v", err)
	}
	want := region.Rect{Width: 32, Height: 48}
	if len(regions) != 1 || regions[0] != want {
		t.Errorf("DetectChangedRegions() = %v, want [%+v]", regions, want)
	}
}

func TestDetectorNilFrames(t *testing.T) {
	d := newTestDetector(t, DefaultSettings())
	f := solid(t, 16, 16, 0)

	if _, err := d.HasSignificantChange(context.Background(), nil, f); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("HasSignificantChange(nil, f) = %v, want InvalidArgument", err)
	}
	if _, err := d.DetectChangedRegions(context.Background(), f, nil); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("DetectChangedRegions(f, nil) = %v, want InvalidArgument", err)
	}
	if _, err := d.DetectTextDisappearance(context.Background(), nil, nil); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("DetectTextDisappearance(nil, nil) = %v, want InvalidArgument", err)
	}
}

func TestDetectorEmptyRegistry(t *testing.T) {
	d, err := NewDetectorWith(DefaultSettings(), map[Kind]Algorithm{}, nil, 0)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	f := solid(t, 16, 16, 0)

	if _, err := d.HasSignificantChange(context.Background(), f, f); !errors.IsCode(err, errors.Unavailable) {
		t.Errorf("HasSignificantChange() = %v, want Unavailable", err)
	}
}

func TestDetectorSubstitutesMissingAlgorithm(t *testing.T) {
	// Only a scripted block strategy is registered while hybrid is requested:
	// the detector substitutes rather than failing.
	scripted := &stage{kind: KindBlock, res: &Result{HasSignificantChange: true, ChangeRatio: 0.8}}
	s := DefaultSettings()
	s.Algorithm = KindHybrid

	d, err := NewDetectorWith(s, map[Kind]Algorithm{KindBlock: scripted}, nil, 0)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	f := solid(t, 16, 16, 0)

	has, err := d.HasSignificantChange(context.Background(), f, f)
	if err != nil {
		t.Fatalf("HasSignificantChange() error: %v", err)
	}
	if !has || scripted.calls != 1 {
		t.Errorf("has = %v, substitute calls = %d; want true via the block strategy", has, scripted.calls)
	}
}

func TestDetectorFiltersSmallRegions(t *testing.T) {
	scripted := &stage{kind: KindPixel, res: &Result{
		HasSignificantChange: true,
		ChangeRatio:          0.5,
		ChangedRegions: []region.Rect{
			{X: 0, Y: 0, Width: 5, Height: 5},
			{X: 10, Y: 10, Width: 20, Height: 20},
		},
	}}
	s := DefaultSettings()
	s.Algorithm = KindPixel
	s.MinimumChangedArea = 100

	d, err := NewDetectorWith(s, map[Kind]Algorithm{KindPixel: scripted}, nil, 0)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	f := solid(t, 64, 64, 0)

	regions, err := d.DetectChangedRegions(context.Background(), f, f)
	if err != nil {
		t.Fatalf("DetectChangedRegions() error: %v", err)
	}
	want := region.Rect{X: 10, Y: 10, Width: 20, Height: 20}
	if len(regions) != 1 || regions[0] != want {
		t.Errorf("DetectChangedRegions() = %v, want [%+v]", regions, want)
	}
}

func TestDetectorKeepsFullFrameRegionOnTinyFrames(t *testing.T) {
	// The fail-safe full-frame rectangle is exempt from the area floor even
	// when the frame itself is smaller than the floor.
	scripted := &stage{kind: KindPixel, res: &Result{
		HasSignificantChange: true,
		ChangeRatio:          1,
		ChangedRegions:       []region.Rect{{Width: 8, Height: 8}},
	}}
	s := DefaultSettings()
	s.Algorithm = KindPixel
	s.MinimumChangedArea = 100

	d, err := NewDetectorWith(s, map[Kind]Algorithm{KindPixel: scripted}, nil, 0)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	f := solid(t, 8, 8, 0)

	regions, err := d.DetectChangedRegions(context.Background(), f, f)
	if err != nil {
		t.Fatalf("DetectChangedRegions() error: %v", err)
	}
	want := region.Rect{Width: 8, Height: 8}
	if len(regions) != 1 || regions[0] != want {
		t.Errorf("DetectChangedRegions() = %v, want [%+v]", regions, want)
	}
}

func TestDetectorPreviousTextRegionsCopied(t *testing.T) {
	d := newTestDetector(t, DefaultSettings())

	input := []region.Rect{{X: 1, Y: 2, Width: 3, Height: 4}}
	d.SetPreviousTextRegions(input)
	input[0].X = 99

	got := d.PreviousTextRegions()
	if got[0].X != 1 {
		t.Error("stored regions share backing memory with the caller's slice")
	}

	got[0].Y = 99
	if d.PreviousTextRegions()[0].Y != 2 {
		t.Error("returned regions share backing memory with the stored slice")
	}

	d.SetPreviousTextRegions(nil)
	if regions := d.PreviousTextRegions(); len(regions) != 0 {
		t.Errorf("PreviousTextRegions() after nil set = %v, want empty", regions)
	}
}

func TestDetectorPublishesDisappearance(t *testing.T) {
	scripted := &stage{kind: KindHybrid, res: &Result{
		HasSignificantChange:   true,
		DisappearedTextRegions: []region.Rect{{X: 4, Y: 4, Width: 8, Height: 8}},
	}}
	pub := &recorder{}

	d, err := NewDetectorWith(DefaultSettings(), map[Kind]Algorithm{KindHybrid: scripted}, pub, 42)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	f := solid(t, 32, 32, 0)

	// Without a prior text layout nothing can have disappeared: no event.
	if _, err := d.HasSignificantChange(context.Background(), f, f); err != nil {
		t.Fatalf("HasSignificantChange() error: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events without prior text regions, want 0", len(pub.events))
	}

	d.SetPreviousTextRegions([]region.Rect{{X: 4, Y: 4, Width: 8, Height: 8}})
	if _, err := d.HasSignificantChange(context.Background(), f, f); err != nil {
		t.Fatalf("HasSignificantChange() error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}

	e := pub.events[0]
	if e.WindowHandle != 42 {
		t.Errorf("WindowHandle = %d, want 42", e.WindowHandle)
	}
	if e.ID == uuid.Nil || e.Timestamp.IsZero() {
		t.Error("event missing identity or timestamp")
	}
	if !reflect.DeepEqual(e.Regions, scripted.res.DisappearedTextRegions) {
		t.Errorf("event regions = %v, want %v", e.Regions, scripted.res.DisappearedTextRegions)
	}
}

func TestDetectorSwallowsPublishFailure(t *testing.T) {
	scripted := &stage{kind: KindHybrid, res: &Result{
		HasSignificantChange:   true,
		DisappearedTextRegions: []region.Rect{{X: 4, Y: 4, Width: 8, Height: 8}},
	}}
	pub := &recorder{err: errors.New(errors.Unavailable, "bus down")}

	d, err := NewDetectorWith(DefaultSettings(), map[Kind]Algorithm{KindHybrid: scripted}, pub, 0)
	if err != nil {
		t.Fatalf("NewDetectorWith: %v", err)
	}
	d.SetPreviousTextRegions([]region.Rect{{X: 0, Y: 0, Width: 8, Height: 8}})
	f := solid(t, 32, 32, 0)

	has, err := d.HasSignificantChange(context.Background(), f, f)
	if err != nil {
		t.Errorf("HasSignificantChange() error: %v, want publish failure swallowed", err)
	}
	if !has {
		t.Error("HasSignificantChange = false, want the detection result unaffected")
	}
}

func TestDetectorTextDisappearanceEndToEnd(t *testing.T) {
	area := region.Rect{X: 32, Y: 32, Width: 32, Height: 32}
	prev := stripes(t, 96, 96, 128, area)
	curr := solid(t, 96, 96, 128)
	pub := &recorder{}

	d, err := NewDetector(DefaultSettings(), pub, 7)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	// No prior layout: nothing to report, no event.
	regions, err := d.DetectTextDisappearance(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("DetectTextDisappearance() error: %v", err)
	}
	if len(regions) != 0 || len(pub.events) != 0 {
		t.Fatalf("regions = %v, events = %d; want none without prior layout", regions, len(pub.events))
	}

	d.SetPreviousTextRegions([]region.Rect{area})
	regions, err = d.DetectTextDisappearance(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("DetectTextDisappearance() error: %v", err)
	}
	if len(regions) != 1 || regions[0] != area {
		t.Errorf("DetectTextDisappearance() = %v, want [%+v]", regions, area)
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}

	// A resize makes the layouts incomparable.
	small := solid(t, 48, 48, 128)
	regions, err = d.DetectTextDisappearance(context.Background(), prev, small)
	if err != nil {
		t.Fatalf("DetectTextDisappearance() error: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("DetectTextDisappearance() across resize = %v, want none", regions)
	}
}

func TestDetectorIdempotent(t *testing.T) {
	prev := solid(t, 96, 96, 0)
	curr := withPatch(t, 96, 96, 0, region.Rect{X: 20, Y: 20, Width: 40, Height: 40}, 255)
	d := newTestDetector(t, DefaultSettings())

	first, err := d.DetectChangedRegions(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("DetectChangedRegions() error: %v", err)
	}
	second, err := d.DetectChangedRegions(context.Background(), prev, curr)
	if err != nil {
		t.Fatalf("DetectChangedRegions() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ: %v vs %v", first, second)
	}
}

func TestDefaultAlgorithmsCoverEveryKind(t *testing.T) {
	algos := DefaultAlgorithms()
	if len(algos) != len(kindNames) {
		t.Fatalf("DefaultAlgorithms() has %d entries, want %d", len(algos), len(kindNames))
	}
	for kind, algo := range algos {
		if algo.Kind() != kind {
			t.Errorf("registry[%v].Kind() = %v", kind, algo.Kind())
		}
	}
}
