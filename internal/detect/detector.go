package detect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/events"
	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
	"github.com/koizumiiiii/Baketa-sub013/internal/syncx"
)

// Detector selects a strategy per call, runs it, and tracks the last known
// text layout across calls. Safe for concurrent use: settings are
// snapshotted per call and the text-layout state sits behind its own guard.
type Detector struct {
	mu       sync.Mutex
	settings Settings

	registry  map[Kind]Algorithm // immutable after construction
	prevText  *syncx.RWGuard[[]region.Rect]
	publisher events.Publisher
	window    int64
}

// NewDetector creates a detector over the full strategy registry. The
// publisher may be nil when nobody listens for disappearance events; window
// identifies the monitored surface in those events.
func NewDetector(s Settings, publisher events.Publisher, window int64) (*Detector, error) {
	return NewDetectorWith(s, DefaultAlgorithms(), publisher, window)
}

// NewDetectorWith creates a detector over a caller-supplied registry.
func NewDetectorWith(s Settings, registry map[Kind]Algorithm, publisher events.Publisher, window int64) (*Detector, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	reg := make(map[Kind]Algorithm, len(registry))
	for k, a := range registry {
		reg[k] = a
	}
	return &Detector{
		settings:  s,
		registry:  reg,
		prevText:  syncx.NewGuard([]region.Rect{}),
		publisher: publisher,
		window:    window,
	}, nil
}

// DefaultAlgorithms builds one instance of every strategy. The hybrid shares
// the edge instance so both benefit from its memoised edge maps.
func DefaultAlgorithms() map[Kind]Algorithm {
	histogram := NewHistogram()
	sampling := NewSampling()
	edge := NewEdge()
	return map[Kind]Algorithm{
		KindPixel:     NewPixel(),
		KindBlock:     NewBlock(),
		KindSampling:  sampling,
		KindHistogram: histogram,
		KindEdge:      edge,
		KindHybrid:    NewHybrid(histogram, sampling, edge),
	}
}

// HasSignificantChange reports whether the screen changed enough to warrant
// recognition. Frames of differing dimensions always count as significant.
func (d *Detector) HasSignificantChange(ctx context.Context, prev, curr frame.Frame) (bool, error) {
	if prev == nil || curr == nil {
		return false, errors.New(errors.InvalidArgument, "both frames are required")
	}
	if prev.Width() != curr.Width() || prev.Height() != curr.Height() {
		return true, nil
	}

	s := d.Settings()
	algo, err := d.selectAlgorithm(s.Algorithm)
	if err != nil {
		return false, err
	}
	res, err := algo.Detect(ctx, prev, curr, s)
	if err != nil {
		return false, err
	}
	d.maybeNotify(ctx, res)
	return res.HasSignificantChange, nil
}

// DetectChangedRegions returns the rectangles worth reprocessing. Frames of
// differing dimensions yield the current frame's full bounds.
func (d *Detector) DetectChangedRegions(ctx context.Context, prev, curr frame.Frame) ([]region.Rect, error) {
	if prev == nil || curr == nil {
		return nil, errors.New(errors.InvalidArgument, "both frames are required")
	}
	if prev.Width() != curr.Width() || prev.Height() != curr.Height() {
		return []region.Rect{frame.Bounds(curr)}, nil
	}

	s := d.Settings()
	algo, err := d.selectAlgorithm(s.Algorithm)
	if err != nil {
		return nil, err
	}
	res, err := algo.Detect(ctx, prev, curr, s)
	if err != nil {
		return nil, err
	}
	d.maybeNotify(ctx, res)

	// Full-frame rectangles pass regardless of area: the fail-safe result
	// must survive the minimum-area filter even on tiny frames.
	full := frame.Bounds(curr)
	kept := make([]region.Rect, 0, len(res.ChangedRegions))
	for _, r := range res.ChangedRegions {
		if r == full || r.Area() >= s.MinimumChangedArea {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// DetectTextDisappearance reports regions where previously recognized text
// vanished. Without a prior text layout there is nothing to compare, and a
// resize makes the layouts incomparable; both return empty.
func (d *Detector) DetectTextDisappearance(ctx context.Context, prev, curr frame.Frame) ([]region.Rect, error) {
	if prev == nil || curr == nil {
		return nil, errors.New(errors.InvalidArgument, "both frames are required")
	}
	if len(d.prevText.Get()) == 0 {
		return nil, nil
	}
	if prev.Width() != curr.Width() || prev.Height() != curr.Height() {
		return nil, nil
	}

	s := d.Settings()
	s.Algorithm = KindEdge
	s.FocusOnTextRegions = true
	s.EdgeChangeWeight *= DisappearanceWeightFactor

	algo, err := d.selectAlgorithm(KindEdge)
	if err != nil {
		return nil, err
	}
	res, err := algo.Detect(ctx, prev, curr, s)
	if err != nil {
		return nil, err
	}
	d.maybeNotify(ctx, res)
	return res.DisappearedTextRegions, nil
}

// SetThreshold updates the significance threshold.
func (d *Detector) SetThreshold(v float64) error {
	if v < 0 || v > 1 {
		return errors.Newf(errors.OutOfRange, "threshold %g outside [0,1]", v)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.Threshold = v
	return nil
}

// ApplySettings replaces the detector's settings after validation.
func (d *Detector) ApplySettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
	return nil
}

// Settings returns a copy of the current settings.
func (d *Detector) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.Clone()
}

// SetPreviousTextRegions replaces the last known text layout. Nil clears it.
func (d *Detector) SetPreviousTextRegions(regions []region.Rect) {
	copied := make([]region.Rect, len(regions))
	copy(copied, regions)
	d.prevText.Set(copied)
}

// PreviousTextRegions returns a copy of the last known text layout.
func (d *Detector) PreviousTextRegions() []region.Rect {
	stored := d.prevText.Get()
	out := make([]region.Rect, len(stored))
	copy(out, stored)
	return out
}

// selectAlgorithm resolves a kind against the registry, substituting the
// lowest-numbered registered strategy when the requested one is absent.
func (d *Detector) selectAlgorithm(k Kind) (Algorithm, error) {
	if a, ok := d.registry[k]; ok {
		return a, nil
	}
	if len(d.registry) == 0 {
		return nil, errors.New(errors.Unavailable, "no detection algorithms registered")
	}
	for kind := KindPixel; int(kind) < len(kindNames); kind++ {
		if a, ok := d.registry[kind]; ok {
			slog.Warn("requested algorithm not registered, substituting",
				"requested", k, "substitute", kind)
			return a, nil
		}
	}
	return nil, errors.Newf(errors.Unavailable, "algorithm %s not registered", k)
}

// maybeNotify publishes a disappearance event when the result reports
// vanished text and a prior layout exists to have vanished from. Publish
// failures are logged and swallowed; they never affect the detection result.
func (d *Detector) maybeNotify(ctx context.Context, res *Result) {
	if d.publisher == nil || len(res.DisappearedTextRegions) == 0 {
		return
	}
	if len(d.prevText.Get()) == 0 {
		return
	}
	event := events.TextDisappearance{
		ID:           uuid.New(),
		Timestamp:    time.Now(),
		Regions:      append([]region.Rect{}, res.DisappearedTextRegions...),
		WindowHandle: d.window,
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		slog.Warn("disappearance notification failed", "event", event.ID, "error", err)
	}
}
