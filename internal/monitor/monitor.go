// Package monitor runs the capture, detection, and recognition loop.
package monitor

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"

	"github.com/koizumiiiii/Baketa-sub013/internal/detect"
	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/ocr"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
	"github.com/koizumiiiii/Baketa-sub013/internal/resilience"
	"github.com/koizumiiiii/Baketa-sub013/internal/trace"
)

// Provider yields the next screen capture, reporting whether it differs from
// the previous one. capture.Capturer satisfies this.
type Provider interface {
	Capture() (*frame.Buffer, bool)
}

// Stats is a snapshot of the monitor's counters.
type Stats struct {
	Cycles         int64 `json:"cycles"`
	HashSkips      int64 `json:"hashSkips"`
	Changes        int64 `json:"changes"`
	Disappearances int64 `json:"disappearances"`
	OCRCalls       int64 `json:"ocrCalls"`
	OCRFailures    int64 `json:"ocrFailures"`
}

// Monitor polls a frame provider, runs change detection between consecutive
// frames, and feeds changed regions to the recognizer. Recognized text boxes
// become the detector's text layout for the next cycle.
type Monitor struct {
	provider   Provider
	detector   *detect.Detector
	recognizer ocr.Recognizer
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig

	stopCh   chan struct{}
	stopOnce sync.Once

	recognition atomic.Bool

	mu       sync.Mutex
	prev     *frame.Buffer
	lastHash *goimagehash.ImageHash
	boxes    []ocr.TextBox

	cycles         atomic.Int64
	hashSkips      atomic.Int64
	changes        atomic.Int64
	disappearances atomic.Int64
	ocrCalls       atomic.Int64
	ocrFailures    atomic.Int64
}

// New creates a monitor. The recognizer may be nil, in which case changed
// regions are detected and announced but never recognized.
func New(provider Provider, detector *detect.Detector, recognizer ocr.Recognizer) *Monitor {
	m := &Monitor{
		provider:   provider,
		detector:   detector,
		recognizer: recognizer,
		breaker:    resilience.New(resilience.FastConfig()),
		retry:      resilience.RecognitionRetryConfig(),
		stopCh:     make(chan struct{}),
	}
	m.recognition.Store(true)
	return m
}

// Run polls at captureRate captures per second until the context is done or
// Stop is called.
func (m *Monitor) Run(ctx context.Context, captureRate float64) {
	if captureRate <= 0 {
		captureRate = DefaultCaptureRate
	}
	interval := time.Duration(float64(time.Second) / captureRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

// Stop ends the polling loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// cycle captures one frame and, once past the capture and perceptual-hash
// gates, hands the frame pair to process.
func (m *Monitor) cycle(ctx context.Context) {
	m.cycles.Add(1)

	curr, changed := m.provider.Capture()
	if !changed || curr == nil {
		return
	}
	if m.similarToLast(curr) {
		m.hashSkips.Add(1)
		return
	}

	m.mu.Lock()
	prev := m.prev
	m.prev = curr
	m.mu.Unlock()
	if prev == nil {
		// First frame seeds the comparison baseline.
		return
	}

	m.process(ctx, prev, curr)
}

// process runs detection between two frames and recognizes whatever changed.
func (m *Monitor) process(ctx context.Context, prev, curr *frame.Buffer) {
	ctx, span := trace.StartSpan(ctx, "monitor_cycle")
	defer span.End()
	log := trace.Logger(ctx)

	regions, err := m.detector.DetectChangedRegions(ctx, prev, curr)
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("change detection failed", "error", err)
		return
	}
	if len(regions) == 0 {
		m.scanDisappearance(ctx, prev, curr)
		return
	}

	m.changes.Add(1)
	span.SetAttr("regions", len(regions))
	if m.recognition.Load() && m.recognizer != nil {
		m.recognize(ctx, curr, regions)
	}
}

// scanDisappearance runs the amplified text-vanish scan on quiet cycles.
// The general detection pass already announces disappearances it finds, so
// this only fires when nothing else changed.
func (m *Monitor) scanDisappearance(ctx context.Context, prev, curr frame.Frame) {
	if len(m.detector.PreviousTextRegions()) == 0 {
		return
	}
	gone, err := m.detector.DetectTextDisappearance(ctx, prev, curr)
	if err != nil {
		trace.Logger(ctx).Error("disappearance scan failed", "error", err)
		return
	}
	if len(gone) == 0 {
		return
	}
	m.disappearances.Add(1)
	// The layout the detector was holding just vanished; fresh recognition
	// on the next change rebuilds it.
	m.detector.SetPreviousTextRegions(nil)
	m.setBoxes(nil)
	trace.Logger(ctx).Info("text disappeared", "regions", len(gone))
}

// recognize crops each changed region, recognizes it behind retry and the
// circuit breaker, and shifts the boxes back into frame coordinates. Boxes
// outside the rescanned regions persist; a change only invalidates the text
// it overlaps.
func (m *Monitor) recognize(ctx context.Context, f *frame.Buffer, regions []region.Rect) {
	img := f.Image()
	log := trace.Logger(ctx)

	fresh := make([]ocr.TextBox, 0, len(regions))
	succeeded := 0
	for _, r := range regions {
		crop := imaging.Crop(img, image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
		m.ocrCalls.Add(1)

		var found []ocr.TextBox
		err := resilience.Retry(ctx, m.retry, func() error {
			return m.breaker.Execute(func() error {
				var rerr error
				found, rerr = m.recognizer.Recognize(ctx, crop)
				return rerr
			})
		})
		if err != nil {
			m.ocrFailures.Add(1)
			log.Warn("recognition failed", "region", r, "error", err)
			continue
		}
		succeeded++

		for _, b := range found {
			b.Bounds.X += r.X
			b.Bounds.Y += r.Y
			fresh = append(fresh, b)
		}
	}
	if succeeded == 0 {
		// Nothing recognized this cycle; the previous layout stands.
		return
	}

	merged := make([]ocr.TextBox, 0, len(fresh))
	for _, b := range m.TextBoxes() {
		if !intersectsAny(b.Bounds, regions) {
			merged = append(merged, b)
		}
	}
	merged = append(merged, fresh...)

	layout := make([]region.Rect, len(merged))
	for i, b := range merged {
		layout[i] = b.Bounds
	}
	m.detector.SetPreviousTextRegions(layout)
	m.setBoxes(merged)
}

func intersectsAny(r region.Rect, regions []region.Rect) bool {
	for _, q := range regions {
		if r.Intersects(q) {
			return true
		}
	}
	return false
}

// similarToLast computes a perceptual hash and compares it against the last
// processed frame. The stored hash only advances when a frame is processed,
// so gradual drift eventually accumulates past the gate.
func (m *Monitor) similarToLast(f *frame.Buffer) bool {
	hash, err := goimagehash.PerceptionHash(f.Image())
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastHash == nil {
		m.lastHash = hash
		return false
	}
	dist, err := m.lastHash.Distance(hash)
	if err != nil {
		m.lastHash = hash
		return false
	}
	if dist <= MaxHashDistance {
		slog.Debug("skipping detection for similar frame", "distance", dist)
		return true
	}
	m.lastHash = hash
	return false
}

// SetRecognition enables or disables recognition of changed regions.
func (m *Monitor) SetRecognition(enabled bool) {
	m.recognition.Store(enabled)
	slog.Info("recognition state changed", "enabled", enabled)
}

// RecognitionEnabled reports whether changed regions are being recognized.
func (m *Monitor) RecognitionEnabled() bool {
	return m.recognition.Load()
}

// TextBoxes returns the most recently recognized text boxes.
func (m *Monitor) TextBoxes() []ocr.TextBox {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ocr.TextBox, len(m.boxes))
	copy(out, m.boxes)
	return out
}

func (m *Monitor) setBoxes(boxes []ocr.TextBox) {
	m.mu.Lock()
	m.boxes = boxes
	m.mu.Unlock()
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Cycles:         m.cycles.Load(),
		HashSkips:      m.hashSkips.Load(),
		Changes:        m.changes.Load(),
		Disappearances: m.disappearances.Load(),
		OCRCalls:       m.ocrCalls.Load(),
		OCRFailures:    m.ocrFailures.Load(),
	}
}
