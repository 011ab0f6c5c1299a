// Package detect implements the multi-algorithm screen difference engine:
// five interchangeable detection strategies plus a staged hybrid, the
// region extraction that turns change maps into rectangles, and the
// orchestrating detector that selects a strategy and tracks text state.
package detect

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/frame"
	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// Kind identifies a detection strategy.
type Kind uint8

const (
	KindPixel Kind = iota
	KindBlock
	KindSampling
	KindHistogram
	KindEdge
	KindHybrid
)

var kindNames = [...]string{"pixel", "block", "sampling", "histogram", "edge", "hybrid"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a configuration name onto a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, errors.Newf(errors.InvalidArgument, "unknown algorithm %q", s)
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Algorithm is the contract every detection strategy implements.
//
// Detect compares two equal-sized frames under the given settings. Missing
// frames or malformed settings surface as InvalidArgument errors; any
// failure during scanning itself is converted into the fail-safe full-frame
// result so a corrupt frame can never suppress downstream processing.
// Cancellation mid-scan stops the loop and the result is computed from the
// change data accumulated so far.
type Algorithm interface {
	Kind() Kind
	Detect(ctx context.Context, prev, curr frame.Frame, s Settings) (*Result, error)
}

// validateInput enforces the shared argument contract.
func validateInput(prev, curr frame.Frame, s Settings) error {
	if prev == nil || curr == nil {
		return errors.New(errors.InvalidArgument, "both frames are required")
	}
	return s.Validate()
}

// failsafe is the conservative "assume everything changed" result.
func failsafe(curr frame.Frame) *Result {
	return &Result{
		HasSignificantChange: true,
		ChangeRatio:          1,
		ChangedRegions:       []region.Rect{frame.Bounds(curr)},
	}
}

// guarded runs a strategy's inner scan, converting errors and panics into
// the fail-safe result. Cancellation is not a failure: a scan interrupted
// before any pixels were fetched reports no change, matching the partial
// result a scan interrupted mid-loop computes.
func guarded(k Kind, curr frame.Frame, fn func() (*Result, error)) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("detection recovered from panic", "algorithm", k, "panic", r)
			res, err = failsafe(curr), nil
		}
	}()
	res, err = fn()
	if err != nil {
		if cancelled(err) {
			slog.Debug("detection cancelled before any data", "algorithm", k)
			return &Result{}, nil
		}
		slog.Warn("detection failed, assuming full change", "algorithm", k, "error", err)
		return failsafe(curr), nil
	}
	return res, nil
}

// cancelled reports whether err stems from context cancellation rather than
// a frame failure.
func cancelled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// fetchFull retrieves the complete pixel planes of both frames.
func fetchFull(ctx context.Context, prev, curr frame.Frame) (prevPix, currPix []byte, err error) {
	prevPix, err = prev.Pixels(ctx, frame.Bounds(prev))
	if err != nil {
		return nil, nil, err
	}
	currPix, err = curr.Pixels(ctx, frame.Bounds(curr))
	if err != nil {
		return nil, nil, err
	}
	return prevPix, currPix, nil
}

// pixelChanged applies the channel-delta test at byte offset off of both
// packed RGB planes.
func pixelChanged(prevPix, currPix []byte, off int, ignoreLighting bool) bool {
	dr := abs(int(prevPix[off]) - int(currPix[off]))
	dg := abs(int(prevPix[off+1]) - int(currPix[off+1]))
	db := abs(int(prevPix[off+2]) - int(currPix[off+2]))
	sum := dr + dg + db
	if ignoreLighting && sum > 0 {
		// a near-uniform shift across channels is brightness, not content
		spread := max(dr, dg, db) - min(dr, dg, db)
		if spread*LightingSpreadFactor <= sum {
			sum /= 2
		}
	}
	return sum > ChannelDeltaThreshold
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
