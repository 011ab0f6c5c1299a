package detect

import "github.com/koizumiiiii/Baketa-sub013/internal/errors"

// Settings controls a single detection call. Instances are treated as
// immutable: take a Clone, modify it, then apply.
type Settings struct {
	// Threshold is the change ratio above which a result is significant.
	Threshold float64 `json:"threshold"`
	// Algorithm selects the detection strategy.
	Algorithm Kind `json:"algorithm"`
	// BlockSize is the tile edge for block scanning and region alignment.
	BlockSize int `json:"blockSize"`
	// SamplingDensity is the uniform sample lattice edge.
	SamplingDensity int `json:"samplingDensity"`
	// MinimumChangedArea drops changed regions smaller than this many pixels.
	MinimumChangedArea int `json:"minimumChangedArea"`
	// FocusOnTextRegions enables text-specific analysis paths.
	FocusOnTextRegions bool `json:"focusOnTextRegions"`
	// EdgeChangeWeight scales edge-change sensitivity; heavier means more
	// sensitive.
	EdgeChangeWeight float64 `json:"edgeChangeWeight"`
	// IgnoreLightingChanges damps near-uniform channel shifts.
	IgnoreLightingChanges bool `json:"ignoreLightingChanges"`
	// ScaleCount above 1 enables the multi-scale pre-check.
	ScaleCount int `json:"scaleCount"`
}

// DefaultSettings returns the values the monitoring loop starts with.
func DefaultSettings() Settings {
	return Settings{
		Threshold:          0.05,
		Algorithm:          KindHybrid,
		BlockSize:          16,
		SamplingDensity:    20,
		MinimumChangedArea: 100,
		FocusOnTextRegions: true,
		EdgeChangeWeight:   2.0,
		ScaleCount:         1,
	}
}

// Clone returns an independent copy.
func (s Settings) Clone() Settings { return s }

// Validate checks every field against its documented range.
func (s Settings) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return errors.Newf(errors.OutOfRange, "threshold %g outside [0,1]", s.Threshold)
	}
	if int(s.Algorithm) >= len(kindNames) {
		return errors.Newf(errors.InvalidArgument, "unknown algorithm %d", s.Algorithm)
	}
	if s.BlockSize < 1 {
		return errors.Newf(errors.InvalidArgument, "block size %d, want at least 1", s.BlockSize)
	}
	if s.SamplingDensity < 1 {
		return errors.Newf(errors.InvalidArgument, "sampling density %d, want at least 1", s.SamplingDensity)
	}
	if s.MinimumChangedArea < 0 {
		return errors.Newf(errors.InvalidArgument, "minimum changed area %d, want non-negative", s.MinimumChangedArea)
	}
	if s.EdgeChangeWeight <= 0 {
		return errors.Newf(errors.InvalidArgument, "edge change weight %g, want positive", s.EdgeChangeWeight)
	}
	if s.ScaleCount < 1 {
		return errors.Newf(errors.InvalidArgument, "scale count %d, want at least 1", s.ScaleCount)
	}
	return nil
}
