package detect

import "github.com/koizumiiiii/Baketa-sub013/internal/region"

// Result is the outcome of one detection call. ChangedRegions rectangles
// are merged, clipped to frame bounds, and area-filtered; the separate
// DisappearedTextRegions list is exempt from the area filter so small
// vanished labels still surface.
type Result struct {
	HasSignificantChange   bool          `json:"hasSignificantChange"`
	ChangeRatio            float64       `json:"changeRatio"`
	ChangedRegions         []region.Rect `json:"changedRegions"`
	DisappearedTextRegions []region.Rect `json:"disappearedTextRegions,omitempty"`
}
